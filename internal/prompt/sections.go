package prompt

import "fmt"

// Section is one numbered block of the triage response. The templates render
// these markers and the response parser locates them, so both sides read
// from this table.
type Section struct {
	Number int
	Key    string
	Emoji  string
	Label  string
	// Match is the case-insensitive label pattern used to find the header
	// in model output. It accepts the wording variants of both templates.
	Match string
	List  bool
}

// Sections lists the nine response sections in order.
var Sections = []Section{
	{1, "symptom_details", "🤒", "Symptom Details", `symptom\s+details`, false},
	{2, "recommended_specialty", "🩺", "Recommended Medical Specialty", `(?:recommended\s+)?(?:medical\s+)?specialty`, false},
	{3, "urgency_level", "🚨", "Urgency Level", `urgency(?:\s+level)?`, false},
	{4, "home_remedies", "🏠", "Home Remedies", `(?:recommended\s+)?home\s+remedies`, true},
	{5, "supportive_care", "💊", "Supportive Care", `(?:evidence[-\s]based\s+)?supportive\s+care`, true},
	{6, "advice_next_steps", "💡", "Advice & Next Steps", `(?:immediate\s+)?advice\s*(?:&|and)?\s*next\s+steps`, false},
	{7, "first_aid", "🚑", "First-Aid", `first[-\s]?aid`, false},
	{8, "possible_causes", "🧬", "Possible Causes", `possible\s+causes`, true},
	{9, "friendly_summary", "💬", "Friendly Summary", `friendly\s+summary`, false},
}

// Marker renders the plain header marker, e.g. "3. 🚨 Urgency Level".
func (s Section) Marker() string {
	return fmt.Sprintf("%d. %s %s", s.Number, s.Emoji, s.Label)
}
