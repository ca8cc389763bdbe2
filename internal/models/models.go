package models

import "strings"

// TextChunk represents a chunk of text from a knowledge-base document
type TextChunk struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float64 `json:"embedding"`
}

// Metadata contains information about the origin of a text chunk
type Metadata struct {
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
	Title      string `json:"title,omitempty"`
	Section    string `json:"section,omitempty"`
}

// Map flattens the metadata into the loose form carried by retrieved passages
func (m Metadata) Map() map[string]any {
	out := map[string]any{
		"source":      m.Source,
		"page_number": m.PageNumber,
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.Section != "" {
		out["section"] = m.Section
	}
	return out
}

// Passage is a retrieved excerpt handed back to callers of the knowledge base
type Passage struct {
	Source   string         `json:"source"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Transcript is the text recognised from one audio submission
type Transcript struct {
	Text     string `json:"transcript"`
	Language string `json:"language"`
}

// Response represents an answer from the knowledge base
type Response struct {
	Answer    string    `json:"answer"`
	Sources   []Passage `json:"sources"`
	Timestamp string    `json:"timestamp"`
}

// SymptomDetails holds the free-text symptom breakdown
type SymptomDetails struct {
	Description string `json:"description"`
}

// StructuredAnalysis is the triage result returned for every analysis.
// FirstAid is the only field allowed to be absent.
type StructuredAnalysis struct {
	SymptomDetails       SymptomDetails `json:"symptom_details"`
	RecommendedSpecialty string         `json:"recommended_specialty"`
	UrgencyLevel         string         `json:"urgency_level"`
	HomeRemedies         []string       `json:"home_remedies"`
	SupportiveCare       []string       `json:"supportive_care"`
	AdviceNextSteps      string         `json:"advice_next_steps"`
	FirstAid             *string        `json:"first_aid"`
	PossibleCauses       []string       `json:"possible_causes"`
	FriendlySummary      string         `json:"friendly_summary"`
}

// Urgency is the closed triage taxonomy
type Urgency string

const (
	UrgencyEmergency Urgency = "Emergency"
	UrgencyUrgent    Urgency = "Urgent"
	UrgencyNonUrgent Urgency = "Non-urgent but important"
	UrgencyRoutine   Urgency = "Routine"
	UrgencyUnknown   Urgency = "Unknown"
)

// ClassifyUrgency maps free urgency text onto the taxonomy. The most severe
// level mentioned wins.
func ClassifyUrgency(text string) Urgency {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "emergency"):
		return UrgencyEmergency
	case strings.Contains(t, "non-urgent"), strings.Contains(t, "non urgent"), strings.Contains(t, "nonurgent"):
		return UrgencyNonUrgent
	case strings.Contains(t, "urgent"):
		return UrgencyUrgent
	case strings.Contains(t, "routine"):
		return UrgencyRoutine
	default:
		return UrgencyUnknown
	}
}
