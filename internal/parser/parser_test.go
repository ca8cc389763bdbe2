package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"symptom-triage/internal/models"
	"symptom-triage/internal/prompt"
)

const maternalResponse = `Here is the structured analysis.

1. 🤒 **Symptom Details**:
   - Fever: 2 days, moderate
   - Poor feeding since yesterday

2. 🩺 **Recommended Medical Specialty**: Pediatrician / Neonatologist

3. 🚨 **Urgency Level**: Emergency (seek help immediately)

4. 🏠 **Home Remedies**:
   - Keep the baby skin-to-skin
   - Offer frequent feeds
   - Dress the baby in light clothing

5. 💊 **Supportive Care**:
   - Monitor temperature every hour
   - Only under doctor's supervision: paracetamol

6. 💡 **Advice & Next Steps**: Go to the nearest hospital now.

7. 🚑 **First-Aid**: Keep the baby warm but not overheated while you travel.

8. 🧬 **Possible Causes**:
   - Could be neonatal sepsis
   - May suggest an infection

9. 💬 **Friendly Summary**: Please don't wait, your baby's health is a priority.
`

const generalResponse = `1. 🤒 Symptom Details: Headache for three days, mild, worse in the evening.
2. 🩺 Recommended Medical Specialty: General Physician
3. 🚨 Urgency Level: Routine
4. 🏠 Home Remedies:
- Rest in a dark room
- Drink water
5. 💊 Supportive Care: Not specified.
6. 💡 Advice & Next Steps: Book a routine appointment if it persists.
7. 🚑 First-Aid: Not specified
8. 🧬 Possible Causes:
- Tension headache
- Dehydration
9. 💬 Friendly Summary: This sounds manageable at home for now.
`

func newTestParser() *Parser {
	return New(DefaultLimits(), zerolog.Nop())
}

func TestParseMaternalResponse(t *testing.T) {
	got, outcome := newTestParser().ParseWithOutcome(maternalResponse)
	if outcome != OutcomeParsed {
		t.Fatalf("expected parsed outcome, got %s", outcome)
	}

	if !strings.Contains(got.SymptomDetails.Description, "Fever: 2 days") {
		t.Errorf("unexpected symptom details %q", got.SymptomDetails.Description)
	}
	if got.RecommendedSpecialty != "Pediatrician / Neonatologist" {
		t.Errorf("unexpected specialty %q", got.RecommendedSpecialty)
	}
	if models.ClassifyUrgency(got.UrgencyLevel) != models.UrgencyEmergency {
		t.Errorf("expected emergency urgency, got %q", got.UrgencyLevel)
	}
	if len(got.HomeRemedies) != 3 || got.HomeRemedies[0] != "Keep the baby skin-to-skin" {
		t.Errorf("unexpected home remedies %#v", got.HomeRemedies)
	}
	if len(got.SupportiveCare) != 2 {
		t.Errorf("unexpected supportive care %#v", got.SupportiveCare)
	}
	if got.AdviceNextSteps != "Go to the nearest hospital now." {
		t.Errorf("unexpected advice %q", got.AdviceNextSteps)
	}
	if got.FirstAid == nil || !strings.HasPrefix(*got.FirstAid, "Keep the baby warm") {
		t.Errorf("unexpected first aid %v", got.FirstAid)
	}
	if len(got.PossibleCauses) != 2 || got.PossibleCauses[1] != "May suggest an infection" {
		t.Errorf("unexpected causes %#v", got.PossibleCauses)
	}
	if !strings.HasPrefix(got.FriendlySummary, "Please don't wait") {
		t.Errorf("unexpected summary %q", got.FriendlySummary)
	}
}

func TestParseGeneralResponse(t *testing.T) {
	got := newTestParser().Parse(generalResponse)

	if got.SymptomDetails.Description != "Headache for three days, mild, worse in the evening." {
		t.Errorf("unexpected symptom details %q", got.SymptomDetails.Description)
	}
	if got.UrgencyLevel != "Routine" {
		t.Errorf("unexpected urgency %q", got.UrgencyLevel)
	}
	if len(got.HomeRemedies) != 2 || got.HomeRemedies[1] != "Drink water" {
		t.Errorf("unexpected home remedies %#v", got.HomeRemedies)
	}
	if got.SupportiveCare == nil || len(got.SupportiveCare) != 0 {
		t.Errorf("expected empty supportive care, got %#v", got.SupportiveCare)
	}
	if got.FirstAid != nil {
		t.Errorf("expected nil first aid, got %q", *got.FirstAid)
	}
	if got.FriendlySummary != "This sounds manageable at home for now." {
		t.Errorf("unexpected summary %q", got.FriendlySummary)
	}
}

func TestParseRecognizesPromptHeaders(t *testing.T) {
	// Responses that copy the headers exactly as the templates render them
	// must be understood by the parser.
	var maternal, general strings.Builder
	for _, s := range prompt.Sections {
		maternal.WriteString("\n" + strings.Replace(s.Marker(), s.Label, "**"+s.Label+"**", 1) + ": value " + s.Key + "\n")
		general.WriteString(s.Marker() + ": value " + s.Key + "\n")
	}

	for name, raw := range map[string]string{"maternal": maternal.String(), "general": general.String()} {
		t.Run(name, func(t *testing.T) {
			sections := locate(raw)
			if len(sections) != len(prompt.Sections) {
				t.Fatalf("expected %d sections, got %d: %#v", len(prompt.Sections), len(sections), sections)
			}
			for _, s := range prompt.Sections {
				if sections[s.Key] != "value "+s.Key {
					t.Errorf("section %s: got %q", s.Key, sections[s.Key])
				}
			}
		})
	}
}

func TestParseHeaderVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"markdown heading", "### 3. Urgency Level\nUrgent", "Urgent"},
		{"bold number", "**3. 🚨 Urgency Level:** Urgent", "Urgent"},
		{"lowercase", "3. urgency level: urgent", "urgent"},
		{"paren number", "3) Urgency: Urgent", "Urgent"},
		{"no emoji", "3. Urgency Level: Urgent (within 24-48 hours)", "Urgent (within 24-48 hours)"},
		{"dash separator", "3. 🚨 Urgency Level - Emergency: go to hospital now", "Emergency: go to hospital now"},
		{"no separator", "3. 🚨 Urgency Level Emergency, go now", "Emergency, go now"},
		{"parenthesised hint", "3. Urgency Level (Emergency / Urgent / Routine): Urgent", "Urgent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			if got.UrgencyLevel != tt.want {
				t.Errorf("got %q, want %q", got.UrgencyLevel, tt.want)
			}
		})
	}
}

func TestParseWithoutHeadersUsesFallbackSummary(t *testing.T) {
	raw := strings.Repeat("You should see a doctor soon. ", 20)

	got, outcome := newTestParser().ParseWithOutcome(raw)
	if outcome != OutcomeFallback {
		t.Fatalf("expected fallback outcome, got %s", outcome)
	}
	if got.FriendlySummary != raw[:200] {
		t.Errorf("expected first 200 chars, got %q", got.FriendlySummary)
	}

	want := Defaults()
	if got.RecommendedSpecialty != want.RecommendedSpecialty || got.UrgencyLevel != want.UrgencyLevel {
		t.Errorf("expected default fields, got %+v", got)
	}
	assertComplete(t, got, DefaultLimits())
}

func TestParseShortFallbackKeepsInput(t *testing.T) {
	got := Parse("Stay hydrated.")
	if got.FriendlySummary != "Stay hydrated." {
		t.Errorf("got %q", got.FriendlySummary)
	}

	got = Parse("   ")
	if got.FriendlySummary == "" {
		t.Error("expected a non-empty summary for blank input")
	}
}

func TestParseCapsLists(t *testing.T) {
	raw := "4. 🏠 Home Remedies:\n- one\n-  \n- two\n• three\n* four\n- five\n- six\n- seven\n5. 💊 Supportive Care: rest • fluids • sleep"

	got := Parse(raw)
	if len(got.HomeRemedies) != 5 {
		t.Fatalf("expected 5 remedies, got %#v", got.HomeRemedies)
	}
	for _, item := range got.HomeRemedies {
		if strings.TrimSpace(item) == "" {
			t.Errorf("empty item in %#v", got.HomeRemedies)
		}
	}
	if got.HomeRemedies[4] != "five" {
		t.Errorf("unexpected order %#v", got.HomeRemedies)
	}
	want := []string{"rest", "fluids", "sleep"}
	if strings.Join(got.SupportiveCare, "|") != strings.Join(want, "|") {
		t.Errorf("inline bullets: got %#v, want %#v", got.SupportiveCare, want)
	}
}

func TestParseUrgencyWithoutColonKeepsLevel(t *testing.T) {
	raw := "1. 🤒 Symptom Details: Bleeding at 30 weeks\n3. 🚨 Urgency Level - Emergency: go to hospital now\n9. 💬 Friendly Summary: Please go now."

	got := Parse(raw)
	if models.ClassifyUrgency(got.UrgencyLevel) != models.UrgencyEmergency {
		t.Errorf("expected emergency, got %q", got.UrgencyLevel)
	}
}

func TestParseListsWithEmphasis(t *testing.T) {
	raw := "4. 🏠 Home Remedies:\n* **Rest** in a dark room\n* Hydration\n*Cold compress*\n- __Avoid__ screens\n  for a few hours"

	got := Parse(raw)
	want := []string{"Rest in a dark room", "Hydration", "Cold compress", "Avoid screens for a few hours"}
	if len(got.HomeRemedies) != len(want) {
		t.Fatalf("expected %d remedies, got %#v", len(want), got.HomeRemedies)
	}
	for i := range want {
		if got.HomeRemedies[i] != want[i] {
			t.Errorf("item %d: got %q, want %q", i, got.HomeRemedies[i], want[i])
		}
	}
}

func TestParseTruncatesFields(t *testing.T) {
	long := strings.Repeat("é", 800)
	raw := "1. 🤒 Symptom Details: " + long + "\n6. 💡 Advice & Next Steps: " + long

	got := Parse(raw)
	if n := utf8.RuneCountInString(got.SymptomDetails.Description); n != 500 {
		t.Errorf("expected 500 runes of details, got %d", n)
	}
	if n := utf8.RuneCountInString(got.AdviceNextSteps); n != 300 {
		t.Errorf("expected 300 runes of advice, got %d", n)
	}
	if !utf8.ValidString(got.AdviceNextSteps) {
		t.Error("truncation split a rune")
	}
}

func TestParseCustomLimits(t *testing.T) {
	p := New(Limits{MaxListItems: 2, TextChars: 10}, zerolog.Nop())
	got := p.Parse("8. 🧬 Possible Causes:\n- a\n- b\n- c\n9. 💬 Friendly Summary: abcdefghijklmnop")

	if len(got.PossibleCauses) != 2 {
		t.Errorf("expected 2 causes, got %#v", got.PossibleCauses)
	}
	if got.FriendlySummary != "abcdefghij" {
		t.Errorf("unexpected summary %q", got.FriendlySummary)
	}
}

func TestFirstAidEmptyValues(t *testing.T) {
	for _, v := range []string{"Not specified", "Not specified.", "N/A", "None", "none.", ""} {
		got := Parse("3. 🚨 Urgency Level: Routine\n7. 🚑 First-Aid: " + v + "\n")
		if got.FirstAid != nil {
			t.Errorf("%q: expected nil first aid, got %q", v, *got.FirstAid)
		}
	}
}

func TestParseNewbornRedFlagResponse(t *testing.T) {
	transcript := "My newborn has a high fever and is not feeding"
	p := prompt.Build(transcript, prompt.ParseCategory("newborn"))
	if !strings.Contains(p, prompt.RedFlagInstruction) {
		t.Fatal("expected red flag instruction in prompt")
	}

	got := Parse(maternalResponse)
	if models.ClassifyUrgency(got.UrgencyLevel) != models.UrgencyEmergency {
		t.Errorf("expected emergency, got %q", got.UrgencyLevel)
	}
	assertComplete(t, got, DefaultLimits())
}

func TestSafeDefault(t *testing.T) {
	got := SafeDefault()
	assertComplete(t, got, DefaultLimits())
	if !strings.Contains(got.FriendlySummary, "healthcare provider") {
		t.Errorf("unexpected summary %q", got.FriendlySummary)
	}
}

func TestParseAlwaysComplete(t *testing.T) {
	inputs := []string{
		"",
		maternalResponse,
		generalResponse,
		"1. 🤒 Symptom Details:",
		"9. 💬 Friendly Summary:\n\n",
		"random\n2. nothing here\n- bullet",
		strings.Repeat("- item\n", 50),
	}
	for _, raw := range inputs {
		assertComplete(t, Parse(raw), DefaultLimits())
	}
}

func assertComplete(t *testing.T, a models.StructuredAnalysis, limits Limits) {
	t.Helper()

	if a.SymptomDetails.Description == "" || utf8.RuneCountInString(a.SymptomDetails.Description) > limits.DetailsChars {
		t.Errorf("bad symptom details %q", a.SymptomDetails.Description)
	}
	for name, v := range map[string]string{
		"recommended_specialty": a.RecommendedSpecialty,
		"urgency_level":         a.UrgencyLevel,
		"advice_next_steps":     a.AdviceNextSteps,
		"friendly_summary":      a.FriendlySummary,
	} {
		if v == "" {
			t.Errorf("%s is empty", name)
		}
		if utf8.RuneCountInString(v) > limits.TextChars {
			t.Errorf("%s exceeds %d chars", name, limits.TextChars)
		}
	}
	for name, list := range map[string][]string{
		"home_remedies":   a.HomeRemedies,
		"supportive_care": a.SupportiveCare,
		"possible_causes": a.PossibleCauses,
	} {
		if list == nil {
			t.Errorf("%s is nil", name)
		}
		if len(list) > limits.MaxListItems {
			t.Errorf("%s has %d items", name, len(list))
		}
		for _, item := range list {
			if strings.TrimSpace(item) == "" {
				t.Errorf("%s has an empty item", name)
			}
		}
	}
}
