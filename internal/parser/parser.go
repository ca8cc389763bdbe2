// Package parser extracts the structured triage analysis from free-form
// language-model output.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"symptom-triage/internal/models"
	"symptom-triage/internal/prompt"
)

// Limits caps the size of extracted fields.
type Limits struct {
	DetailsChars  int // symptom_details.description
	TextChars     int // every other string field
	FallbackChars int // friendly_summary when no section is recognised
	MaxListItems  int
}

// DefaultLimits returns the standard content caps.
func DefaultLimits() Limits {
	return Limits{
		DetailsChars:  500,
		TextChars:     300,
		FallbackChars: 200,
		MaxListItems:  5,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.DetailsChars <= 0 {
		l.DetailsChars = d.DetailsChars
	}
	if l.TextChars <= 0 {
		l.TextChars = d.TextChars
	}
	if l.FallbackChars <= 0 {
		l.FallbackChars = d.FallbackChars
	}
	if l.MaxListItems <= 0 {
		l.MaxListItems = d.MaxListItems
	}
	return l
}

// Outcome reports how a response was turned into an analysis.
type Outcome int

const (
	// OutcomeParsed means at least one section was extracted.
	OutcomeParsed Outcome = iota
	// OutcomeFallback means no section header was recognised.
	OutcomeFallback
	// OutcomeFailed means parsing broke and the safe default was returned.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return "parsed"
	}
}

const (
	defaultDetails   = "Not specified"
	defaultSpecialty = "General Physician"
	defaultUrgency   = "Routine check-up"
	defaultAdvice    = "Please consult a healthcare provider for personalised advice."
	defaultSummary   = "Please consult with a healthcare provider for proper assessment."
)

// headerPatterns holds one compiled header pattern per section, in section order.
var headerPatterns = compileHeaders(prompt.Sections)

var (
	bulletMarker = regexp.MustCompile(`^(?:[-•]|\*(?:[ \t]|$))[ \t]*`)
	inlineBullet = regexp.MustCompile(`[ \t]•[ \t]*`)
	emphasis     = regexp.MustCompile(`\*\*([^*\n]+)\*\*|__([^_\n]+)__`)
	emptyValues = map[string]bool{
		"not specified":  true,
		"none":           true,
		"n/a":            true,
		"na":             true,
		"not applicable": true,
	}
)

func compileHeaders(sections []prompt.Section) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(sections))
	for i, s := range sections {
		// line start, optional markdown, the section number, optional emoji and
		// emphasis, the label, an optional parenthesised hint, then a colon or
		// dash separator. Text after the separator belongs to the section.
		pattern := fmt.Sprintf(`(?im)^[ \t>#*_]*%d[.)][ \t]*(?:[^\w\s]+[ \t]*)?[*_]*[ \t]*%s(?:[ \t]*\([^)\n]{0,60}\))?[ \t*_]*(?::|[-–](?:[ \t]|$))?[ \t*_]*`,
			s.Number, s.Match)
		out[i] = regexp.MustCompile(pattern)
	}
	return out
}

// Parser turns raw model text into a StructuredAnalysis.
type Parser struct {
	limits Limits
	logger zerolog.Logger
}

// New creates a parser. Zero or negative limits fall back to the defaults.
func New(limits Limits, logger zerolog.Logger) *Parser {
	return &Parser{
		limits: limits.withDefaults(),
		logger: logger,
	}
}

// Parse extracts the analysis with the default limits.
func Parse(raw string) models.StructuredAnalysis {
	return New(DefaultLimits(), zerolog.Nop()).Parse(raw)
}

// Parse extracts the analysis from raw. It never fails.
func (p *Parser) Parse(raw string) models.StructuredAnalysis {
	analysis, _ := p.ParseWithOutcome(raw)
	return analysis
}

// ParseWithOutcome extracts the analysis and reports which path produced it.
// A panic while parsing is absorbed and replaced by SafeDefault.
func (p *Parser) ParseWithOutcome(raw string) (result models.StructuredAnalysis, outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Int("raw_len", len(raw)).
				Msg("Failed to parse analysis response, using safe default")
			result = SafeDefault()
			outcome = OutcomeFailed
		}
	}()

	result = Defaults()
	sections := locate(raw)

	if len(sections) == 0 {
		if strings.TrimSpace(raw) != "" {
			result.FriendlySummary = truncate(raw, p.limits.FallbackChars)
		}
		p.logger.Warn().
			Int("raw_len", len(raw)).
			Msg("No section headers found in analysis response")
		return result, OutcomeFallback
	}

	for key, content := range sections {
		p.apply(&result, key, content)
	}
	return result, OutcomeParsed
}

func (p *Parser) apply(result *models.StructuredAnalysis, key, content string) {
	switch key {
	case "symptom_details":
		if content != "" {
			result.SymptomDetails = models.SymptomDetails{Description: truncate(content, p.limits.DetailsChars)}
		}
	case "recommended_specialty":
		setText(&result.RecommendedSpecialty, content, p.limits.TextChars)
	case "urgency_level":
		setText(&result.UrgencyLevel, content, p.limits.TextChars)
	case "home_remedies":
		result.HomeRemedies = splitList(content, p.limits)
	case "supportive_care":
		result.SupportiveCare = splitList(content, p.limits)
	case "advice_next_steps":
		setText(&result.AdviceNextSteps, content, p.limits.TextChars)
	case "first_aid":
		if content != "" && !isEmptyValue(content) {
			v := truncate(content, p.limits.TextChars)
			result.FirstAid = &v
		}
	case "possible_causes":
		result.PossibleCauses = splitList(content, p.limits)
	case "friendly_summary":
		setText(&result.FriendlySummary, content, p.limits.TextChars)
	}
}

type headerMatch struct {
	key        string
	start, end int
}

// locate finds every section header in raw and returns the cleaned text
// between each header and the next one, keyed by section.
func locate(raw string) map[string]string {
	var found []headerMatch
	for i, re := range headerPatterns {
		if loc := re.FindStringIndex(raw); loc != nil {
			found = append(found, headerMatch{key: prompt.Sections[i].Key, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	out := make(map[string]string, len(found))
	for i, h := range found {
		stop := len(raw)
		if i+1 < len(found) {
			stop = found[i+1].start
		}
		if stop < h.end {
			stop = h.end
		}
		out[h.key] = clean(raw[h.end:stop])
	}
	return out
}

func setText(dst *string, content string, limit int) {
	if content == "" {
		return
	}
	*dst = truncate(content, limit)
}

// splitList breaks content into items. A line starting with a bullet or
// emphasis marker opens a new item; other lines continue the current one.
func splitList(content string, limits Limits) []string {
	items := []string{}
	if content == "" || isEmptyValue(content) {
		return items
	}

	var fragments []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.ContainsAny(line[:1], "-•*") || len(fragments) == 0 {
			fragments = append(fragments, bulletMarker.ReplaceAllString(line, ""))
			continue
		}
		fragments[len(fragments)-1] += " " + line
	}

	for _, fragment := range fragments {
		for _, part := range inlineBullet.Split(fragment, -1) {
			item := clean(emphasis.ReplaceAllString(strings.Join(strings.Fields(part), " "), "$1$2"))
			if item == "" || isEmptyValue(item) {
				continue
			}
			items = append(items, truncate(item, limits.TextChars))
			if len(items) == limits.MaxListItems {
				return items
			}
		}
	}
	return items
}

func clean(s string) string {
	return strings.Trim(s, " \t\r\n*_:")
}

func isEmptyValue(s string) bool {
	return emptyValues[strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "."))]
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Defaults returns the analysis used for fields the model left out.
func Defaults() models.StructuredAnalysis {
	return models.StructuredAnalysis{
		SymptomDetails:       models.SymptomDetails{Description: defaultDetails},
		RecommendedSpecialty: defaultSpecialty,
		UrgencyLevel:         defaultUrgency,
		HomeRemedies:         []string{},
		SupportiveCare:       []string{},
		AdviceNextSteps:      defaultAdvice,
		FirstAid:             nil,
		PossibleCauses:       []string{},
		FriendlySummary:      defaultSummary,
	}
}

// SafeDefault is returned when a response cannot be parsed at all. Every
// field points the patient to a healthcare provider.
func SafeDefault() models.StructuredAnalysis {
	return models.StructuredAnalysis{
		SymptomDetails:       models.SymptomDetails{Description: "Analysis parsing failed"},
		RecommendedSpecialty: defaultSpecialty,
		UrgencyLevel:         "Consult healthcare provider",
		HomeRemedies:         []string{"Consult healthcare provider"},
		SupportiveCare:       []string{"Consult healthcare provider"},
		AdviceNextSteps:      "Please consult a healthcare provider",
		FirstAid:             nil,
		PossibleCauses:       []string{"Unable to determine"},
		FriendlySummary:      defaultSummary,
	}
}
