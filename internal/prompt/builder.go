// Package prompt renders the clinical triage prompts sent to the language model.
package prompt

import (
	"fmt"
	"strings"
)

// Build renders the analysis prompt for a transcript and patient category.
func Build(transcript string, category Category) string {
	transcript = strings.TrimSpace(transcript)

	switch category.Kind {
	case KindPregnant:
		return fmt.Sprintf(maternalTemplate, "pregnant women", transcript, RedFlagInstruction)
	case KindNewborn:
		return fmt.Sprintf(maternalTemplate, "pregnant women and newborns", transcript, RedFlagInstruction)
	default:
		return fmt.Sprintf(generalTemplate, category.Label, transcript, renderSectionList())
	}
}

// DirectQuery wraps a free-form question in the medical assistant preamble.
func DirectQuery(query string) string {
	return fmt.Sprintf(directQueryTemplate, strings.TrimSpace(query))
}

func renderSectionList() string {
	var sb strings.Builder
	for _, s := range Sections {
		sb.WriteString(fmt.Sprintf("%s: %s\n", s.Marker(), generalInstructions[s.Number]))
	}
	return sb.String()
}
