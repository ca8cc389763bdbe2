package prompt

import "strings"

// Kind is the closed set of patient categories that select a template.
type Kind int

const (
	// KindGeneral is the fallback for any label that is not recognised.
	KindGeneral Kind = iota
	KindPregnant
	KindNewborn
)

func (k Kind) String() string {
	switch k {
	case KindPregnant:
		return "pregnant"
	case KindNewborn:
		return "newborn"
	default:
		return "general"
	}
}

// Category is a parsed patient category. General categories keep the
// caller's label so the template can address the patient group by name.
type Category struct {
	Kind  Kind
	Label string
}

var categoryAliases = map[string]Kind{
	"pregnant":         KindPregnant,
	"pregnant woman":   KindPregnant,
	"pregnant women":   KindPregnant,
	"pregnent women":   KindPregnant,
	"pregnent woman":   KindPregnant,
	"pregnancy":        KindPregnant,
	"maternal":         KindPregnant,
	"expectant mother": KindPregnant,
	"newborn":          KindNewborn,
	"newborns":         KindNewborn,
	"neonate":          KindNewborn,
	"infant":           KindNewborn,
}

// ParseCategory maps an open category label onto a Category. Matching is
// case-insensitive and ignores surrounding and repeated whitespace.
func ParseCategory(label string) Category {
	normalized := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if kind, ok := categoryAliases[normalized]; ok {
		return Category{Kind: kind, Label: normalized}
	}
	if normalized == "" {
		normalized = "adult"
	}
	return Category{Kind: KindGeneral, Label: normalized}
}

// Specialized reports whether the category uses the long-form maternal template.
func (c Category) Specialized() bool {
	return c.Kind == KindPregnant || c.Kind == KindNewborn
}

func (c Category) String() string {
	return c.Label
}
