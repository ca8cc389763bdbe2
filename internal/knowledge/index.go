// Package knowledge searches the pre-built medical knowledge indices and
// answers questions from the passages it finds.
package knowledge

import "context"

// Hit is one passage returned by an index search. Higher scores are closer.
type Hit struct {
	Content  string
	Metadata map[string]any
	Score    float64
}

// Index is a read-only similarity-searchable collection of passages.
type Index interface {
	Name() string
	Search(ctx context.Context, embedding []float64, limit int) ([]Hit, error)
}

// Embedder turns text into a vector in the same space as the index.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SelectIndex returns the primary symptom index when it is present, the
// medical index otherwise, and nil when neither exists.
func SelectIndex(symptom, medical Index) Index {
	if symptom != nil {
		return symptom
	}
	if medical != nil {
		return medical
	}
	return nil
}
