// Package llm wraps the language models used for analysis and retrieval.
package llm

import (
	"context"
	"errors"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyCompletion is returned when a model answers with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Options are the sampling settings shared by every provider.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// DefaultOptions returns low-temperature sampling with a 1024 token budget.
func DefaultOptions() Options {
	return Options{Temperature: 0.3, MaxTokens: 1024}
}
