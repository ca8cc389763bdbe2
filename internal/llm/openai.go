package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAILLM calls an OpenAI-compatible chat completion API. Groq is the
// default deployment.
type OpenAILLM struct {
	client  *openai.Client
	model   string
	options Options
}

// NewOpenAILLM constructs a chat client for baseURL. An empty baseURL uses
// the OpenAI endpoint.
func NewOpenAILLM(apiKey, baseURL, model string, opts Options) (*OpenAILLM, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if model == "" {
		return nil, errors.New("model is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAILLM{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		options: opts,
	}, nil
}

// Generate sends prompt as a single user message and returns the reply.
func (c *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(c.options.Temperature),
		MaxTokens:   c.options.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}
