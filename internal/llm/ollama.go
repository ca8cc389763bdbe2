package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaLLM handles interactions with the Ollama LLM API
type OllamaLLM struct {
	Client  *api.Client
	Model   string
	Options Options
}

// NewOllamaLLM creates a new Ollama LLM client. An empty host uses
// OLLAMA_HOST or the local default.
func NewOllamaLLM(host string, model string, opts Options) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid ollama host %q", host)
		}
		hostURL = u
	}

	return &OllamaLLM{
		Client:  api.NewClient(hostURL, http.DefaultClient),
		Model:   model,
		Options: opts,
	}, nil
}

// Generate generates a response from the LLM
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": o.Options.Temperature,
			"num_predict": o.Options.MaxTokens,
		},
	}

	var responseBuilder strings.Builder

	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	out := strings.TrimSpace(responseBuilder.String())
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}
