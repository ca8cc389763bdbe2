// Package embedding generates text embeddings through Ollama.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"symptom-triage/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"golang.org/x/sync/errgroup"
)

// OllamaEmbedder generates embeddings using Ollama API
type OllamaEmbedder struct {
	Client        *api.Client
	Model         string
	MaxRetries    int
	RetryWait     time.Duration
	Timeout       time.Duration
	MaxConcurrent int
}

// NewOllamaEmbedder creates a new Ollama embedder. An empty host uses
// OLLAMA_HOST or the local default.
func NewOllamaEmbedder(host string, model string) (*OllamaEmbedder, error) {
	hostURL, err := resolveHost(host)
	if err != nil {
		return nil, err
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	return &OllamaEmbedder{
		Client:        api.NewClient(hostURL, http.DefaultClient),
		Model:         model,
		MaxRetries:    3,
		RetryWait:     time.Second,
		Timeout:       time.Second * 30,
		MaxConcurrent: 3, // Limit concurrent requests based on hardware
	}, nil
}

func resolveHost(host string) (*url.URL, error) {
	if host == "" {
		return envconfig.Host(), nil
	}
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q", host)
	}
	return u, nil
}

// EmbedText generates an embedding for a text
func (e *OllamaEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64
	var err error

	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * e.RetryWait):
			}
		}

		embedding, err = e.createEmbedding(ctx, text)
		if err == nil {
			return embedding, nil
		}
	}

	return nil, fmt.Errorf("failed to create embedding after %d retries: %w", e.MaxRetries, err)
}

// createEmbedding is a helper function to create a single embedding
func (e *OllamaEmbedder) createEmbedding(ctx context.Context, text string) ([]float64, error) {
	req := api.EmbeddingRequest{
		Model:  e.Model,
		Prompt: text,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	resp, err := e.Client.Embeddings(ctxWithTimeout, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned an empty embedding", e.Model)
	}

	return resp.Embedding, nil
}

// EmbedBatchWithProgress embeds every chunk in place with at most
// MaxConcurrent requests in flight, reporting progress after each one. The
// first failure cancels the rest of the batch.
func (e *OllamaEmbedder) EmbedBatchWithProgress(ctx context.Context, chunks []models.TextChunk,
	progressFunc func(processed, total int)) ([]models.TextChunk, error) {

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.MaxConcurrent, 1))

	var mu sync.Mutex
	processed := 0

	for i := range chunks {
		g.Go(func() error {
			embedding, err := e.EmbedText(gctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", chunks[i].ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			chunks[i].Embedding = embedding
			processed++
			if progressFunc != nil {
				progressFunc(processed, len(chunks))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}
