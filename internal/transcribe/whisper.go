package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultWhisperModels maps model sizes onto hosted Whisper deployments.
var DefaultWhisperModels = map[string]string{
	"tiny":   "whisper-large-v3-turbo",
	"base":   "whisper-large-v3-turbo",
	"small":  "whisper-large-v3-turbo",
	"medium": "whisper-large-v3-turbo",
	"large":  "whisper-large-v3",
}

// WhisperLoader selects a hosted Whisper model per size on an
// OpenAI-compatible audio API.
type WhisperLoader struct {
	client *openai.Client
	models map[string]string
}

// NewWhisperLoader creates a loader for the API at baseURL. A nil models map
// uses DefaultWhisperModels.
func NewWhisperLoader(apiKey, baseURL string, models map[string]string) (*WhisperLoader, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if models == nil {
		models = DefaultWhisperModels
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &WhisperLoader{
		client: openai.NewClientWithConfig(cfg),
		models: models,
	}, nil
}

// Load returns the recognizer for size.
func (l *WhisperLoader) Load(_ context.Context, size string) (Recognizer, error) {
	model, ok := l.models[strings.ToLower(size)]
	if !ok {
		return nil, fmt.Errorf("unknown whisper model size %q", size)
	}
	return &whisperRecognizer{client: l.client, model: model}, nil
}

type whisperRecognizer struct {
	client *openai.Client
	model  string
}

func (w *whisperRecognizer) Recognize(ctx context.Context, audioPath string) (Result, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Text: resp.Text, Language: resp.Language}, nil
}
