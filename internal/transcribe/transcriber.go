// Package transcribe turns recorded audio into text with a lazily loaded
// speech model.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"symptom-triage/internal/models"
)

// ErrNoSpeechDetected is returned when the audio yields no meaningful text.
var ErrNoSpeechDetected = errors.New("no meaningful speech detected in audio")

// MinTranscriptChars is the shortest trimmed transcript accepted as speech.
const MinTranscriptChars = 3

// Result is the raw output of one recognition.
type Result struct {
	Text     string
	Language string
}

// Recognizer is a loaded speech model. It reads the audio from a file path.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (Result, error)
}

// Loader loads the speech model for a size such as "base" or "large".
type Loader interface {
	Load(ctx context.Context, size string) (Recognizer, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, size string) (Recognizer, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, size string) (Recognizer, error) {
	return f(ctx, size)
}

// Transcriber holds at most one loaded model at a time and reloads it when a
// different size is requested.
type Transcriber struct {
	loader      Loader
	defaultSize string
	logger      zerolog.Logger

	// TempDir is where audio is staged during recognition. Empty means the
	// system temp directory.
	TempDir string

	mu    sync.Mutex
	size  string
	model Recognizer
}

// New creates a transcriber. Nothing is loaded until the first call.
func New(loader Loader, defaultSize string, logger zerolog.Logger) *Transcriber {
	if defaultSize == "" {
		defaultSize = "medium"
	}
	return &Transcriber{
		loader:      loader,
		defaultSize: defaultSize,
		logger:      logger,
	}
}

// LoadedSize returns the size of the cached model, or "" if none is loaded.
func (t *Transcriber) LoadedSize() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Transcribe recognizes speech in audio with the model of the given size. An
// empty size uses the default.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, size string) (models.Transcript, error) {
	if len(audio) == 0 {
		return models.Transcript{}, ErrNoSpeechDetected
	}
	if size == "" {
		size = t.defaultSize
	}

	model, err := t.acquire(ctx, size)
	if err != nil {
		return models.Transcript{}, err
	}

	f, err := os.CreateTemp(t.TempDir, "triage-audio-*"+audioExtension(audio))
	if err != nil {
		return models.Transcript{}, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove temp audio file")
		}
	}()

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return models.Transcript{}, fmt.Errorf("failed to write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return models.Transcript{}, fmt.Errorf("failed to write temp audio file: %w", err)
	}

	res, err := model.Recognize(ctx, path)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("transcription failed: %w", err)
	}

	text := strings.TrimSpace(res.Text)
	if utf8.RuneCountInString(text) < MinTranscriptChars {
		return models.Transcript{}, ErrNoSpeechDetected
	}

	return models.Transcript{Text: text, Language: res.Language}, nil
}

// audioExtension picks a file extension from the audio's magic bytes.
// Hosted speech APIs infer the container format from the file name.
func audioExtension(audio []byte) string {
	switch http.DetectContentType(audio) {
	case "audio/mpeg":
		return ".mp3"
	case "application/ogg":
		return ".ogg"
	case "video/webm":
		return ".webm"
	case "video/mp4":
		return ".m4a"
	case "audio/aiff":
		return ".aiff"
	default:
		return ".wav"
	}
}

// acquire returns the cached model for size, loading it first if needed. The
// lock is held across the load so concurrent callers never load twice.
func (t *Transcriber) acquire(ctx context.Context, size string) (Recognizer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model != nil && t.size == size {
		return t.model, nil
	}

	t.logger.Info().Str("size", size).Str("previous", t.size).Msg("Loading speech model")
	model, err := t.loader.Load(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("failed to load speech model %q: %w", size, err)
	}

	t.model = model
	t.size = size
	return model, nil
}
