// Package triage runs the symptom analysis pipeline: prompt construction,
// optional knowledge retrieval, generation and structured parsing.
package triage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"symptom-triage/internal/events"
	"symptom-triage/internal/knowledge"
	"symptom-triage/internal/llm"
	"symptom-triage/internal/logging"
	"symptom-triage/internal/metrics"
	"symptom-triage/internal/models"
	"symptom-triage/internal/parser"
	"symptom-triage/internal/prompt"
)

// Retrieval modes reported by RetrievalMode.
const (
	ModeRAG    = "rag"
	ModeDirect = "direct"
)

const eventPublishTimeout = 5 * time.Second

// AudioTranscriber converts raw audio into a transcript.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, modelSize string) (models.Transcript, error)
}

// Settings tunes the pipeline.
type Settings struct {
	RetrievalK           int
	QueryExpansions      int
	AnalysisTimeout      time.Duration
	TranscriptionTimeout time.Duration
}

// DefaultSettings returns the standard pipeline settings.
func DefaultSettings() Settings {
	return Settings{
		RetrievalK:           3,
		QueryExpansions:      3,
		AnalysisTimeout:      90 * time.Second,
		TranscriptionTimeout: 120 * time.Second,
	}
}

// Resources are the long-lived handles created once at startup. Either index
// may be nil; with both nil the analyzer generates without retrieval.
type Resources struct {
	LLM          llm.Generator
	Embedder     knowledge.Embedder
	SymptomIndex knowledge.Index
	MedicalIndex knowledge.Index
	Transcriber  AudioTranscriber
	Parser       *parser.Parser
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Settings     Settings
}

// Analyzer is safe for concurrent use. It never mutates its resources.
type Analyzer struct {
	res         Resources
	retriever   *knowledge.Retriever
	initialized bool
}

// New validates res and builds the analyzer. The retriever is built over the
// symptom index when present, otherwise the medical index.
func New(res Resources) (*Analyzer, error) {
	if res.LLM == nil {
		return nil, fmt.Errorf("%w: language model is required", ErrInitializationFailed)
	}
	index := knowledge.SelectIndex(res.SymptomIndex, res.MedicalIndex)
	if index != nil && res.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required for retrieval", ErrInitializationFailed)
	}

	if res.Parser == nil {
		res.Parser = parser.New(parser.DefaultLimits(), res.Logger)
	}
	if res.Publisher == nil {
		res.Publisher = events.NewLogPublisher(res.Logger)
	}
	if res.Metrics == nil {
		res.Metrics = metrics.New(prometheus.NewRegistry())
	}
	defaults := DefaultSettings()
	if res.Settings.AnalysisTimeout <= 0 {
		res.Settings.AnalysisTimeout = defaults.AnalysisTimeout
	}
	if res.Settings.TranscriptionTimeout <= 0 {
		res.Settings.TranscriptionTimeout = defaults.TranscriptionTimeout
	}
	if res.Settings.RetrievalK <= 0 {
		res.Settings.RetrievalK = defaults.RetrievalK
	}

	a := &Analyzer{res: res}
	if index != nil {
		a.retriever = knowledge.NewRetriever(index, res.Embedder, res.LLM, knowledge.Options{
			K:          res.Settings.RetrievalK,
			Expansions: res.Settings.QueryExpansions,
			Logger:     res.Logger,
			Metrics:    res.Metrics,
		})
		res.Logger.Info().Str("index", index.Name()).Msg("Knowledge retrieval enabled")
	} else {
		res.Logger.Warn().Msg("No knowledge index available, analyses use direct generation")
	}
	a.initialized = true
	return a, nil
}

// Initialized reports whether the analyzer was built successfully.
func (a *Analyzer) Initialized() bool {
	return a != nil && a.initialized
}

// RetrievalMode returns ModeRAG when an index is loaded, ModeDirect otherwise.
func (a *Analyzer) RetrievalMode() string {
	if a.Initialized() && a.retriever != nil {
		return ModeRAG
	}
	return ModeDirect
}

// IndexName returns the name of the index in use, or "" in direct mode.
func (a *Analyzer) IndexName() string {
	if a.Initialized() && a.retriever != nil {
		return a.retriever.IndexName()
	}
	return ""
}

// TranscriptionAvailable reports whether a speech backend is configured.
func (a *Analyzer) TranscriptionAvailable() bool {
	return a.Initialized() && a.res.Transcriber != nil
}

// Analyze produces the structured triage analysis of transcript for category.
// Parsing never fails; only generation and retrieval errors are returned.
func (a *Analyzer) Analyze(ctx context.Context, transcript string, category prompt.Category) (models.StructuredAnalysis, error) {
	if !a.Initialized() {
		return models.StructuredAnalysis{}, ErrNotInitialized
	}
	if strings.TrimSpace(transcript) == "" {
		return models.StructuredAnalysis{}, ErrEmptyTranscript
	}

	requestID := RequestIDFrom(ctx)
	logger := logging.WithRequest(a.res.Logger, requestID)
	mode := a.RetrievalMode()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.res.Settings.AnalysisTimeout)
	defer cancel()

	p := prompt.Build(transcript, category)

	var raw string
	var err error
	if a.retriever != nil {
		raw, _, err = a.retriever.Answer(ctx, p, 0)
	} else {
		raw, err = a.res.LLM.Generate(ctx, p)
	}
	if err != nil {
		a.res.Metrics.RecordAnalysisError(mode)
		logger.Error().Err(err).Str("mode", mode).Str("category", category.Kind.String()).Msg("Analysis failed")
		return models.StructuredAnalysis{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	analysis, outcome := a.res.Parser.ParseWithOutcome(raw)
	switch outcome {
	case parser.OutcomeFallback:
		a.res.Metrics.RecordParseFallback()
	case parser.OutcomeFailed:
		a.res.Metrics.RecordParseFailure()
	}

	elapsed := time.Since(start)
	urgency := models.ClassifyUrgency(analysis.UrgencyLevel)
	a.res.Metrics.RecordAnalysis(mode, category.Kind.String(), string(urgency), elapsed.Seconds())

	logger.Info().
		Str("mode", mode).
		Str("category", category.Kind.String()).
		Str("urgency", string(urgency)).
		Str("parse", outcome.String()).
		Dur("duration", elapsed).
		Msg("Analysis completed")

	a.publish(ctx, logger, events.AnalysisCompleted{
		RequestID:       requestID,
		Category:        category.Kind.String(),
		Mode:            mode,
		UrgencyLevel:    analysis.UrgencyLevel,
		UrgencyCategory: string(urgency),
		Specialty:       analysis.RecommendedSpecialty,
		DurationMS:      elapsed.Milliseconds(),
		Timestamp:       time.Now().UTC(),
	})

	return analysis, nil
}

// publish delivers the event without failing the request.
func (a *Analyzer) publish(ctx context.Context, logger zerolog.Logger, event events.AnalysisCompleted) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	err := a.res.Publisher.PublishAnalysis(ctx, event)
	a.res.Metrics.RecordEventPublish(a.res.Publisher.Backend(), err)
	if err != nil {
		logger.Warn().Err(err).Str("backend", a.res.Publisher.Backend()).Msg("Failed to publish analysis event")
	}
}

// QueryKnowledgeBase answers a free-form question from the knowledge index.
func (a *Analyzer) QueryKnowledgeBase(ctx context.Context, query string, maxResults int) (string, []models.Passage, error) {
	if !a.Initialized() {
		return "", nil, ErrNotInitialized
	}
	if a.retriever == nil {
		return "", nil, ErrRetrievalUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return "", nil, ErrEmptyTranscript
	}
	if maxResults <= 0 {
		maxResults = a.res.Settings.RetrievalK
	}

	ctx, cancel := context.WithTimeout(ctx, a.res.Settings.AnalysisTimeout)
	defer cancel()

	answer, sources, err := a.retriever.Answer(ctx, query, maxResults)
	if err != nil {
		a.res.Metrics.RecordAnalysisError("knowledge")
		return "", nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return answer, sources, nil
}

// RetrievePassages returns the passages retrieval finds for query, without
// generating an answer.
func (a *Analyzer) RetrievePassages(ctx context.Context, query string) ([]models.Passage, error) {
	if !a.Initialized() {
		return nil, ErrNotInitialized
	}
	if a.retriever == nil {
		return nil, ErrRetrievalUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyTranscript
	}

	ctx, cancel := context.WithTimeout(ctx, a.res.Settings.AnalysisTimeout)
	defer cancel()

	passages, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		a.res.Metrics.RecordAnalysisError("knowledge")
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return passages, nil
}

// DirectQuery asks the language model a medical question without retrieval.
func (a *Analyzer) DirectQuery(ctx context.Context, query string) (string, error) {
	if !a.Initialized() {
		return "", ErrNotInitialized
	}
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyTranscript
	}

	ctx, cancel := context.WithTimeout(ctx, a.res.Settings.AnalysisTimeout)
	defer cancel()

	out, err := a.res.LLM.Generate(ctx, prompt.DirectQuery(query))
	if err != nil {
		a.res.Metrics.RecordAnalysisError("llm")
		return "", fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return out, nil
}

// TranscribeAudio decodes base64 audio and transcribes it with the model of
// the given size. An empty size uses the configured default.
func (a *Analyzer) TranscribeAudio(ctx context.Context, base64Audio, modelSize string) (models.Transcript, error) {
	if !a.Initialized() {
		return models.Transcript{}, ErrNotInitialized
	}
	if a.res.Transcriber == nil {
		return models.Transcript{}, ErrTranscriptionUnavailable
	}

	audio, err := decodeAudio(base64Audio)
	if err != nil {
		return models.Transcript{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.res.Settings.TranscriptionTimeout)
	defer cancel()

	start := time.Now()
	t, err := a.res.Transcriber.Transcribe(ctx, audio, modelSize)
	elapsed := time.Since(start).Seconds()

	logger := logging.WithRequest(a.res.Logger, RequestIDFrom(ctx))
	switch {
	case errors.Is(err, ErrNoSpeechDetected):
		a.res.Metrics.RecordTranscription("no_speech", elapsed)
		logger.Info().Int("bytes", len(audio)).Msg("No speech detected in audio")
		return models.Transcript{}, err
	case err != nil:
		a.res.Metrics.RecordTranscription("error", elapsed)
		logger.Error().Err(err).Msg("Transcription failed")
		return models.Transcript{}, err
	}

	a.res.Metrics.RecordTranscription("ok", elapsed)
	logger.Info().Str("language", t.Language).Int("chars", len(t.Text)).Msg("Audio transcribed")
	return t, nil
}

// AnalyzeAudio transcribes audio and analyzes the transcript.
func (a *Analyzer) AnalyzeAudio(ctx context.Context, base64Audio, modelSize string, category prompt.Category) (models.Transcript, models.StructuredAnalysis, error) {
	t, err := a.TranscribeAudio(ctx, base64Audio, modelSize)
	if err != nil {
		return models.Transcript{}, models.StructuredAnalysis{}, err
	}
	analysis, err := a.Analyze(ctx, t.Text, category)
	if err != nil {
		return t, models.StructuredAnalysis{}, err
	}
	return t, analysis, nil
}

// decodeAudio accepts standard or URL-safe base64, optionally as a data URL.
func decodeAudio(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAudio)
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if audio, err := enc.DecodeString(payload); err == nil {
			return audio, nil
		}
	}
	return nil, fmt.Errorf("%w: not valid base64", ErrInvalidAudio)
}

type requestIDKey struct{}

// WithRequestID attaches a request id used for logs and events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id in ctx, or a new one.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
