// Package app wires configuration into a ready analyzer.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"symptom-triage/internal/config"
	"symptom-triage/internal/database"
	"symptom-triage/internal/embedding"
	"symptom-triage/internal/events"
	"symptom-triage/internal/knowledge"
	"symptom-triage/internal/llm"
	"symptom-triage/internal/logging"
	"symptom-triage/internal/metrics"
	"symptom-triage/internal/parser"
	"symptom-triage/internal/transcribe"
	"symptom-triage/internal/triage"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         config.Config
	Analyzer    *triage.Analyzer
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics

	closers []func() error
}

// Bootstrap builds every long-lived resource eagerly. Any failure is wrapped
// in triage.ErrInitializationFailed and leaves nothing open.
func Bootstrap(ctx context.Context, cfg config.Config) (*Application, error) {
	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %w", triage.ErrInitializationFailed, err)
	}

	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Str("mode", a.Analyzer.RetrievalMode()).
		Str("index", a.Analyzer.IndexName()).
		Str("llm", cfg.LLMProvider).
		Str("stt", cfg.STTProvider).
		Str("events", cfg.EventsBackend).
		Msg("Symptom triage analyzer ready")
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg := a.Cfg

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	model, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	embedder, err := embedding.NewOllamaEmbedder(cfg.OllamaHost, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	symptom, medical, err := a.loadIndices(ctx)
	if err != nil {
		return err
	}

	transcriber, err := a.newTranscriber(ctx)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, publisher.Close)

	res := triage.Resources{
		LLM:          model,
		Embedder:     embedder,
		SymptomIndex: symptom,
		MedicalIndex: medical,
		Parser: parser.New(parser.Limits{
			DetailsChars:  cfg.ParserDetailsChars,
			TextChars:     cfg.ParserTextChars,
			FallbackChars: cfg.ParserFallbackChars,
			MaxListItems:  cfg.ParserMaxListItems,
		}, logging.WithComponent("parser")),
		Publisher: publisher,
		Metrics:   a.Metrics,
		Logger:    logging.WithComponent("analyzer"),
		Settings: triage.Settings{
			RetrievalK:           cfg.RetrievalK,
			QueryExpansions:      cfg.QueryExpansionCount,
			AnalysisTimeout:      cfg.AnalysisTimeout,
			TranscriptionTimeout: cfg.TranscriptionTimeout,
		},
	}
	if transcriber != nil {
		res.Transcriber = transcriber
	}

	a.Analyzer, err = triage.New(res)
	return err
}

func newGenerator(cfg config.Config) (llm.Generator, error) {
	opts := llm.Options{Temperature: cfg.LLMTemperature, MaxTokens: cfg.LLMMaxTokens}
	switch cfg.LLMProvider {
	case "groq", "openai":
		g, err := llm.NewOpenAILLM(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLMProvider, err)
		}
		return g, nil
	case "ollama":
		g, err := llm.NewOllamaLLM(cfg.OllamaHost, cfg.OllamaModel, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// loadIndices checks for each index before loading it. A missing index is
// not an error; a present but unreadable one is.
func (a *Application) loadIndices(ctx context.Context) (symptom, medical knowledge.Index, err error) {
	cfg := a.Cfg
	switch cfg.IndexBackend {
	case "file":
		symptom, err = a.loadFileIndex(filepath.Join(cfg.VectorStoreDir, cfg.SymptomIndex))
		if err != nil {
			return nil, nil, err
		}
		medical, err = a.loadFileIndex(filepath.Join(cfg.VectorStoreDir, cfg.MedicalIndex))
		if err != nil {
			return nil, nil, err
		}
		return symptom, medical, nil

	case "postgres":
		db, err := database.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		for _, name := range []string{cfg.SymptomIndex, cfg.MedicalIndex} {
			exists, err := db.StoreExists(ctx, name)
			if err != nil {
				return nil, nil, err
			}
			if !exists {
				a.Logger.Warn().Str("store", name).Msg("Knowledge store not found")
				continue
			}
			a.Logger.Info().Str("store", name).Msg("Knowledge store found")
			if name == cfg.SymptomIndex {
				symptom = db.Store(name)
			} else {
				medical = db.Store(name)
			}
		}
		return symptom, medical, nil

	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func (a *Application) loadFileIndex(dir string) (knowledge.Index, error) {
	if !knowledge.FileIndexExists(dir) {
		a.Logger.Warn().Str("path", dir).Msg("Knowledge index not found")
		return nil, nil
	}
	idx, err := knowledge.LoadFileIndex(dir)
	if err != nil {
		return nil, err
	}
	a.Logger.Info().Str("path", dir).Int("passages", idx.Len()).Msg("Knowledge index loaded")
	return idx, nil
}

func (a *Application) newTranscriber(ctx context.Context) (*transcribe.Transcriber, error) {
	cfg := a.Cfg
	var loader transcribe.Loader

	switch cfg.STTProvider {
	case "whisper":
		l, err := transcribe.NewWhisperLoader(cfg.GroqAPIKey, cfg.GroqBaseURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create whisper loader: %w", err)
		}
		loader = l
	case "google":
		l, err := transcribe.NewGoogleLoader(ctx, transcribe.GoogleConfig{
			LanguageCode:  cfg.STTLanguageCode,
			AudioEncoding: cfg.STTAudioEncoding,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, l.Close)
		loader = l
	case "none", "":
		a.Logger.Warn().Msg("Speech transcription disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}

	return transcribe.New(loader, cfg.WhisperDefaultSize, logging.WithComponent("transcriber")), nil
}

func newPublisher(cfg config.Config) (events.Publisher, error) {
	logger := logging.WithComponent("events")
	switch cfg.EventsBackend {
	case "nats":
		return events.NewNATSPublisher(cfg.NatsURL, cfg.NatsToken, events.SubjectAnalysisCompleted, logger)
	case "kafka":
		return events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
	case "none", "":
		logger.Info().Msg("Event publishing disabled, using log-only mode")
		return events.NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

// Close releases connections in reverse order of creation.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
