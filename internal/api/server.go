// Package api exposes the triage analyzer over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"symptom-triage/internal/logging"
	"symptom-triage/internal/models"
	"symptom-triage/internal/prompt"
	"symptom-triage/internal/triage"
)

// maxBodyBytes bounds request bodies; base64 audio is the largest payload.
const maxBodyBytes = 32 << 20

// Triage is the analyzer surface the server depends on.
type Triage interface {
	Initialized() bool
	RetrievalMode() string
	IndexName() string
	TranscriptionAvailable() bool
	Analyze(ctx context.Context, transcript string, category prompt.Category) (models.StructuredAnalysis, error)
	TranscribeAudio(ctx context.Context, base64Audio, modelSize string) (models.Transcript, error)
	AnalyzeAudio(ctx context.Context, base64Audio, modelSize string, category prompt.Category) (models.Transcript, models.StructuredAnalysis, error)
	QueryKnowledgeBase(ctx context.Context, query string, maxResults int) (string, []models.Passage, error)
	DirectQuery(ctx context.Context, query string) (string, error)
}

type Server struct {
	router  *chi.Mux
	port    int
	triage  Triage
	logger  zerolog.Logger
	started time.Time
}

// NewServer builds the router. Metrics are served from gatherer.
func NewServer(port int, t Triage, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		triage:  t,
		logger:  logger,
		started: time.Now(),
	}

	router.Get("/health", s.health)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	router.Route("/api/v1/triage", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Post("/analyze", s.analyze)
		r.Post("/transcribe", s.transcribe)
		r.Post("/analyze-audio", s.analyzeAudio)
		r.Post("/knowledge/query", s.knowledgeQuery)
		r.Post("/llm/query", s.llmQuery)
	})

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("API server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info().Msg("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Service       string  `json:"service"`
	Initialized   bool    `json:"initialized"`
	Mode          string  `json:"mode"`
	Index         string  `json:"index,omitempty"`
	Transcription bool    `json:"transcription"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Service:       "symptom-triage",
		Initialized:   s.triage.Initialized(),
		Mode:          s.triage.RetrievalMode(),
		Index:         s.triage.IndexName(),
		Transcription: s.triage.TranscriptionAvailable(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	code := http.StatusOK
	if !resp.Initialized {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// requestID propagates X-Request-ID, generating a uuid when absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(triage.WithRequestID(r.Context(), id)))
	})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			l := logging.WithRequest(logger, triage.RequestIDFrom(r.Context()))
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
