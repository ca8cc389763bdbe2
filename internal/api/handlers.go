package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"symptom-triage/internal/models"
	"symptom-triage/internal/prompt"
	"symptom-triage/internal/triage"
)

// AnalyzeRequest is the payload for POST /analyze
type AnalyzeRequest struct {
	Transcript string `json:"transcript"`
	Category   string `json:"category"`
}

// AnalyzeResponse wraps a structured analysis with triage metadata
type AnalyzeResponse struct {
	RequestID       string                    `json:"request_id"`
	Category        string                    `json:"category"`
	Mode            string                    `json:"mode"`
	UrgencyCategory models.Urgency            `json:"urgency_category"`
	Analysis        models.StructuredAnalysis `json:"analysis"`
}

// TranscribeRequest carries base64 audio, optionally as a data URL
type TranscribeRequest struct {
	Audio     string `json:"audio"`
	ModelSize string `json:"model_size,omitempty"`
}

type TranscribeResponse struct {
	RequestID string `json:"request_id"`
	models.Transcript
}

type AnalyzeAudioRequest struct {
	Audio     string `json:"audio"`
	ModelSize string `json:"model_size,omitempty"`
	Category  string `json:"category"`
}

type AnalyzeAudioResponse struct {
	AnalyzeResponse
	Transcript models.Transcript `json:"transcription"`
}

// QueryRequest is shared by the knowledge-base and direct LLM endpoints
type QueryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type QueryResponse struct {
	RequestID string `json:"request_id"`
	models.Response
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !s.decode(w, r, &req) {
		return
	}

	category := prompt.ParseCategory(req.Category)
	analysis, err := s.triage.Analyze(r.Context(), req.Transcript, category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzeResponse(r.Context(), category, analysis))
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	var req TranscribeRequest
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.triage.TranscribeAudio(r.Context(), req.Audio, req.ModelSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TranscribeResponse{
		RequestID:  triage.RequestIDFrom(r.Context()),
		Transcript: t,
	})
}

func (s *Server) analyzeAudio(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeAudioRequest
	if !s.decode(w, r, &req) {
		return
	}

	category := prompt.ParseCategory(req.Category)
	t, analysis, err := s.triage.AnalyzeAudio(r.Context(), req.Audio, req.ModelSize, category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeAudioResponse{
		AnalyzeResponse: s.analyzeResponse(r.Context(), category, analysis),
		Transcript:      t,
	})
}

func (s *Server) knowledgeQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.MaxResults < 0 {
		s.writeError(w, r, fmt.Errorf("%w: max_results must not be negative", errBadRequest))
		return
	}

	answer, sources, err := s.triage.QueryKnowledgeBase(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []models.Passage{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		RequestID: triage.RequestIDFrom(r.Context()),
		Response: models.Response{
			Answer:    answer,
			Sources:   sources,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) llmQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	answer, err := s.triage.DirectQuery(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		RequestID: triage.RequestIDFrom(r.Context()),
		Response: models.Response{
			Answer:    answer,
			Sources:   []models.Passage{},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) analyzeResponse(ctx context.Context, category prompt.Category, analysis models.StructuredAnalysis) AnalyzeResponse {
	return AnalyzeResponse{
		RequestID:       triage.RequestIDFrom(ctx),
		Category:        category.String(),
		Mode:            s.triage.RetrievalMode(),
		UrgencyCategory: models.ClassifyUrgency(analysis.UrgencyLevel),
		Analysis:        analysis,
	}
}

var errBadRequest = errors.New("invalid request")

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err))
		return false
	}
	return true
}

// statusFor maps analyzer errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, triage.ErrEmptyTranscript),
		errors.Is(err, triage.ErrInvalidAudio):
		return http.StatusBadRequest
	case errors.Is(err, triage.ErrNoSpeechDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, triage.ErrNotInitialized),
		errors.Is(err, triage.ErrRetrievalUnavailable),
		errors.Is(err, triage.ErrTranscriptionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, triage.ErrAnalysisFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	id := triage.RequestIDFrom(r.Context())
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", id).Str("path", r.URL.Path).Int("status", code).Msg("Request failed")
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), RequestID: id})
}
