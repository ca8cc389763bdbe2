// Package metrics provides Prometheus metrics for the triage pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "symptom_triage"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Analysis metrics
	AnalysesTotal   *prometheus.CounterVec
	AnalysisErrors  *prometheus.CounterVec
	AnalysisLatency *prometheus.HistogramVec
	UrgencyTotal    *prometheus.CounterVec

	// Parser metrics
	ParseFallbacks prometheus.Counter
	ParseFailures  prometheus.Counter

	// Retrieval metrics
	RetrievalQueries   *prometheus.CounterVec
	RetrievedPassages  prometheus.Histogram
	ExpansionFallbacks prometheus.Counter

	// Transcription metrics
	TranscriptionsTotal  *prometheus.CounterVec
	TranscriptionLatency prometheus.Histogram
	NoSpeechDetected     prometheus.Counter

	// Event publish metrics
	EventsPublished *prometheus.CounterVec
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of completed symptom analyses",
		}, []string{"mode", "category"}),
		AnalysisErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_errors_total",
			Help:      "Total number of failed symptom analyses",
		}, []string{"mode"}),
		AnalysisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "End-to-end analysis latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"mode"}),
		UrgencyTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urgency_total",
			Help:      "Analyses by classified urgency",
		}, []string{"urgency"}),

		ParseFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_fallbacks_total",
			Help:      "Model outputs with no recognisable section headers",
		}),
		ParseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Model outputs replaced by the safe default analysis",
		}),

		RetrievalQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_queries_total",
			Help:      "Knowledge-base retrievals by index",
		}, []string{"index"}),
		RetrievedPassages: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_passages",
			Help:      "Number of passages handed to generation",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		ExpansionFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_expansion_fallbacks_total",
			Help:      "Retrievals that fell back to the original query",
		}),

		TranscriptionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Audio transcriptions by outcome",
		}, []string{"outcome"}),
		TranscriptionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Audio transcription latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		NoSpeechDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_speech_detected_total",
			Help:      "Audio submissions rejected for containing no meaningful speech",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Analysis events published by backend and outcome",
		}, []string{"backend", "outcome"}),
	}
}

// RecordAnalysis records a completed analysis.
func (m *Metrics) RecordAnalysis(mode, category, urgency string, seconds float64) {
	m.AnalysesTotal.WithLabelValues(mode, category).Inc()
	m.AnalysisLatency.WithLabelValues(mode).Observe(seconds)
	m.UrgencyTotal.WithLabelValues(urgency).Inc()
}

// RecordAnalysisError records a failed analysis.
func (m *Metrics) RecordAnalysisError(mode string) {
	m.AnalysisErrors.WithLabelValues(mode).Inc()
}

// RecordParseFallback records an output with no recognisable sections.
func (m *Metrics) RecordParseFallback() {
	m.ParseFallbacks.Inc()
}

// RecordParseFailure records an output replaced by the safe default.
func (m *Metrics) RecordParseFailure() {
	m.ParseFailures.Inc()
}

// RecordRetrieval records a knowledge-base retrieval.
func (m *Metrics) RecordRetrieval(index string, passages int, expanded bool) {
	m.RetrievalQueries.WithLabelValues(index).Inc()
	m.RetrievedPassages.Observe(float64(passages))
	if !expanded {
		m.ExpansionFallbacks.Inc()
	}
}

// RecordTranscription records a transcription attempt.
func (m *Metrics) RecordTranscription(outcome string, seconds float64) {
	m.TranscriptionsTotal.WithLabelValues(outcome).Inc()
	m.TranscriptionLatency.Observe(seconds)
	if outcome == "no_speech" {
		m.NoSpeechDetected.Inc()
	}
}

// RecordEventPublish records an event publish attempt.
func (m *Metrics) RecordEventPublish(backend string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(backend, outcome).Inc()
}
