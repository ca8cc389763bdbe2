// Package events publishes analysis lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// SubjectAnalysisCompleted is the NATS subject and default Kafka topic for
// finished analyses.
const SubjectAnalysisCompleted = "triage.analysis.completed"

// AnalysisCompleted is emitted after every successful analysis. It carries no
// transcript text.
type AnalysisCompleted struct {
	RequestID       string    `json:"request_id"`
	Category        string    `json:"category"`
	Mode            string    `json:"mode"`
	UrgencyLevel    string    `json:"urgency_level"`
	UrgencyCategory string    `json:"urgency_category"`
	Specialty       string    `json:"recommended_specialty"`
	DurationMS      int64     `json:"duration_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher delivers analysis events.
type Publisher interface {
	PublishAnalysis(ctx context.Context, event AnalysisCompleted) error
	Backend() string
	Close() error
}

// LogPublisher writes events to the log only.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishAnalysis logs the event at debug level.
func (p *LogPublisher) PublishAnalysis(_ context.Context, event AnalysisCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Debug().
		Str("subject", SubjectAnalysisCompleted).
		RawJSON("payload", payload).
		Msg("Analysis event")
	return nil
}

// Backend returns "log".
func (p *LogPublisher) Backend() string { return "log" }

// Close does nothing.
func (p *LogPublisher) Close() error { return nil }
