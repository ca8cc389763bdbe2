package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes events on a NATS subject.
type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher connects to url. The connection keeps retrying in the
// background if the server is not reachable yet.
func NewNATSPublisher(url, token, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	if subject == "" {
		subject = SubjectAnalysisCompleted
	}

	opts := []nats.Option{
		nats.Name("symptom-triage"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info().Str("url", url).Str("subject", subject).Msg("NATS publisher initialized")
	return &NATSPublisher{conn: nc, subject: subject, logger: logger}, nil
}

// PublishAnalysis publishes the event as JSON.
func (p *NATSPublisher) PublishAnalysis(_ context.Context, event AnalysisCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Backend returns "nats".
func (p *NATSPublisher) Backend() string { return "nats" }

// Close closes the connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
