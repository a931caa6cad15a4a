// Package events publishes completed evaluations to NATS so downstream
// consumers (grade books, analytics) can react without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MrWong99/speakeval/internal/evaluation"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
	"github.com/MrWong99/speakeval/internal/observe"
)

// SubjectCompleted returns the subject completed evaluations are published
// on.
func SubjectCompleted(prefix string) string { return prefix + ".evaluation.completed" }

// CompletedEvent is the payload of an evaluation.completed message. It omits
// the debug trace.
type CompletedEvent struct {
	EvaluationID  string             `json:"evaluation_id"`
	Verdict       evaluation.Verdict `json:"verdict"`
	IsCorrect     bool               `json:"is_correct"`
	Scores        scoring.Scores     `json:"scores"`
	Feedback      string             `json:"feedback"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// NewCompletedEvent builds the event for ev.
func NewCompletedEvent(ev evaluation.Evaluation) CompletedEvent {
	return CompletedEvent{
		EvaluationID:  ev.ID,
		Verdict:       ev.Verdict,
		IsCorrect:     ev.IsCorrect,
		Scores:        ev.Scores,
		Feedback:      ev.Feedback,
		CorrelationID: ev.Debug.CorrelationID,
		Metadata:      ev.Debug.Metadata,
		CreatedAt:     ev.CreatedAt,
	}
}

// Publisher announces finished evaluations.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev evaluation.Evaluation) error
	Close()
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishCompleted(context.Context, evaluation.Evaluation) error { return nil }
func (Nop) Close()                                                        {}

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events as JSON on a core NATS connection.
type NATSPublisher struct {
	conn    conn
	prefix  string
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option configures a [NATSPublisher].
type Option func(*NATSPublisher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *NATSPublisher) { p.logger = l }
}

// WithMetrics sets the metric instruments. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *NATSPublisher) { p.metrics = m }
}

// Connect dials url and returns a publisher for subjects under prefix. The
// connection retries in the background if the server is not yet reachable.
func Connect(url, prefix string, opts ...Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("speakeval"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	return newPublisher(nc, prefix, opts...), nil
}

func newPublisher(c conn, prefix string, opts ...Option) *NATSPublisher {
	p := &NATSPublisher{conn: c, prefix: prefix}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// PublishCompleted publishes ev on [SubjectCompleted].
func (p *NATSPublisher) PublishCompleted(ctx context.Context, ev evaluation.Evaluation) error {
	payload, err := json.Marshal(NewCompletedEvent(ev))
	if err != nil {
		p.metrics.RecordEvent(ctx, "error")
		return fmt.Errorf("events: marshal: %w", err)
	}
	subject := SubjectCompleted(p.prefix)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.metrics.RecordEvent(ctx, "error")
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	p.metrics.RecordEvent(ctx, "ok")
	p.logger.DebugContext(ctx, "evaluation event published",
		"subject", subject, "evaluation_id", ev.ID)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("events: drain failed", "err", err)
	}
}
