// Package compliance provides a fail-closed audit publisher for consent decisions.
//
// Events are written to the outbox inside the caller's transaction and the
// caller blocks until the write succeeds. If the write fails, an error is
// returned and the calling operation MUST fail.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/middleware/metadata"
	"checkin/pkg/requestcontext"
)

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher.
// The store must be outbox-backed for guaranteed delivery.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes a compliance event to the audit store. Request
// metadata missing from the event is filled from ctx.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	start := time.Now()

	if event.PatientID.IsNil() {
		return fmt.Errorf("compliance event requires PatientID")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	enrich(ctx, &event)

	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"consent_id", event.ConsentID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(event.Action)
	}
	return nil
}

func enrich(ctx context.Context, event *audit.ComplianceEvent) {
	if event.Timestamp.IsZero() {
		if now, ok := requestcontext.Now(ctx); ok {
			event.Timestamp = now
		} else {
			event.Timestamp = time.Now().UTC()
		}
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Actor(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Channel == "" {
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			event.Channel = metadata.Channel(ua)
		}
	}
}
