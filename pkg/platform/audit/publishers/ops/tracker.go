// Package ops records operational audit events (access checks, reminder
// dispatch) on a best-effort basis. Tracking never fails the caller: events
// may be sampled away, and a circuit breaker sheds them while the store is
// unhealthy.
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/requestcontext"
)

// Tracker emits ops events.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) { t.sampler = s }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) { t.breaker = cb }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker keeps every event and opens after 5 consecutive failures for a
// minute unless overridden.
func NewTracker(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1, nil),
		breaker: NewCircuitBreaker(5, time.Minute),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records event unless it is sampled out or the breaker sheds it.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if !t.sampler.Keep(event.Action) {
		t.metrics.observe(event.Action, outcomeSampled)
		return
	}
	if !t.breaker.Allow() {
		t.metrics.observe(event.Action, outcomeShed)
		return
	}
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

	err := t.store.Append(ctx, event.ToEvent())
	if err != nil {
		t.breaker.RecordFailure()
		t.metrics.observe(event.Action, outcomeFailed)
		if t.logger != nil {
			t.logger.WarnContext(ctx, "ops audit event dropped",
				"action", event.Action,
				"error", err,
			)
		}
	} else {
		t.breaker.RecordSuccess()
		t.metrics.observe(event.Action, outcomeRecorded)
	}
	t.metrics.setBreaker(t.breaker.State())
}
