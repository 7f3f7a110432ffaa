// Package outbox relays committed audit outbox rows to Kafka.
//
// Rows are claimed with FOR UPDATE SKIP LOCKED inside a transaction, produced
// synchronously, then marked published in the same transaction. A crash after
// producing but before commit re-sends the batch, so delivery is at least
// once; consumers dedupe on the event ID carried as the record key.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"checkin/internal/platform/kafka"
	"checkin/pkg/platform/audit/store/postgres"
)

// Store is the outbox side of the Postgres audit store.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	ClaimUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher produces records to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// Relay drains the outbox on an interval.
type Relay struct {
	store     Store
	publisher Publisher
	topic     string
	batch     int
	interval  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func New(store Store, publisher Publisher, topic string, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		topic:     topic,
		batch:     100,
		interval:  2 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. Failed batches are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
				break
			}
			if n < r.batch {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce moves at most one batch and reports how many rows it published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.store.ClaimUnpublished(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		msgs := make([]kafka.Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			msgs[i] = kafka.Message{
				Key:   []byte(e.ID.String()),
				Value: e.Payload,
				Headers: map[string]string{
					"event_type":   e.EventType,
					"aggregate_id": e.AggregateID,
				},
			}
			ids[i] = e.ID
		}
		if err := r.publisher.Publish(ctx, r.topic, msgs...); err != nil {
			return err
		}
		if err := r.store.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncFailures()
		}
		return 0, err
	}
	if r.metrics != nil && published > 0 {
		r.metrics.AddPublished(published)
	}
	return published, nil
}
