package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/platform/kafka"
	"checkin/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	pending   []postgres.OutboxEntry
	published map[uuid.UUID]bool
	staged    map[uuid.UUID]bool
}

func newFakeOutbox(n int) *fakeOutbox {
	f := &fakeOutbox{published: map[uuid.UUID]bool{}}
	for i := 0; i < n; i++ {
		f.pending = append(f.pending, postgres.OutboxEntry{
			ID:          uuid.New(),
			AggregateID: "patient-1",
			EventType:   "consent_withdrawn",
			Payload:     []byte(`{"action":"consent_withdrawn"}`),
		})
	}
	return f
}

// RunInTx commits staged marks only when fn succeeds.
func (f *fakeOutbox) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.staged = map[uuid.UUID]bool{}
	if err := fn(ctx); err != nil {
		return err
	}
	for k := range f.staged {
		f.published[k] = true
	}
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(_ context.Context, limit int) ([]postgres.OutboxEntry, error) {
	var out []postgres.OutboxEntry
	for _, e := range f.pending {
		if !f.published[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	for _, entryID := range ids {
		f.staged[entryID] = true
	}
	return nil
}

type fakePublisher struct {
	err  error
	sent []kafka.Message
}

func (p *fakePublisher) Publish(_ context.Context, _ string, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func TestRelayOnce_PublishesInBatches(t *testing.T) {
	store := newFakeOutbox(5)
	pub := &fakePublisher{}
	relay := New(store, pub, "consent.audit", slog.New(slog.NewTextHandler(io.Discard, nil)), WithBatchSize(3))

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, pub.sent, 5)
	assert.Equal(t, store.pending[0].ID.String(), string(pub.sent[0].Key))
	assert.Equal(t, "consent_withdrawn", pub.sent[0].Headers["event_type"])
}

func TestRelayOnce_ProducerFailureLeavesRowsPending(t *testing.T) {
	store := newFakeOutbox(2)
	pub := &fakePublisher{err: errors.New("broker down")}
	relay := New(store, pub, "consent.audit", slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.published)

	pub.err = nil
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
