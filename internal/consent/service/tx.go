package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// ConsentStoreTx provides a transactional boundary for consent store mutations.
// Implementations may wrap a database transaction or, in-memory, a sharded lock.
// fn must use the context it is handed: the Postgres implementation carries
// the *sql.Tx in it so the record write and the audit outbox row commit together.
type ConsentStoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// numConsentShards spreads per-consent locks so unrelated consents rarely
// contend.
const numConsentShards = 128

// DefaultTxTimeout is the maximum duration for a consent transaction.
const DefaultTxTimeout = 5 * time.Second

type shardedConsentTx struct {
	shards  [numConsentShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewShardedTx serializes transactions on the same consent with in-process
// locks. It is the boundary used with the in-memory store.
func NewShardedTx(store Store) ConsentStoreTx {
	return &shardedConsentTx{store: store, timeout: DefaultTxTimeout}
}

func (t *shardedConsentTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.store)
}

// selectShard picks a shard from the consent ID in context, or shard 0.
func (t *shardedConsentTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(txConsentKeyCtx).(string); ok && key != "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(key))
		return int(h.Sum32() % numConsentShards)
	}
	return 0
}

type txConsentKey struct{}

var txConsentKeyCtx = txConsentKey{}

// withTxKey tags ctx with the consent a transaction is about to touch.
func withTxKey(ctx context.Context, consentID id.ConsentID) context.Context {
	return context.WithValue(ctx, txConsentKeyCtx, consentID.String())
}
