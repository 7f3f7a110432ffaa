package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"checkin/internal/consent/lifecycle"
)

const (
	// Redis key prefix for reminder cycles
	ledgerKeyPrefix = "checkin:reminder:"

	// DefaultLedgerTTL bounds how long an in-progress cycle is remembered.
	// The terminal grace expiry bucket never expires, so an EXPIRED consent
	// is not reminded again once the TTL has passed.
	DefaultLedgerTTL = 400 * 24 * time.Hour
)

// advanceScript stores ARGV[1] only when it is greater than the stored offset.
// A TTL of 0 stores the entry without expiry.
var advanceScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// revertScript restores ARGV[2] (or deletes) only while ARGV[1] is stored.
var revertScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current ~= ARGV[1] then
	return 0
end
if ARGV[2] == '' then
	redis.call('DEL', KEYS[1])
elseif tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisLedger is a Ledger shared by every sweeper instance.
type RedisLedger struct {
	client redis.Cmdable
	ttl    time.Duration
}

type RedisLedgerOption func(*RedisLedger)

func WithLedgerTTL(ttl time.Duration) RedisLedgerOption {
	return func(l *RedisLedger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func NewRedisLedger(client redis.Cmdable, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{client: client, ttl: DefaultLedgerTTL}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ttlFor returns the expiry for an entry holding offset, 0 for none.
func (l *RedisLedger) ttlFor(offset lifecycle.ReminderOffset) time.Duration {
	if offset >= lifecycle.ReminderGraceExpiry {
		return 0
	}
	return l.ttl
}

func redisKey(key LedgerKey) string {
	return ledgerKeyPrefix + key.String()
}

func (l *RedisLedger) Last(ctx context.Context, key LedgerKey) (*lifecycle.ReminderOffset, error) {
	raw, err := l.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reminder ledger: %w", err)
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("corrupt reminder ledger entry %q: %w", raw, err)
	}
	offset := lifecycle.ReminderOffset(n)
	return &offset, nil
}

func (l *RedisLedger) Advance(ctx context.Context, key LedgerKey, offset lifecycle.ReminderOffset) (bool, error) {
	n, err := advanceScript.Run(ctx, l.client, []string{redisKey(key)},
		int(offset), l.ttlFor(offset).Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("advance reminder ledger: %w", err)
	}
	return n == 1, nil
}

func (l *RedisLedger) Revert(ctx context.Context, key LedgerKey, offset lifecycle.ReminderOffset, previous *lifecycle.ReminderOffset) error {
	prev := ""
	var ttl time.Duration
	if previous != nil {
		prev = strconv.Itoa(int(*previous))
		ttl = l.ttlFor(*previous)
	}
	err := revertScript.Run(ctx, l.client, []string{redisKey(key)},
		strconv.Itoa(int(offset)), prev, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("revert reminder ledger: %w", err)
	}
	return nil
}
