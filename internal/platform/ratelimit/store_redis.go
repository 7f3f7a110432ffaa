package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript trims the window, then records ARGV[1] if under ARGV[3].
// Returns {allowed, count, oldest_ms}.
var allowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < limit then
	redis.call('ZADD', KEYS[1], now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', KEYS[1], window)
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local oldestMs = now
if oldest[2] then
	oldestMs = tonumber(oldest[2])
end
return {allowed, count, oldestMs}
`)

// RedisStore shares windows across every API instance.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	nowMs := now.UnixMilli()
	res, err := allowScript.Run(ctx, s.client, []string{key},
		nowMs,
		window.Milliseconds(),
		limit,
		strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}

	result := Result{
		Allowed: res[0] == 1,
		Limit:   limit,
		ResetAt: time.UnixMilli(res[2]).Add(window),
	}
	if result.Allowed {
		result.Remaining = limit - int(res[1])
	}
	return result, nil
}
