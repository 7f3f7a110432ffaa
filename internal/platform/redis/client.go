// Package redis connects the shared reminder ledger and rate-limit buckets.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"checkin/internal/platform/config"
)

// Client is a connected go-redis client. It satisfies redis.Cmdable, so the
// ledger and limiter take it directly.
type Client struct {
	*redis.Client
}

// New dials Redis and pings it once. An empty URL means Redis is not
// configured and yields a nil client without error.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ClientName = "checkin"
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
