// Package redis opens the shared redis connection used for sessions and
// login lockouts.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"grc/internal/platform/config"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
)

// Client is the process-wide redis connection.
type Client struct {
	*redis.Client
	addr string
}

// Open connects to the configured redis server. A blank URL means redis is
// disabled and Open returns a nil client without error.
func Open(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts), addr: opts.Addr}
	if err := c.waitReady(ctx, logger); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "redis connected", "addr", c.addr, "pool_size", opts.PoolSize)
	return c, nil
}

// waitReady pings with a linear backoff so the service tolerates redis
// starting a moment after it.
func (c *Client) waitReady(ctx context.Context, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = c.Ping(ctx).Err(); err == nil {
			return nil
		}
		logger.WarnContext(ctx, "redis ping failed", "addr", c.addr, "attempt", attempt, "error", err)
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis %s: %w", c.addr, ctx.Err())
		case <-time.After(time.Duration(attempt) * connectBackoff):
		}
	}
	return fmt.Errorf("redis %s unreachable after %d attempts: %w", c.addr, connectAttempts, err)
}

// Health is the /readyz probe.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
