//go:build integration

package containers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"grc/internal/platform/config"
	platformredis "grc/internal/platform/redis"
)

// RedisContainer is a throwaway redis reached through the same client
// constructor the server uses.
type RedisContainer struct {
	URL    string
	Client *redis.Client
	conn   *platformredis.Client
}

// NewRedisContainer starts redis and connects with a small pool.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := platformredis.Open(ctx, config.RedisConfig{
		URL:          url,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &RedisContainer{URL: url, Client: client.Client, conn: client}
}

// Healthy runs the readiness probe the server registers for redis.
func (r *RedisContainer) Healthy(ctx context.Context) error {
	return r.conn.Health(ctx)
}

// FlushAll empties the database between tests sharing the container.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
