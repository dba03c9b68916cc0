package lockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "grc:lockout:"

// RedisStore shares failure records between instances. A key expires once
// neither its window nor its lock is running.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load lockout record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode lockout record: %w", err)
	}
	return &rec, nil
}

// update applies fn to the record under WATCH.
func (s *RedisStore) update(ctx context.Context, key string, ttl time.Duration, fn func(*Record)) (*Record, error) {
	var out Record
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var rec Record
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode lockout record: %w", err)
			}
		}
		fn(&rec)
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, ttl)
			return nil
		})
		out = rec
		return err
	}, key)
	if err != nil {
		return nil, fmt.Errorf("update lockout record: %w", err)
	}
	return &out, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*Record, error) {
	return s.update(ctx, keyPrefix+key, window, func(rec *Record) {
		if !rec.LastFailureAt.IsZero() && now.Sub(rec.LastFailureAt) > window {
			rec.Failures = 0
		}
		rec.Failures++
		rec.LastFailureAt = now
	})
}

func (s *RedisStore) Lock(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	_, err := s.update(ctx, keyPrefix+key, ttl, func(rec *Record) {
		rec.LockedUntil = &until
	})
	return err
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}
