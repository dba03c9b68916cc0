package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grc/internal/auth/models"
	"grc/pkg/platform/sentinel"
)

const keyPrefix = "grc:session:"

// RedisStore shares sessions between instances. Keys expire with the
// session.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrExpired)
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+session.ID, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Revoke ends the session under WATCH so concurrent revocations keep the
// first revocation time. The key keeps its TTL.
func (s *RedisStore) Revoke(ctx context.Context, id string, at time.Time) error {
	key := keyPrefix + id
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var sess models.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if sess.RevokedAt != nil {
			return nil
		}
		sess.ApplyRevocation(at)
		payload, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)
}

// IsSessionRevoked reports true for revoked and missing sessions; redis
// expires the keys of expired ones.
func (s *RedisStore) IsSessionRevoked(ctx context.Context, id string) (bool, error) {
	sess, err := s.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !sess.Active(s.now()), nil
}
