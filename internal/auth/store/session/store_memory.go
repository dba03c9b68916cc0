// Package session stores login sessions in memory or redis.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grc/internal/auth/models"
	"grc/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in process; sessions are lost on
// restart.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	now      func() time.Time
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: map[string]models.Session{}, now: time.Now}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrExpired)
	}
	return &sess, nil
}

// Revoke ends the session. Unknown sessions are not an error.
func (s *InMemorySessionStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.ApplyRevocation(at)
	s.sessions[id] = sess
	return nil
}

// IsSessionRevoked reports true for revoked, expired and unknown sessions.
func (s *InMemorySessionStore) IsSessionRevoked(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return true, nil
	}
	return !sess.Active(s.now()), nil
}

// DeleteExpired drops sessions past their expiry and returns how many.
func (s *InMemorySessionStore) DeleteExpired(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
