package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps records in process.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[key]
	if !rec.LastFailureAt.IsZero() && now.Sub(rec.LastFailureAt) > window {
		rec.Failures = 0
	}
	rec.Failures++
	rec.LastFailureAt = now
	s.records[key] = rec
	return &rec, nil
}

func (s *InMemoryStore) Lock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[key]
	rec.LockedUntil = &until
	s.records[key] = rec
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
