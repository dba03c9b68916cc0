// Package store is the transactional in-memory repository. Every write runs
// inside SingleCommit against a private working copy that replaces the live
// state only after the persister accepted it. Published states are never
// mutated, so views read them without waiting for a running commit.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	audit "grc/pkg/platform/audit"
)

var tracer = otel.Tracer("grc/internal/store")

// Persister mirrors committed state to durable storage.
type Persister interface {
	// Load returns the last saved state, or nil when nothing was saved.
	Load(ctx context.Context) (*State, error)
	// Save writes the dirty buckets of state and the unit's audit events
	// atomically.
	Save(ctx context.Context, state *State, dirty []string, events []audit.Event) error
}

// Store guards the live state.
type Store struct {
	commitMu  sync.Mutex   // serializes commits
	mu        sync.RWMutex // guards the state pointer
	state     *State
	persister Persister
	logger    *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithPersister sets the persister (defaults to an in-memory one without
// audit storage).
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New loads the persisted state (if any) and returns the store.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{
		state:     NewState(),
		persister: NewMemoryPersister(nil),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if loaded != nil {
		s.state = loaded
	}
	return s, nil
}

// SingleCommit runs fn against a working copy and commits it when fn
// returns nil. Commits are serialized; fn must not call back into the store.
func (s *Store) SingleCommit(ctx context.Context, fn func(tx *Tx) error) error {
	ctx, span := tracer.Start(ctx, "store.SingleCommit")
	defer span.End()

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	work := s.current().Clone()
	tx := newTx(ctx, work, false)
	if err := fn(tx); err != nil {
		span.SetStatus(codes.Error, "rolled back")
		return err
	}

	dirty := tx.Dirty()
	span.SetAttributes(
		attribute.StringSlice("store.dirty_buckets", dirty),
		attribute.Int("store.events", len(tx.events)),
	)
	if len(dirty) == 0 && len(tx.events) == 0 {
		return nil
	}
	if err := s.persister.Save(ctx, work, dirty, tx.events); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.logger.ErrorContext(ctx, "failed to persist commit",
			"error", err,
			"buckets", dirty,
		)
		return fmt.Errorf("persist commit: %w", err)
	}
	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

// DryRun runs fn like SingleCommit but always discards the working copy. It
// does not wait for running commits and returns fn's error.
func (s *Store) DryRun(ctx context.Context, fn func(tx *Tx) error) error {
	ctx, span := tracer.Start(ctx, "store.DryRun")
	defer span.End()
	return fn(newTx(ctx, s.current().Clone(), false))
}

// View runs fn with read-only access to the live state.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return fn(newTx(ctx, s.current(), true))
}

func (s *Store) current() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
