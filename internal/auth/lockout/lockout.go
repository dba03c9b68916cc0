// Package lockout throttles password logins. Failures are counted per
// email and client IP inside a sliding window; reaching the limit locks the
// pair out for a fixed duration.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	dErrors "grc/pkg/domain-errors"
	"grc/pkg/requestcontext"
)

// Config bounds failed attempts.
type Config struct {
	AttemptsPerWindow int
	Window            time.Duration
	LockDuration      time.Duration
}

// DefaultConfig allows five failures per fifteen minutes.
func DefaultConfig() Config {
	return Config{
		AttemptsPerWindow: 5,
		Window:            15 * time.Minute,
		LockDuration:      15 * time.Minute,
	}
}

// Record is the failure state of one key.
type Record struct {
	Failures      int        `json:"failures"`
	LastFailureAt time.Time  `json:"last_failure_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
}

// LockedAt reports whether the record blocks logins at now.
func (r *Record) LockedAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// Store keeps failure records. RecordFailure restarts the count when the
// previous failure fell out of the window.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*Record, error)
	Lock(ctx context.Context, key string, until time.Time) error
	Clear(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.AttemptsPerWindow > 0 {
			s.config = cfg
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	s := &Service{store: store, config: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Key identifies the throttled pair.
func Key(email, ip string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// Check fails with CodeTooManyRequests while the pair is locked out.
func (s *Service) Check(ctx context.Context, email string) error {
	rec, err := s.store.Get(ctx, Key(email, requestcontext.ClientIP(ctx)))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read login failures")
	}
	if rec.LockedAt(requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodeTooManyRequests, "too many failed logins, try again later")
	}
	return nil
}

// RecordFailure counts one failed login and reports whether it locked the
// pair out.
func (s *Service) RecordFailure(ctx context.Context, email string) (bool, error) {
	key := Key(email, requestcontext.ClientIP(ctx))
	now := requestcontext.Now(ctx)
	rec, err := s.store.RecordFailure(ctx, key, now, s.config.Window)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if rec.Failures < s.config.AttemptsPerWindow || rec.LockedAt(now) {
		return false, nil
	}
	until := now.Add(s.config.LockDuration)
	if err := s.store.Lock(ctx, key, until); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock login")
	}
	s.logger.WarnContext(ctx, "login locked",
		"request_id", requestcontext.RequestID(ctx),
		"email", email,
		"locked_until", until,
	)
	return true, nil
}

// Clear forgets the failures of a successful login.
func (s *Service) Clear(ctx context.Context, email string) error {
	if err := s.store.Clear(ctx, Key(email, requestcontext.ClientIP(ctx))); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear login failures")
	}
	return nil
}
