// Package auth signs people in and out. Sessions are JWT tokens backed by
// a session record that logout revokes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"grc/internal/auth/lockout"
	"grc/internal/auth/models"
	"grc/internal/auth/token"
	gmodels "grc/internal/models"
	"grc/internal/objects"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
	"grc/pkg/platform/sentinel"
	"grc/pkg/requestcontext"
)

const (
	defaultSessionTTL = 12 * time.Hour
	defaultUserName   = "Example User"
	minPasswordLength = 8
)

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	IsSessionRevoked(ctx context.Context, id string) (bool, error)
}

// Service runs logins against the people of the repository.
type Service struct {
	store        *store.Store
	sessions     SessionStore
	tokens       *token.Service
	logger       *slog.Logger
	sessionTTL   time.Duration
	defaultEmail string
	devLogin     bool
	lockout      *lockout.Service
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithDevLogin enables GET /login for the default user.
func WithDevLogin(enabled bool, email string) Option {
	return func(s *Service) {
		s.devLogin = enabled
		if email != "" {
			s.defaultEmail = email
		}
	}
}

// WithLockout throttles failed password logins.
func WithLockout(l *lockout.Service) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

func NewService(st *store.Store, sessions SessionStore, tokens *token.Service, opts ...Option) *Service {
	s := &Service{
		store:        st,
		sessions:     sessions,
		tokens:       tokens,
		logger:       slog.Default(),
		sessionTTL:   defaultSessionTTL,
		defaultEmail: "user@example.com",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult is a started session.
type LoginResult struct {
	Token   string
	Session models.Session
	Person  gmodels.Person
}

// DevLogin signs in as the default user, creating it on first use.
func (s *Service) DevLogin(ctx context.Context) (*LoginResult, error) {
	if !s.devLogin {
		return nil, dErrors.New(dErrors.CodeForbidden, "development login is disabled")
	}
	var person gmodels.Person
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		var err error
		person, err = objects.EnsurePerson(tx, s.defaultEmail, defaultUserName)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to load the default user")
	}
	return s.start(ctx, person)
}

// Login checks an email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if s.lockout != nil {
		if err := s.lockout.Check(ctx, email); err != nil {
			return nil, err
		}
	}
	var person gmodels.Person
	err := s.store.View(ctx, func(tx *store.Tx) error {
		p, ok := objects.FindPersonByEmail(tx, email)
		if !ok {
			return sentinel.ErrNotFound
		}
		person = p
		return nil
	})
	if err == nil && person.PasswordHash == "" {
		err = sentinel.ErrNotFound
	}
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(person.PasswordHash), []byte(password))
	}
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, translate(err, "failed to check credentials")
		}
		s.emit(ctx, person.ID, audit.Event{Action: string(audit.EventLoginFailed), Subject: email})
		s.logger.WarnContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"email", email,
		)
		if s.lockout != nil {
			locked, lerr := s.lockout.RecordFailure(ctx, email)
			if lerr != nil {
				return nil, lerr
			}
			if locked {
				s.emit(ctx, person.ID, audit.Event{Action: string(audit.EventLoginLocked), Subject: email})
			}
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	if s.lockout != nil {
		if err := s.lockout.Clear(ctx, email); err != nil {
			return nil, err
		}
	}
	return s.start(ctx, person)
}

func (s *Service) start(ctx context.Context, person gmodels.Person) (*LoginResult, error) {
	now := requestcontext.Now(ctx).UTC()
	sess := models.Session{
		ID:        uuid.NewString(),
		PersonID:  person.ID,
		Device:    requestcontext.ClientAgent(ctx),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	signed, err := s.tokens.Issue(person.ID, sess.ID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return nil, translate(err, "failed to store session")
	}
	s.emit(ctx, person.ID, audit.Event{
		Action:     string(audit.EventUserLoggedIn),
		ObjectType: string(domain.TypePerson),
		ObjectID:   person.ID,
		Subject:    sess.ID,
	})
	s.logger.InfoContext(ctx, "user logged in",
		"request_id", requestcontext.RequestID(ctx),
		"person_id", person.ID,
		"session_id", sess.ID,
	)
	return &LoginResult{Token: signed, Session: sess, Person: person}, nil
}

// Logout revokes the session carried by raw. Invalid or already ended
// sessions are not an error.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID, requestcontext.Now(ctx).UTC()); err != nil {
		return translate(err, "failed to end session")
	}
	s.emit(ctx, claims.PersonID, audit.Event{
		Action:     string(audit.EventUserLoggedOut),
		ObjectType: string(domain.TypePerson),
		ObjectID:   claims.PersonID,
		Subject:    claims.SessionID,
	})
	return nil
}

// IsSessionRevoked serves the session middleware.
func (s *Service) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	return s.sessions.IsSessionRevoked(ctx, sessionID)
}

// SetPassword replaces the password of the signed-in person.
func (s *Service) SetPassword(ctx context.Context, personID int64, password string) error {
	if actor := requestcontext.PersonID(ctx); actor != personID {
		return dErrors.New(dErrors.CodeForbidden, "people can only change their own password")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	err = s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		p, ok := tx.People().Get(personID)
		if !ok {
			return sentinel.ErrNotFound
		}
		p.PasswordHash = hash
		_, err := tx.PutPerson(p)
		return err
	})
	return translate(err, "failed to set password")
}

// HashPassword bcrypt-hashes a password.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "password can not be hashed")
	}
	return string(hash), nil
}

func (s *Service) emit(ctx context.Context, personID int64, event audit.Event) {
	if personID != 0 {
		ctx = requestcontext.WithPersonID(ctx, personID)
	}
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		tx.Emit(event)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record auth event",
			"action", event.Action,
			"error", err,
		)
	}
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "person not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
