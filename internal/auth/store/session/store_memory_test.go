package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"grc/internal/auth/models"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/sentinel"
)

type SessionStoreSuite struct {
	suite.Suite
	store *InMemorySessionStore
	now   time.Time
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) SetupTest() {
	s.now = time.Date(2017, 6, 6, 12, 0, 0, 0, time.UTC)
	s.store = New()
	s.store.now = func() time.Time { return s.now }
}

func (s *SessionStoreSuite) session(id string) *models.Session {
	return &models.Session{ID: id, PersonID: 1, CreatedAt: s.now, ExpiresAt: s.now.Add(time.Hour)}
}

func (s *SessionStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.session("a")))

	got, err := s.store.FindByID(ctx, "a")
	s.Require().NoError(err)
	s.Equal(int64(1), got.PersonID)

	s.Run("duplicate ids conflict", func() {
		s.ErrorIs(s.store.Create(ctx, s.session("a")), sentinel.ErrConflict)
	})
	s.Run("missing ids are not found", func() {
		_, err := s.store.FindByID(ctx, "b")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
	s.Run("invalid sessions are rejected", func() {
		err := s.store.Create(ctx, &models.Session{ID: "c", CreatedAt: s.now, ExpiresAt: s.now.Add(time.Hour)})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *SessionStoreSuite) TestRevocation() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.session("a")))

	revoked, err := s.store.IsSessionRevoked(ctx, "a")
	s.Require().NoError(err)
	s.False(revoked)

	first := s.now.Add(time.Minute)
	s.Require().NoError(s.store.Revoke(ctx, "a", first))
	s.Require().NoError(s.store.Revoke(ctx, "a", first.Add(time.Minute)))
	got, err := s.store.FindByID(ctx, "a")
	s.Require().NoError(err)
	s.Equal(first, *got.RevokedAt)

	revoked, err = s.store.IsSessionRevoked(ctx, "a")
	s.Require().NoError(err)
	s.True(revoked)

	s.Run("unknown sessions count as revoked", func() {
		revoked, err := s.store.IsSessionRevoked(ctx, "missing")
		s.Require().NoError(err)
		s.True(revoked)
		s.NoError(s.store.Revoke(ctx, "missing", s.now))
	})
}

func (s *SessionStoreSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.session("a")))
	s.now = s.now.Add(2 * time.Hour)

	_, err := s.store.FindByID(ctx, "a")
	s.ErrorIs(err, sentinel.ErrExpired)
	revoked, err := s.store.IsSessionRevoked(ctx, "a")
	s.Require().NoError(err)
	s.True(revoked)
	s.Equal(1, s.store.DeleteExpired(ctx))
}
