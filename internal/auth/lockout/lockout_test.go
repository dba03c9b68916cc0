package lockout

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "grc/pkg/domain-errors"
	"grc/pkg/requestcontext"
)

type LockoutSuite struct {
	suite.Suite
	service *Service
	now     time.Time
}

func TestLockoutSuite(t *testing.T) {
	suite.Run(t, new(LockoutSuite))
}

func (s *LockoutSuite) SetupTest() {
	s.now = time.Date(2021, 3, 4, 9, 0, 0, 0, time.UTC)
	svc, err := New(NewInMemoryStore(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(Config{AttemptsPerWindow: 3, Window: time.Minute, LockDuration: 10 * time.Minute}),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *LockoutSuite) ctx(ip string) context.Context {
	ctx := requestcontext.WithClientMetadata(context.Background(), ip, "", "")
	return requestcontext.WithTime(ctx, s.now)
}

func (s *LockoutSuite) fail(times int, ip string) (locked bool) {
	for range times {
		var err error
		locked, err = s.service.RecordFailure(s.ctx(ip), "User@Example.com")
		s.Require().NoError(err)
	}
	return locked
}

func (s *LockoutSuite) TestLocksAfterTheLimit() {
	s.False(s.fail(2, "10.0.0.1"))
	s.NoError(s.service.Check(s.ctx("10.0.0.1"), "user@example.com"))

	s.True(s.fail(1, "10.0.0.1"))
	err := s.service.Check(s.ctx("10.0.0.1"), "user@example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))

	s.Run("other addresses are unaffected", func() {
		s.NoError(s.service.Check(s.ctx("10.0.0.2"), "user@example.com"))
	})
	s.Run("the lock expires", func() {
		s.now = s.now.Add(11 * time.Minute)
		s.NoError(s.service.Check(s.ctx("10.0.0.1"), "user@example.com"))
	})
}

func (s *LockoutSuite) TestWindowRestartsTheCount() {
	s.False(s.fail(2, "10.0.0.1"))
	s.now = s.now.Add(2 * time.Minute)
	s.False(s.fail(2, "10.0.0.1"))
	s.NoError(s.service.Check(s.ctx("10.0.0.1"), "user@example.com"))
}

func (s *LockoutSuite) TestClearForgetsFailures() {
	s.False(s.fail(2, "10.0.0.1"))
	s.Require().NoError(s.service.Clear(s.ctx("10.0.0.1"), "user@example.com"))
	s.False(s.fail(2, "10.0.0.1"))
}

func (s *LockoutSuite) TestRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}
