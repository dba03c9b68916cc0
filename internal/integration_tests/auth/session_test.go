package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"grc/internal/audit"
	platformaudit "grc/pkg/platform/audit"
	"grc/pkg/testutil"
	"grc/pkg/testutil/harness"
)

type SessionSuite struct {
	harness.Suite
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) TestLoginGrantsAccess() {
	s.Equal(http.StatusUnauthorized, s.Do(http.MethodGet, "/api/access_control_roles?object_type=Control", nil, "").Code)

	user := s.Login()
	s.Equal("user@example.com", user.Email)
	rr := s.Do(http.MethodGet, "/api/access_control_roles?object_type=Control", nil, "")
	s.Equal(http.StatusOK, rr.Code, rr.Body.String())
}

func (s *SessionSuite) TestLogoutRevokesTheToken() {
	s.Login()
	s.Require().Equal(http.StatusOK, s.Do(http.MethodGet, "/logout", nil, "").Code)

	rr := s.Do(http.MethodGet, "/api/access_control_roles?object_type=Control", nil, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *SessionSuite) TestAuthEventsAreListedForAdmins() {
	s.Login()
	s.Do(http.MethodGet, "/logout", nil, "")

	rr := s.DoAdmin(http.MethodGet, "/admin/audit_events?action="+string(platformaudit.EventUserLoggedIn))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[audit.ListResponse](s.T(), rr)
	s.Require().Len(resp.Events, 1)
	s.Equal(s.User.ID, resp.Events[0].ActorID)

	rr = s.DoAdmin(http.MethodGet, "/admin/audit_events?action="+string(platformaudit.EventUserLoggedOut))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Len(testutil.UnmarshalResponse[audit.ListResponse](s.T(), rr).Events, 1)
}

func (s *SessionSuite) TestAdminRoutesNeedTheAdminToken() {
	s.Login()
	rr := s.Do(http.MethodGet, "/admin/audit_events", nil, "")
	s.Equal(http.StatusUnauthorized, rr.Code)
}
