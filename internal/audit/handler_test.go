package audit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	platformaudit "grc/pkg/platform/audit"
	"grc/pkg/platform/audit/store/memory"
	"grc/pkg/testutil"
)

type AuditHandlerSuite struct {
	suite.Suite
	store  *memory.InMemoryStore
	router chi.Router
}

func TestAuditHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuditHandlerSuite))
}

func (s *AuditHandlerSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.router = testutil.NewRouter()
	NewHandler(s.store, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterAdmin(s.router)

	ctx := context.Background()
	for _, action := range []platformaudit.AuditEvent{
		platformaudit.EventObjectCreated,
		platformaudit.EventUserLoggedIn,
		platformaudit.EventObjectsImported,
	} {
		s.Require().NoError(s.store.Append(ctx, platformaudit.Event{Action: string(action), ObjectType: "Control", ObjectID: 1}))
	}
}

func (s *AuditHandlerSuite) list(query string) ListResponse {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit_events"+query))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return *testutil.UnmarshalResponse[ListResponse](s.T(), rr)
}

func (s *AuditHandlerSuite) TestList() {
	s.Run("newest first", func() {
		resp := s.list("")
		s.Require().Len(resp.Events, 3)
		s.Equal(string(platformaudit.EventObjectsImported), resp.Events[0].Action)
		s.Equal(string(platformaudit.CategoryCompliance), resp.Events[0].Category)
	})

	s.Run("limit", func() {
		s.Len(s.list("?limit=1").Events, 1)
	})

	s.Run("filter by action", func() {
		resp := s.list("?action=user_logged_in")
		s.Require().Len(resp.Events, 1)
		s.Equal(string(platformaudit.CategorySecurity), resp.Events[0].Category)
	})

	s.Run("filter by category", func() {
		s.Len(s.list("?category=compliance").Events, 2)
	})

	s.Run("invalid limit", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit_events?limit=zero"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}
