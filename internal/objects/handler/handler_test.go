package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/objects"
	"grc/internal/objects/handler/mocks"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ObjectsHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestObjectsHandlerSuite(t *testing.T) {
	suite.Run(t, new(ObjectsHandlerSuite))
}

func (s *ObjectsHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = testutil.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func sampleControl() objects.BusinessView {
	end := time.Date(2017, 6, 6, 0, 0, 0, 0, time.UTC)
	return objects.BusinessView{
		Object: models.BusinessObject{
			ID:      3,
			Type:    domain.TypeControl,
			Slug:    "CONTROL-3",
			Title:   "Control 1",
			Status:  models.StatusDeprecated,
			EndDate: &end,
		},
		ACL:          []acl.Entry{{RoleID: 1, RoleName: "Admin", PersonID: 1}},
		ReviewID:     9,
		ReviewStatus: models.ReviewUnreviewed,
		Reviewers:    []int64{4, 5},
	}
}

func (s *ObjectsHandlerSuite) TestCreateBusiness() {
	s.Run("routes each collection to its type", func() {
		s.service.EXPECT().CreateBusiness(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, o models.BusinessObject, grants []objects.Grant) (objects.BusinessView, error) {
				s.Equal(domain.TypeOrgGroup, o.Type)
				s.Equal("Org 1", o.Title)
				s.Require().NotNil(o.StartDate)
				s.Equal([]objects.Grant{{RoleID: 2, PersonIDs: []int64{7, 8}}}, grants)
				return sampleControl(), nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/org_groups", map[string]any{
			"title":      " Org 1 ",
			"start_date": "2017-01-02",
			"access_control_list": []map[string]any{
				{"ac_role_id": 2, "person": map[string]any{"id": 7}},
				{"ac_role_id": 2, "person": map[string]any{"id": 8}},
			},
		})
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[BusinessResponse](s.T(), rr)
		s.Equal("CONTROL-3", resp.Slug)
		s.Require().NotNil(resp.EndDate)
		s.Equal("2017-06-06", *resp.EndDate)
		s.Equal(int64(9), resp.Review.ID)
		s.Len(resp.Reviewers, 2)
	})

	s.Run("bad date", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/controls", map[string]any{
			"title":      "C",
			"start_date": "06/06/2017",
		})
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest)
	})

	s.Run("missing title", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/controls", map[string]any{"title": "  "})
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *ObjectsHandlerSuite) TestUpdateBusiness() {
	s.Run("without a list the people are kept", func() {
		s.service.EXPECT().UpdateBusiness(gomock.Any(), gomock.Any(), gomock.Nil(), false).DoAndReturn(
			func(_ context.Context, o models.BusinessObject, _ []objects.Grant, _ bool) (objects.BusinessView, error) {
				s.Equal(int64(3), o.ID)
				s.Equal(domain.TypeControl, o.Type)
				return sampleControl(), nil
			})
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/controls/3", map[string]any{"title": "Control 1"})
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, req))
	})

	s.Run("an empty list replaces the people", func() {
		s.service.EXPECT().UpdateBusiness(gomock.Any(), gomock.Any(), gomock.Nil(), true).Return(sampleControl(), nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/controls/3", map[string]any{
			"title":               "Control 1",
			"access_control_list": []any{},
		})
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, req))
	})

	s.Run("not found", func() {
		s.service.EXPECT().UpdateBusiness(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(objects.BusinessView{}, dErrors.New(dErrors.CodeNotFound, "Control 4 not found"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/controls/4", map[string]any{"title": "x"})
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusNotFound)
	})
}

func (s *ObjectsHandlerSuite) TestListAndDelete() {
	s.service.EXPECT().ListBusiness(gomock.Any(), domain.TypeMarket).Return([]objects.BusinessView{sampleControl()}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/markets"))
	s.Require().Equal(http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[[]BusinessResponse](s.T(), rr)
	s.Len(*list, 1)

	s.service.EXPECT().DeleteBusiness(gomock.Any(), domain.Ref(domain.TypeObjective, 5)).Return(nil)
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/api/objectives/5"))
	s.Equal(http.StatusNoContent, rr.Code)
}

func (s *ObjectsHandlerSuite) TestCreateAudit() {
	s.service.EXPECT().CreateAudit(gomock.Any(), objects.AuditInput{
		Audit:    models.Audit{Title: "Audit 1"},
		Captains: []int64{1},
		Objects:  []domain.ObjectRef{domain.Ref(domain.TypeControl, 3)},
	}).Return(objects.AuditView{
		Audit:     models.Audit{ID: 2, Title: "Audit 1", Status: models.AuditPlanned},
		Snapshots: []models.Snapshot{{ID: 6, Child: domain.Ref(domain.TypeControl, 3)}},
	}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/audits", map[string]any{
		"title":          "Audit 1",
		"audit_captains": []int64{1},
		"objects":        []map[string]any{{"type": "Control", "id": 3}},
	})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[AuditResponse](s.T(), rr)
	s.Require().Len(resp.Snapshots, 1)
	s.Equal(int64(6), resp.Snapshots[0].ID)
	s.Equal("Control", resp.Snapshots[0].ChildType)

	s.Run("unknown object type", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/audits", map[string]any{
			"title":   "Audit 1",
			"objects": []map[string]any{{"type": "Spaceship", "id": 3}},
		})
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest)
	})
}

func (s *ObjectsHandlerSuite) TestCreateTemplate() {
	s.Run("labels and id lists", func() {
		s.service.EXPECT().CreateTemplate(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, t models.AssessmentTemplate) (models.AssessmentTemplate, error) {
				s.Equal("Admin", t.DefaultPeople.Assignees.Label)
				s.Equal([]int64{4, 5}, t.DefaultPeople.Verifiers.PersonIDs)
				s.Equal(int64(2), t.AuditID)
				t.ID = 8
				return t, nil
			})
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/assessment_templates", map[string]any{
			"title":                "Template",
			"audit":                map[string]any{"id": 2},
			"template_object_type": "Control",
			"default_people":       map[string]any{"assignees": "Admin", "verifiers": []int64{4, 5}},
		})
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		testutil.AssertJSONContains(s.T(), rr, "title", "Template")
	})

	s.Run("malformed default people", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/assessment_templates", map[string]any{
			"title":          "Template",
			"default_people": map[string]any{"assignees": map[string]any{"x": 1}},
		})
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest)
	})
}

func (s *ObjectsHandlerSuite) TestRevisions() {
	s.service.EXPECT().Revisions(gomock.Any(), domain.Ref(domain.TypeControl, 3)).Return([]models.Revision{
		{ID: 10, Resource: domain.Ref(domain.TypeControl, 3), Action: models.ActionCreated, ModifiedBy: 1},
	}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/revisions?resource_type=Control&resource_id=3"))
	s.Require().Equal(http.StatusOK, rr.Code)
	revs := testutil.UnmarshalResponse[[]RevisionResponse](s.T(), rr)
	s.Require().Len(*revs, 1)
	s.Equal("created", (*revs)[0].Action)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/revisions?resource_type=Nope&resource_id=3"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *ObjectsHandlerSuite) TestPeople() {
	s.service.EXPECT().CreatePerson(gomock.Any(), models.Person{Email: "a@example.com", Name: "A"}).
		Return(models.Person{ID: 4, Email: "a@example.com", Name: "A", PasswordHash: "secret"}, nil)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/people", map[string]any{"email": " a@example.com ", "name": "A"})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code)
	s.NotContains(rr.Body.String(), "secret")
}
