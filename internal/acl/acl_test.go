package acl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	"grc/pkg/requestcontext"
	"grc/pkg/testutil"
)

type ACLSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Store
	catalog Catalog
}

func TestACLSuite(t *testing.T) {
	suite.Run(t, new(ACLSuite))
}

func (s *ACLSuite) SetupTest() {
	s.ctx = context.Background()
	st, err := store.New(s.ctx)
	s.Require().NoError(err)
	s.store = st
	s.catalog, err = LoadCatalog()
	s.Require().NoError(err)
	s.Require().NoError(st.SingleCommit(s.ctx, func(tx *store.Tx) error { return Seed(tx, s.catalog) }))
}

func (s *ACLSuite) commit(fn func(tx *store.Tx) error) {
	s.Require().NoError(s.store.SingleCommit(s.ctx, fn))
}

func (s *ACLSuite) TestSeedIsIdempotent() {
	var before int
	s.commit(func(tx *store.Tx) error {
		before = len(tx.Roles())
		return Seed(tx, s.catalog)
	})
	_ = s.store.View(s.ctx, func(tx *store.Tx) error {
		s.Equal(before, len(tx.Roles()))
		_, ok := Role(tx, domain.TypeAudit, "Assignees Mapped")
		s.True(ok)
		_, ok = Role(tx, domain.TypeSnapshot, "Verifiers Mapped")
		s.True(ok)
		return nil
	})
}

func (s *ACLSuite) TestCustomRolesExcludeInternal() {
	_ = s.store.View(s.ctx, func(tx *store.Tx) error {
		names := CustomRolesFor(tx, domain.TypeAudit)
		s.ElementsMatch([]string{"Audit Captains", "Auditors"}, valuesOf(names))
		control := CustomRolesFor(tx, domain.TypeControl)
		s.Contains(valuesOf(control), "Principal Assignees")
		s.Contains(valuesOf(control), "Control Operators")
		return nil
	})
}

func valuesOf(m map[int64]string) []string {
	var out []string
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func (s *ACLSuite) TestAddPersonAndPeopleWithRole() {
	var ctrl models.BusinessObject
	var p1, p2 models.Person
	s.commit(func(tx *store.Tx) error {
		ctrl, _ = tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Title: "c"})
		p2, _ = tx.PutPerson(models.Person{Email: "b@example.com"})
		p1, _ = tx.PutPerson(models.Person{Email: "a@example.com"})
		if err := AddPerson(tx, ctrl.Ref(), "Control Owners", p1.ID); err != nil {
			return err
		}
		if err := AddPerson(tx, ctrl.Ref(), "Control Owners", p2.ID); err != nil {
			return err
		}
		return AddPerson(tx, ctrl.Ref(), "Control Owners", p1.ID)
	})
	_ = s.store.View(s.ctx, func(tx *store.Tx) error {
		s.Equal([]int64{p2.ID, p1.ID}, PeopleWithRole(tx, ctrl.Ref(), "Control Owners"))
		s.Empty(PeopleWithRole(tx, ctrl.Ref(), "Admin"))
		s.Len(Entries(tx, ctrl.Ref()), 2)
		return nil
	})
}

func (s *ACLSuite) TestSyncPeopleAndDefaults() {
	var (
		a, b    models.Person
		control models.BusinessObject
	)
	s.commit(func(tx *store.Tx) error {
		a, _ = tx.PutPerson(models.Person{Email: "a@example.com"})
		b, _ = tx.PutPerson(models.Person{Email: "b@example.com"})
		var err error
		control, err = tx.PutObject(models.BusinessObject{Type: domain.TypeControl, Title: "c"})
		return err
	})

	s.commit(func(tx *store.Tx) error {
		changed, err := SyncPeople(tx, control.Ref(), "Control Owners", []int64{b.ID, a.ID, b.ID})
		s.Require().NoError(err)
		s.True(changed)
		changed, err = SyncPeople(tx, control.Ref(), "Control Owners", []int64{a.ID, b.ID})
		s.Require().NoError(err)
		s.False(changed)
		s.Equal([]int64{a.ID, b.ID}, PeopleWithRole(tx, control.Ref(), "Control Owners"))
		return nil
	})

	ctx := requestcontext.WithPersonID(s.ctx, a.ID)
	s.Require().NoError(s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		return GrantDefaults(tx, control.Ref())
	}))
	_ = s.store.View(s.ctx, func(tx *store.Tx) error {
		s.Equal([]int64{a.ID}, PeopleWithRole(tx, control.Ref(), "Admin"))
		s.Empty(PeopleWithRole(tx, control.Ref(), "Principal Assignees"))
		return nil
	})
}

func (s *ACLSuite) TestUnknownRoleFails() {
	err := s.store.SingleCommit(s.ctx, func(tx *store.Tx) error {
		p, _ := tx.PutPerson(models.Person{Email: "a@example.com"})
		return AddPerson(tx, domain.Ref(domain.TypeControl, 1), "Nope", p.ID)
	})
	s.Error(err)
}

func (s *ACLSuite) TestPropagateMapsAssessmentRoles() {
	var asmt models.Assessment
	var audit models.Audit
	var snap models.Snapshot
	var person models.Person
	s.commit(func(tx *store.Tx) error {
		person, _ = tx.PutPerson(models.Person{Email: "a@example.com"})
		audit, _ = tx.PutAudit(models.Audit{Title: "a"})
		snap, _ = tx.PutSnapshot(models.Snapshot{Parent: audit.Ref()})
		asmt, _ = tx.PutAssessment(models.Assessment{Title: "x"})
		if err := AddPerson(tx, asmt.Ref(), "Assignees", person.ID); err != nil {
			return err
		}
		if err := AddPerson(tx, asmt.Ref(), "Verifiers", person.ID); err != nil {
			return err
		}
		return Propagate(tx, s.catalog.Propagation, asmt.Ref(), audit.Ref(), snap.Ref())
	})
	_ = s.store.View(s.ctx, func(tx *store.Tx) error {
		for _, target := range []domain.ObjectRef{audit.Ref(), snap.Ref()} {
			s.Equal([]int64{person.ID}, PropagatedPeople(tx, target, "Assignees"))
			s.Equal([]int64{person.ID}, PropagatedPeople(tx, target, "Verifiers"))
			s.Empty(PropagatedPeople(tx, target, "Creators"))
		}
		return nil
	})

	s.commit(func(tx *store.Tx) error { return RemoveObject(tx, asmt.Ref()) })
	_ = s.store.View(s.ctx, func(tx *store.Tx) error {
		s.Empty(PropagatedPeople(tx, audit.Ref(), "Assignees"))
		s.Empty(tx.ACLPeople())
		return nil
	})
}

func (s *ACLSuite) TestRoleEndpoints() {
	svc := NewService(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := testutil.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)

	s.Run("create custom role", func() {
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/access_control_roles",
			map[string]any{"name": "Risk Owners", "object_type": "Control"}))
		s.Equal(http.StatusCreated, rr.Code)
	})
	s.Run("duplicate conflicts", func() {
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/access_control_roles",
			map[string]any{"name": "Risk Owners", "object_type": "Control"}))
		s.Equal(http.StatusConflict, rr.Code)
	})
	s.Run("reserved suffix rejected", func() {
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/access_control_roles",
			map[string]any{"name": "Owners Mapped", "object_type": "Control"}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
	s.Run("list includes the new role", func() {
		rr := testutil.DoRequest(r, testutil.NewRequest(s.T(), http.MethodGet, "/api/access_control_roles?object_type=control"))
		s.Equal(http.StatusOK, rr.Code)
		s.Contains(rr.Body.String(), "Risk Owners")
	})
	s.Run("unknown type", func() {
		rr := testutil.DoRequest(r, testutil.NewRequest(s.T(), http.MethodGet, "/api/access_control_roles?object_type=spaceship"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}
