package objects

import (
	"context"
	"errors"
	"log/slog"

	"grc/internal/acl"
	"grc/internal/models"
	"grc/internal/review"
	"grc/internal/snapshot"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/sentinel"
)

// Service implements the object REST operations on top of the repository.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the object service.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant assigns a role, by id or name, to people on an object. An empty
// person list clears the role.
type Grant struct {
	RoleID    int64
	RoleName  string
	PersonIDs []int64
}

// BusinessView is a business object with its people and review state.
type BusinessView struct {
	Object       models.BusinessObject
	ACL          []acl.Entry
	ReviewID     int64
	ReviewStatus string
	Reviewers    []int64
}

// AuditView is an audit with its people and in-scope snapshots.
type AuditView struct {
	Audit     models.Audit
	ACL       []acl.Entry
	Snapshots []models.Snapshot
}

func businessView(tx *store.Tx, o models.BusinessObject) BusinessView {
	v := BusinessView{
		Object:       o,
		ACL:          acl.Entries(tx, o.Ref()),
		ReviewStatus: review.StatusOf(tx, o.Ref()),
		Reviewers:    review.Reviewers(tx, o.Ref()),
	}
	if r, ok := review.For(tx, o.Ref()); ok {
		v.ReviewID = r.ID
	}
	return v
}

// applyGrants resolves each grant's role on ref.Type and syncs its holders.
// With replace, custom roles missing from grants are cleared.
func applyGrants(tx *store.Tx, ref domain.ObjectRef, grants []Grant, replace bool) (bool, error) {
	changed := false
	seen := map[string]bool{}
	for _, g := range grants {
		name := g.RoleName
		if g.RoleID != 0 {
			role, ok := tx.Roles().Get(g.RoleID)
			if !ok || role.ObjectType != ref.Type {
				return false, dErrors.Newf(dErrors.CodeValidation, "role %d does not apply to %s", g.RoleID, ref.Type)
			}
			name = role.Name
		}
		role, ok := acl.Role(tx, ref.Type, name)
		if !ok || role.Internal {
			return false, dErrors.Newf(dErrors.CodeValidation, "unknown role %q for %s", name, ref.Type)
		}
		for _, id := range g.PersonIDs {
			if _, ok := tx.People().Get(id); !ok {
				return false, dErrors.Newf(dErrors.CodeNotFound, "person %d not found", id)
			}
		}
		seen[name] = true
		c, err := acl.SyncPeople(tx, ref, name, g.PersonIDs)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	if !replace {
		return changed, nil
	}
	for _, r := range acl.RolesFor(tx, ref.Type) {
		if r.Internal || seen[r.Name] {
			continue
		}
		c, err := acl.SyncPeople(tx, ref, r.Name, nil)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

// ListBusiness returns every object of type t ordered by id.
func (s *Service) ListBusiness(ctx context.Context, t domain.ObjectType) ([]BusinessView, error) {
	var out []BusinessView
	err := s.store.View(ctx, func(tx *store.Tx) error {
		for _, o := range tx.Objects().Filter(func(o models.BusinessObject) bool { return o.Type == t }) {
			out = append(out, businessView(tx, o))
		}
		return nil
	})
	return out, translate(err, "failed to list objects")
}

// GetBusiness loads one business object.
func (s *Service) GetBusiness(ctx context.Context, ref domain.ObjectRef) (BusinessView, error) {
	var out BusinessView
	err := s.store.View(ctx, func(tx *store.Tx) error {
		o, ok := tx.Objects().Get(ref.ID)
		if !ok || o.Type != ref.Type {
			return dErrors.Newf(dErrors.CodeNotFound, "%s %d not found", ref.Type, ref.ID)
		}
		out = businessView(tx, o)
		return nil
	})
	return out, translate(err, "failed to load object")
}

// CreateBusiness stores a new object with its people. Roles defaulting to
// the current user are granted when the request leaves them empty.
func (s *Service) CreateBusiness(ctx context.Context, o models.BusinessObject, grants []Grant) (BusinessView, error) {
	var out BusinessView
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		created, err := CreateBusiness(tx, o)
		if err != nil {
			return err
		}
		if _, err := applyGrants(tx, created.Ref(), grants, false); err != nil {
			return err
		}
		if err := acl.GrantDefaults(tx, created.Ref()); err != nil {
			return err
		}
		out = businessView(tx, created)
		return nil
	})
	if err != nil {
		return out, translate(err, "failed to create object")
	}
	s.logger.InfoContext(ctx, "object created",
		"object", out.Object.Ref().String(),
		"slug", out.Object.Slug,
	)
	return out, nil
}

// UpdateBusiness replaces the editable fields. With replaceACL the grants
// become the object's complete custom role assignment.
func (s *Service) UpdateBusiness(ctx context.Context, o models.BusinessObject, grants []Grant, replaceACL bool) (BusinessView, error) {
	var out BusinessView
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		if _, ok := tx.Objects().Get(o.ID); !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "%s %d not found", o.Type, o.ID)
		}
		peopleChanged, err := applyGrants(tx, o.Ref(), grants, replaceACL)
		if err != nil {
			return err
		}
		saved, _, err := UpdateBusiness(tx, o, peopleChanged)
		if err != nil {
			return err
		}
		out = businessView(tx, saved)
		return nil
	})
	return out, translate(err, "failed to update object")
}

// DeleteBusiness removes one business object.
func (s *Service) DeleteBusiness(ctx context.Context, ref domain.ObjectRef) error {
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error { return DeleteBusiness(tx, ref) })
	if err != nil {
		return translate(err, "failed to delete object")
	}
	s.logger.InfoContext(ctx, "object deleted", "object", ref.String())
	return nil
}

// AuditInput describes a new audit.
type AuditInput struct {
	Audit    models.Audit
	Captains []int64
	Auditors []int64
	Objects  []domain.ObjectRef
}

func auditView(tx *store.Tx, a models.Audit) AuditView {
	return AuditView{
		Audit:     a,
		ACL:       acl.Entries(tx, a.Ref()),
		Snapshots: snapshot.ForAudit(tx, a.Ref()),
	}
}

// CreateAudit stores an audit, its captains and auditors, and snapshots the
// mapped objects into it.
func (s *Service) CreateAudit(ctx context.Context, in AuditInput) (AuditView, error) {
	var out AuditView
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		a, err := CreateAudit(tx, in.Audit)
		if err != nil {
			return err
		}
		if _, err := applyGrants(tx, a.Ref(), []Grant{
			{RoleName: acl.RoleAuditCaptains, PersonIDs: in.Captains},
			{RoleName: acl.RoleAuditors, PersonIDs: in.Auditors},
		}, false); err != nil {
			return err
		}
		if err := acl.GrantDefaults(tx, a.Ref()); err != nil {
			return err
		}
		if _, err := MapObjects(tx, a, in.Objects...); err != nil {
			return err
		}
		out = auditView(tx, a)
		return nil
	})
	if err != nil {
		return out, translate(err, "failed to create audit")
	}
	s.logger.InfoContext(ctx, "audit created",
		"audit_id", out.Audit.ID,
		"snapshots", len(out.Snapshots),
	)
	return out, nil
}

// GetAudit loads one audit.
func (s *Service) GetAudit(ctx context.Context, id int64) (AuditView, error) {
	var out AuditView
	err := s.store.View(ctx, func(tx *store.Tx) error {
		a, ok := tx.Audits().Get(id)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "audit %d not found", id)
		}
		out = auditView(tx, a)
		return nil
	})
	return out, translate(err, "failed to load audit")
}

// MapToAudit snapshots more objects into an existing audit.
func (s *Service) MapToAudit(ctx context.Context, auditID int64, refs []domain.ObjectRef) (AuditView, error) {
	var out AuditView
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		a, ok := tx.Audits().Get(auditID)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "audit %d not found", auditID)
		}
		if _, err := MapObjects(tx, a, refs...); err != nil {
			return err
		}
		out = auditView(tx, a)
		return nil
	})
	return out, translate(err, "failed to map objects")
}

// ListPeople returns every person ordered by id.
func (s *Service) ListPeople(ctx context.Context) ([]models.Person, error) {
	var out []models.Person
	err := s.store.View(ctx, func(tx *store.Tx) error {
		out = tx.People().Sorted()
		return nil
	})
	return out, translate(err, "failed to list people")
}

// CreatePerson stores a person.
func (s *Service) CreatePerson(ctx context.Context, p models.Person) (models.Person, error) {
	var out models.Person
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		var err error
		out, err = CreatePerson(tx, p)
		return err
	})
	return out, translate(err, "failed to create person")
}

// CreateTemplate stores an assessment template.
func (s *Service) CreateTemplate(ctx context.Context, t models.AssessmentTemplate) (models.AssessmentTemplate, error) {
	var out models.AssessmentTemplate
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		var err error
		out, err = CreateTemplate(tx, t)
		return err
	})
	return out, translate(err, "failed to create assessment template")
}

// CreateDefinition stores a custom attribute definition.
func (s *Service) CreateDefinition(ctx context.Context, d models.CustomAttributeDefinition) (models.CustomAttributeDefinition, error) {
	var out models.CustomAttributeDefinition
	err := s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		var err error
		out, err = CreateDefinition(tx, d)
		return err
	})
	return out, translate(err, "failed to create custom attribute definition")
}

// ListDefinitions returns the definitions of one scope ordered by id.
func (s *Service) ListDefinitions(ctx context.Context, definitionType string) ([]models.CustomAttributeDefinition, error) {
	var out []models.CustomAttributeDefinition
	err := s.store.View(ctx, func(tx *store.Tx) error {
		out = tx.CADs().Filter(func(d models.CustomAttributeDefinition) bool {
			return definitionType == "" || d.DefinitionType == definitionType
		})
		return nil
	})
	return out, translate(err, "failed to list custom attribute definitions")
}

// Revisions returns the change log of one resource, oldest first.
func (s *Service) Revisions(ctx context.Context, ref domain.ObjectRef) ([]models.Revision, error) {
	var out []models.Revision
	err := s.store.View(ctx, func(tx *store.Tx) error {
		out = Revisions(tx, ref)
		return nil
	})
	return out, translate(err, "failed to list revisions")
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
		return dErrors.Wrap(err, dErrors.CodeNotFound, "referenced object not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "object already exists")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeValidation, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
