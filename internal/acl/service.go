package acl

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"grc/internal/models"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
)

// Service exposes role administration.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// CreateRoleRequest creates a custom (non-internal) role.
type CreateRoleRequest struct {
	Name       string `json:"name"`
	ObjectType string `json:"object_type"`
	Mandatory  bool   `json:"mandatory"`
}

func (r *CreateRoleRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.ObjectType = strings.TrimSpace(r.ObjectType)
}

func (r *CreateRoleRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if strings.HasSuffix(r.Name, MappedSuffix) {
		return dErrors.Newf(dErrors.CodeValidation, "role names ending in %q are reserved", MappedSuffix)
	}
	return nil
}

// SeedCatalog installs the catalog roles.
func (s *Service) SeedCatalog(ctx context.Context, c Catalog) error {
	return s.store.SingleCommit(ctx, func(tx *store.Tx) error { return Seed(tx, c) })
}

// ListRoles returns every role of the type, internal ones included.
func (s *Service) ListRoles(ctx context.Context, rawType string) ([]models.AccessControlRole, error) {
	t, err := domain.ParseObjectType(rawType)
	if err != nil {
		return nil, err
	}
	var out []models.AccessControlRole
	err = s.store.View(ctx, func(tx *store.Tx) error {
		out = RolesFor(tx, t)
		return nil
	})
	return out, err
}

// CreateRole adds a custom role; names are unique per type.
func (s *Service) CreateRole(ctx context.Context, req CreateRoleRequest) (models.AccessControlRole, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.AccessControlRole{}, err
	}
	t, err := domain.ParseObjectType(req.ObjectType)
	if err != nil {
		return models.AccessControlRole{}, err
	}

	var created models.AccessControlRole
	err = s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		if _, exists := Role(tx, t, req.Name); exists {
			return dErrors.Newf(dErrors.CodeConflict, "role %q already exists for %s", req.Name, t)
		}
		var err error
		created, err = tx.PutRole(models.AccessControlRole{Name: req.Name, ObjectType: t, Mandatory: req.Mandatory})
		if err != nil {
			return err
		}
		tx.Emit(audit.Event{
			Action:     string(audit.EventRoleCreated),
			ObjectType: string(domain.TypeAccessControlRole),
			ObjectID:   created.ID,
			Subject:    string(t) + "/" + created.Name,
		})
		return nil
	})
	if err != nil {
		var de *dErrors.Error
		if !errors.As(err, &de) {
			return models.AccessControlRole{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create role")
		}
		return models.AccessControlRole{}, err
	}
	s.logger.InfoContext(ctx, "access control role created",
		"role_id", created.ID,
		"object_type", t,
		"name", created.Name,
	)
	return created, nil
}
