// Package handler serves the object REST endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"grc/internal/models"
	"grc/internal/objects"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/httputil"
	"grc/pkg/requestcontext"
)

// Service defines the object operations used by the handler.
type Service interface {
	ListBusiness(ctx context.Context, t domain.ObjectType) ([]objects.BusinessView, error)
	GetBusiness(ctx context.Context, ref domain.ObjectRef) (objects.BusinessView, error)
	CreateBusiness(ctx context.Context, o models.BusinessObject, grants []objects.Grant) (objects.BusinessView, error)
	UpdateBusiness(ctx context.Context, o models.BusinessObject, grants []objects.Grant, replaceACL bool) (objects.BusinessView, error)
	DeleteBusiness(ctx context.Context, ref domain.ObjectRef) error
	CreateAudit(ctx context.Context, in objects.AuditInput) (objects.AuditView, error)
	GetAudit(ctx context.Context, id int64) (objects.AuditView, error)
	MapToAudit(ctx context.Context, auditID int64, refs []domain.ObjectRef) (objects.AuditView, error)
	ListPeople(ctx context.Context) ([]models.Person, error)
	CreatePerson(ctx context.Context, p models.Person) (models.Person, error)
	CreateTemplate(ctx context.Context, t models.AssessmentTemplate) (models.AssessmentTemplate, error)
	CreateDefinition(ctx context.Context, d models.CustomAttributeDefinition) (models.CustomAttributeDefinition, error)
	ListDefinitions(ctx context.Context, definitionType string) ([]models.CustomAttributeDefinition, error)
	Revisions(ctx context.Context, ref domain.ObjectRef) ([]models.Revision, error)
}

// Handler wires object endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an object handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the object endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	for _, t := range domain.BusinessTypes() {
		r.Route("/api/"+t.Collection(), func(r chi.Router) {
			r.Get("/", h.handleListBusiness(t))
			r.Post("/", h.handleCreateBusiness(t))
			r.Get("/{id}", h.handleGetBusiness(t))
			r.Put("/{id}", h.handleUpdateBusiness(t))
			r.Delete("/{id}", h.handleDeleteBusiness(t))
		})
	}
	r.Post("/api/audits", h.HandleCreateAudit)
	r.Get("/api/audits/{id}", h.HandleGetAudit)
	r.Post("/api/audits/{id}/snapshots", h.HandleMapToAudit)
	r.Get("/api/people", h.HandleListPeople)
	r.Post("/api/people", h.HandleCreatePerson)
	r.Post("/api/assessment_templates", h.HandleCreateTemplate)
	r.Get("/api/custom_attribute_definitions", h.HandleListDefinitions)
	r.Post("/api/custom_attribute_definitions", h.HandleCreateDefinition)
	r.Get("/api/revisions", h.HandleRevisions)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) handleListBusiness(t domain.ObjectType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		views, err := h.service.ListBusiness(ctx, t)
		if err != nil {
			h.fail(ctx, w, "failed to list objects", err)
			return
		}
		out := make([]BusinessResponse, 0, len(views))
		for _, v := range views {
			out = append(out, FromBusiness(v))
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func (h *Handler) handleGetBusiness(t domain.ObjectType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := domain.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		v, err := h.service.GetBusiness(ctx, domain.Ref(t, id))
		if err != nil {
			h.fail(ctx, w, "failed to load object", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromBusiness(v))
	}
}

func (h *Handler) handleCreateBusiness(t domain.ObjectType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, ok := httputil.DecodeAndPrepare[BusinessRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		grants, _ := req.Grants()
		v, err := h.service.CreateBusiness(ctx, req.ToModel(t, 0), grants)
		if err != nil {
			h.fail(ctx, w, "failed to create object", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, FromBusiness(v))
	}
}

func (h *Handler) handleUpdateBusiness(t domain.ObjectType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := domain.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		req, ok := httputil.DecodeAndPrepare[BusinessRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		grants, replace := req.Grants()
		v, err := h.service.UpdateBusiness(ctx, req.ToModel(t, id), grants, replace)
		if err != nil {
			h.fail(ctx, w, "failed to update object", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromBusiness(v))
	}
}

func (h *Handler) handleDeleteBusiness(t domain.ObjectType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := domain.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if err := h.service.DeleteBusiness(ctx, domain.Ref(t, id)); err != nil {
			h.fail(ctx, w, "failed to delete object", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCreateAudit handles POST /api/audits.
func (h *Handler) HandleCreateAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AuditRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	v, err := h.service.CreateAudit(ctx, req.ToInput())
	if err != nil {
		h.fail(ctx, w, "failed to create audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromAudit(v))
}

// HandleGetAudit handles GET /api/audits/{id}.
func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.GetAudit(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to load audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAudit(v))
}

// HandleMapToAudit handles POST /api/audits/{id}/snapshots.
func (h *Handler) HandleMapToAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[MapRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	refs, _ := refsOf(req.Objects)
	v, err := h.service.MapToAudit(ctx, id, refs)
	if err != nil {
		h.fail(ctx, w, "failed to map objects", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAudit(v))
}

// HandleListPeople handles GET /api/people.
func (h *Handler) HandleListPeople(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	people, err := h.service.ListPeople(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list people", err)
		return
	}
	out := make([]PersonResponse, 0, len(people))
	for _, p := range people {
		out = append(out, FromPerson(p))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleCreatePerson handles POST /api/people.
func (h *Handler) HandleCreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PersonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.CreatePerson(ctx, models.Person{Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(ctx, w, "failed to create person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromPerson(p))
}

// HandleCreateTemplate handles POST /api/assessment_templates.
func (h *Handler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[TemplateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	t, err := h.service.CreateTemplate(ctx, req.ToModel())
	if err != nil {
		h.fail(ctx, w, "failed to create assessment template", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTemplate(t))
}

// HandleListDefinitions handles GET /api/custom_attribute_definitions.
func (h *Handler) HandleListDefinitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defs, err := h.service.ListDefinitions(ctx, strings.TrimSpace(r.URL.Query().Get("definition_type")))
	if err != nil {
		h.fail(ctx, w, "failed to list custom attribute definitions", err)
		return
	}
	if defs == nil {
		defs = []models.CustomAttributeDefinition{}
	}
	httputil.WriteJSON(w, http.StatusOK, defs)
}

// HandleCreateDefinition handles POST /api/custom_attribute_definitions.
func (h *Handler) HandleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DefinitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	d, err := h.service.CreateDefinition(ctx, req.ToModel())
	if err != nil {
		h.fail(ctx, w, "failed to create custom attribute definition", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

// HandleRevisions handles GET /api/revisions?resource_type=&resource_id=.
func (h *Handler) HandleRevisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	t, err := domain.ParseObjectType(q.Get("resource_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := domain.ParseID(q.Get("resource_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	revs, err := h.service.Revisions(ctx, domain.Ref(t, id))
	if err != nil {
		h.fail(ctx, w, "failed to list revisions", err)
		return
	}
	out := make([]RevisionResponse, 0, len(revs))
	for _, rev := range revs {
		out = append(out, FromRevision(rev))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
