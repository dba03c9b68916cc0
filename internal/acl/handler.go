package acl

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grc/internal/models"
	"grc/pkg/platform/httputil"
	"grc/pkg/requestcontext"
)

// RoleService is the handler's view of the role service.
type RoleService interface {
	ListRoles(ctx context.Context, objectType string) ([]models.AccessControlRole, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (models.AccessControlRole, error)
}

// Handler serves role listing and administration.
type Handler struct {
	service RoleService
	logger  *slog.Logger
}

func NewHandler(service RoleService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read endpoints on the session-protected router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/access_control_roles", h.HandleList)
}

// RegisterAdmin mounts role administration on the admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/access_control_roles", h.HandleCreate)
}

type roleResponse struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	ObjectType           string `json:"object_type"`
	Internal             bool   `json:"internal"`
	Mandatory            bool   `json:"mandatory"`
	DefaultToCurrentUser bool   `json:"default_to_current_user"`
}

func toRoleResponse(r models.AccessControlRole) roleResponse {
	return roleResponse{
		ID:                   r.ID,
		Name:                 r.Name,
		ObjectType:           string(r.ObjectType),
		Internal:             r.Internal,
		Mandatory:            r.Mandatory,
		DefaultToCurrentUser: r.DefaultToCurrentUser,
	}
}

// HandleList handles GET /api/access_control_roles?object_type=Control.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roles, err := h.service.ListRoles(ctx, r.URL.Query().Get("object_type"))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list roles",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /admin/access_control_roles.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[CreateRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	role, err := h.service.CreateRole(ctx, *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRoleResponse(role))
}
