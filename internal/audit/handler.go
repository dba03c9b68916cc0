// Package audit serves the recent audit trail to administrators.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "grc/pkg/domain-errors"
	platformaudit "grc/pkg/platform/audit"
	"grc/pkg/platform/httputil"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Reader is the read side of an audit store.
type Reader interface {
	ListRecent(ctx context.Context, limit int) ([]platformaudit.Event, error)
}

// Handler lists audit events.
type Handler struct {
	reader Reader
	logger *slog.Logger
}

func NewHandler(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

// RegisterAdmin mounts the audit trail on the admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit_events", h.HandleList)
}

// EventResponse is the wire form of one audit event.
type EventResponse struct {
	ID          string    `json:"id,omitempty"`
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
	ActorID     int64     `json:"actor_id,omitempty"`
	Action      string    `json:"action"`
	ObjectType  string    `json:"object_type,omitempty"`
	ObjectID    int64     `json:"object_id,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	ClientAgent string    `json:"client_agent,omitempty"`
}

// ListResponse wraps the listed events.
type ListResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleList handles GET /admin/audit_events?limit=N&action=A&category=C.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := defaultLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid limit %q", raw))
			return
		}
		limit = min(n, maxLimit)
	}
	action := strings.TrimSpace(q.Get("action"))
	category := strings.TrimSpace(q.Get("category"))

	events, err := h.reader.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list audit events failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	resp := ListResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		if action != "" && e.Action != action {
			continue
		}
		if category != "" && string(e.Category) != category {
			continue
		}
		resp.Events = append(resp.Events, EventResponse{
			ID:          e.ID,
			Category:    string(e.Category),
			Timestamp:   e.Timestamp,
			ActorID:     e.ActorID,
			Action:      e.Action,
			ObjectType:  e.ObjectType,
			ObjectID:    e.ObjectID,
			Subject:     e.Subject,
			Detail:      e.Detail,
			RequestID:   e.RequestID,
			ClientAgent: e.ClientAgent,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
