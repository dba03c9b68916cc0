package review

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grc/pkg/domain"
	"grc/pkg/platform/httputil"
	"grc/pkg/requestcontext"
)

// ReviewService is the handler's view of the service.
type ReviewService interface {
	Create(ctx context.Context, req CreateRequest) (View, error)
	Get(ctx context.Context, id int64) (View, error)
	MarkReviewed(ctx context.Context, id int64) (View, error)
}

type Handler struct {
	service ReviewService
	logger  *slog.Logger
}

func NewHandler(service ReviewService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/reviews", h.HandleCreate)
	r.Get("/api/reviews/{id}", h.HandleGet)
	r.Post("/api/reviews/{id}/mark_reviewed", h.HandleMarkReviewed)
}

type personRef struct {
	ID int64 `json:"id"`
}

type reviewResponse struct {
	ID             int64            `json:"id"`
	Reviewable     domain.ObjectRef `json:"reviewable"`
	Status         string           `json:"status"`
	LastReviewedBy *personRef       `json:"last_reviewed_by"`
	LastReviewedAt *time.Time       `json:"last_reviewed_at"`
	Reviewers      []personRef      `json:"reviewers"`
}

func toResponse(v View) map[string]reviewResponse {
	resp := reviewResponse{
		ID:             v.Review.ID,
		Reviewable:     v.Review.Reviewable,
		Status:         v.Review.Status,
		LastReviewedAt: v.Review.LastReviewedAt,
		Reviewers:      []personRef{},
	}
	if v.Review.LastReviewedBy != 0 {
		resp.LastReviewedBy = &personRef{ID: v.Review.LastReviewedBy}
	}
	for _, id := range v.Reviewers {
		resp.Reviewers = append(resp.Reviewers, personRef{ID: id})
	}
	return map[string]reviewResponse{"review": resp}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	v, err := h.service.Create(ctx, *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(v))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) HandleMarkReviewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.MarkReviewed(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "mark reviewed failed",
			"review_id", id,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(v))
}
