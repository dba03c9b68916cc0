package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grc/internal/assessment"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/httputil"
	"grc/pkg/requestcontext"
)

// Service defines the assessment operations used by the handler.
type Service interface {
	Generate(ctx context.Context, req assessment.GenerateRequest) (*assessment.Result, error)
	GenerateBulk(ctx context.Context, req assessment.BulkRequest) ([]*assessment.Result, error)
	Update(ctx context.Context, req assessment.UpdateRequest) (*assessment.Result, error)
	Get(ctx context.Context, id int64) (*assessment.Result, error)
}

// Handler wires assessment endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an assessment handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts assessment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/assessments", h.HandlePost)
	r.Post("/api/assessments/generate", h.HandleGenerateBulk)
	r.Get("/api/assessments/{id}", h.HandleGet)
}

// HandlePost handles POST /api/assessments: generation when no id is given,
// text update otherwise.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	personID := requestcontext.PersonID(ctx)
	if personID == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[PostRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		result *assessment.Result
		err    error
	)
	if req.Assessment.IsUpdate() {
		result, err = h.service.Update(ctx, req.Assessment.UpdateRequest())
	} else {
		result, err = h.service.Generate(ctx, req.Assessment.GenerateRequest())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "assessment post failed",
			"request_id", requestID,
			"person_id", personID,
			"update", req.Assessment.IsUpdate(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "assessment posted",
		"request_id", requestID,
		"person_id", personID,
		"assessment_id", result.Assessment.ID,
		"status", result.Assessment.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, Envelope{Assessment: FromResult(result)})
}

// HandleGenerateBulk handles POST /api/assessments/generate.
func (h *Handler) HandleGenerateBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if requestcontext.PersonID(ctx) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[BulkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.GenerateBulk(ctx, req.ToDomain())
	if err != nil {
		h.logger.WarnContext(ctx, "bulk assessment generation failed",
			"request_id", requestID,
			"audit_id", req.Audit.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := BulkResponse{Assessments: make([]AssessmentResponse, 0, len(results))}
	for _, res := range results {
		resp.Assessments = append(resp.Assessments, FromResult(res))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /api/assessments/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, Envelope{Assessment: FromResult(result)})
}
