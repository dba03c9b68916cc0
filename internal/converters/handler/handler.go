// Package handler serves the CSV import and export endpoints.
package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"grc/internal/blob/core"
	"grc/internal/converters"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/platform/httputil"
	"grc/pkg/requestcontext"
)

// MaxImportBytes bounds an uploaded CSV document.
const MaxImportBytes = 32 << 20

// KeyHeader carries the stored artifact key of an export.
const KeyHeader = "X-Export-Key"

// Service defines the converter operations used by the handler.
type Service interface {
	Export(ctx context.Context, queries []converters.ExportQuery) (*converters.ExportResult, error)
	Import(ctx context.Context, r io.Reader, dryRun bool) ([]converters.BlockResult, error)
	ListExports(ctx context.Context) ([]core.Info, error)
	OpenExport(ctx context.Context, name string) (*converters.Artifact, error)
}

// Handler wires the converter endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a converter handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the converter endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/_service/export_csv", h.HandleExport)
	r.Post("/_service/import_csv", h.HandleImport)
	r.Get("/_service/exports", h.HandleListExports)
	r.Get("/_service/exports/{name}", h.HandleOpenExport)
}

func requireUser(w http.ResponseWriter, ctx context.Context) bool {
	if requestcontext.PersonID(ctx) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return false
	}
	return true
}

// HandleExport handles POST /_service/export_csv.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if !requireUser(w, ctx) {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ExportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Export(ctx, req.ToQueries())
	if err != nil {
		h.logger.WarnContext(ctx, "export failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if result.Key != "" {
		w.Header().Set(KeyHeader, result.Key)
	}
	httputil.WriteCSV(w, converters.ExportFilename, result.Body)
}

// HandleImport handles POST /_service/import_csv. The document is the
// raw body or the "file" part of a multipart form.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()
	if !requireUser(w, ctx) {
		return
	}

	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid dry_run %q", raw))
			return
		}
		dryRun = v
	}

	body, closeBody, err := importBody(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer closeBody()

	results, err := h.service.Import(ctx, body, dryRun)
	if err != nil {
		h.logger.WarnContext(ctx, "import failed",
			"request_id", requestID,
			"dry_run", dryRun,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "import handled",
		"request_id", requestID,
		"blocks", len(results),
		"dry_run", dryRun,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResults(results))
}

func importBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "multipart import requires a \"file\" part")
	}
	return file, func() { _ = file.Close() }, nil
}

// HandleListExports handles GET /_service/exports.
func (h *Handler) HandleListExports(w http.ResponseWriter, r *http.Request) {
	if !requireUser(w, r.Context()) {
		return
	}
	infos, err := h.service.ListExports(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInfos(infos))
}

// HandleOpenExport handles GET /_service/exports/{name}: a redirect to a
// presigned URL, or the stored document itself.
func (h *Handler) HandleOpenExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requireUser(w, ctx) {
		return
	}
	name := chi.URLParam(r, "name")
	artifact, err := h.service.OpenExport(ctx, name)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to open export",
			"request_id", requestcontext.RequestID(ctx),
			"name", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if artifact.URL != "" {
		http.Redirect(w, r, artifact.URL, http.StatusFound)
		return
	}
	defer artifact.Body.Close()
	contentType := artifact.Info.ContentType
	if contentType == "" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+converters.ExportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, artifact.Body); err != nil {
		h.logger.WarnContext(ctx, "failed to stream export", "name", name, "error", err)
	}
}
