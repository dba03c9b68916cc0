// Package httpapi assembles the HTTP surface of the service.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grc/internal/acl"
	assessmenthandler "grc/internal/assessment/handler"
	"grc/internal/audit"
	authhandler "grc/internal/auth/handler"
	convertershandler "grc/internal/converters/handler"
	objectshandler "grc/internal/objects/handler"
	"grc/internal/platform/metrics"
	"grc/internal/review"
	"grc/pkg/platform/httputil"
	"grc/pkg/platform/middleware/admin"
	mwauth "grc/pkg/platform/middleware/auth"
	"grc/pkg/platform/middleware/metadata"
	"grc/pkg/platform/middleware/request"
	"grc/pkg/platform/middleware/requesttime"
)

// Handlers groups every feature handler mounted by the router.
type Handlers struct {
	Auth        *authhandler.Handler
	Objects     *objectshandler.Handler
	Reviews     *review.Handler
	Assessments *assessmenthandler.Handler
	Converters  *convertershandler.Handler
	Roles       *acl.Handler
	AuditLog    *audit.Handler
}

// HealthCheck is one named dependency probe reported by /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config carries the cross-cutting dependencies of the router.
type Config struct {
	Logger     *slog.Logger
	Tokens     mwauth.TokenValidator
	Sessions   mwauth.SessionChecker
	AdminToken string
	Metrics    *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Checks   []HealthCheck
}

// NewRouter builds the chi router: public login and health endpoints,
// session-protected API endpoints, and token-protected admin endpoints.
func NewRouter(cfg Config, h Handlers) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(metrics.LatencyMiddleware(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(logger, cfg.Checks))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if h.Auth != nil {
		h.Auth.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(mwauth.RequireSession(cfg.Tokens, cfg.Sessions, logger))
		if h.Auth != nil {
			h.Auth.RegisterProtected(r)
		}
		if h.Objects != nil {
			h.Objects.Register(r)
		}
		if h.Reviews != nil {
			h.Reviews.Register(r)
		}
		if h.Assessments != nil {
			h.Assessments.Register(r)
		}
		if h.Converters != nil {
			h.Converters.Register(r)
		}
		if h.Roles != nil {
			h.Roles.Register(r)
		}
	})

	if cfg.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
			if h.Roles != nil {
				h.Roles.RegisterAdmin(r)
			}
			if h.AuditLog != nil {
				h.AuditLog.RegisterAdmin(r)
			}
		})
	}
	return r
}

func readiness(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
				report[c.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
