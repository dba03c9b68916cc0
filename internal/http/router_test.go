package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"grc/internal/audit"
	"grc/internal/platform/metrics"
	auditmemory "grc/pkg/platform/audit/store/memory"
	"grc/pkg/platform/middleware/admin"
	"grc/pkg/testutil"
)

func TestRouterOperationalEndpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	testutil.Given(t, "a router with one healthy and one failing dependency", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		healthy := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}
		failing := HealthCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("no brokers") }}
		r := NewRouter(Config{
			Logger:     logger,
			AdminToken: "secret",
			Metrics:    metrics.New(reg),
			Gatherer:   reg,
			Checks:     []HealthCheck{healthy, failing},
		}, Handlers{})

		testutil.When(t, "liveness is probed", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
			testutil.Then(t, "it answers ok regardless of dependencies", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})

		testutil.When(t, "readiness is probed", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/readyz"))
			report := testutil.UnmarshalResponse[map[string]string](t, rr)
			testutil.Then(t, "it reports every check and fails overall", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
				assert.Equal(t, "ok", (*report)["database"])
				assert.Equal(t, "no brokers", (*report)["kafka"])
			})
		})

		testutil.When(t, "metrics are scraped", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/metrics"))
			testutil.Then(t, "request counters are exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, rr.Body.String(), "grc_http_requests_total")
			})
		})
	})

	testutil.Given(t, "the admin surface", func(t *testing.T) {
		r := NewRouter(Config{Logger: logger, AdminToken: "secret"}, Handlers{
			AuditLog: audit.NewHandler(auditmemory.NewInMemoryStore(), logger),
		})

		testutil.When(t, "the admin token is missing", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/admin/audit_events"))
			testutil.Then(t, "the request is rejected", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			})
		})

		testutil.When(t, "the admin token matches", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/admin/audit_events")
			req.Header.Set(admin.HeaderAdminToken, "secret")
			rr := testutil.DoRequest(r, req)
			testutil.Then(t, "the audit log is listed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})
	})

	testutil.Given(t, "no admin token configured", func(t *testing.T) {
		r := NewRouter(Config{Logger: logger}, Handlers{
			AuditLog: audit.NewHandler(auditmemory.NewInMemoryStore(), logger),
		})
		req := testutil.NewRequest(t, http.MethodGet, "/admin/audit_events")
		req.Header.Set(admin.HeaderAdminToken, "")
		rr := testutil.DoRequest(r, req)
		testutil.And(t, "admin routes are not mounted at all", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusNotFound)
		})
	})
}
