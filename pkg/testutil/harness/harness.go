// Package harness runs the full HTTP router over a memory repository for
// end-to-end tests. Embed Suite in a testify suite.
package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"grc/internal/acl"
	"grc/internal/assessment"
	assessmenthandler "grc/internal/assessment/handler"
	"grc/internal/audit"
	"grc/internal/auth"
	authhandler "grc/internal/auth/handler"
	sessionstore "grc/internal/auth/store/session"
	"grc/internal/auth/token"
	"grc/internal/blob/memory"
	"grc/internal/converters"
	convertershandler "grc/internal/converters/handler"
	httpapi "grc/internal/http"
	"grc/internal/models"
	"grc/internal/objects"
	objectshandler "grc/internal/objects/handler"
	"grc/internal/review"
	"grc/internal/store"
	auditmemory "grc/pkg/platform/audit/store/memory"
	"grc/pkg/platform/middleware/admin"
	"grc/pkg/requestcontext"
	"grc/pkg/testutil/factories"
)

// AdminToken guards the admin routes of the harness router.
const AdminToken = "harness-admin-token"

// Suite is the base of end-to-end suites. Every test gets a fresh
// repository with the role catalog seeded.
type Suite struct {
	suite.Suite

	Store    *store.Store
	AuditLog *auditmemory.InMemoryStore
	Catalog  acl.Catalog
	Router   chi.Router

	// User is the signed-in person after Login.
	User models.Person
	// Ctx carries User as the acting person for factory writes.
	Ctx   context.Context
	token string

	// Audit and Snapshot are the scope AssessmentPost generates into.
	Audit    models.Audit
	Snapshot models.Snapshot
}

func (s *Suite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.AuditLog = auditmemory.NewInMemoryStore()
	st, err := store.New(ctx, store.WithPersister(store.NewMemoryPersister(s.AuditLog)), store.WithLogger(logger))
	s.Require().NoError(err)
	s.Store = st

	s.Catalog, err = acl.LoadCatalog()
	s.Require().NoError(err)
	s.Require().NoError(st.SingleCommit(ctx, func(tx *store.Tx) error { return acl.Seed(tx, s.Catalog) }))

	tokens := token.NewService("harness-signing-key", "grc")
	authService := auth.NewService(st, sessionstore.New(), tokens,
		auth.WithLogger(logger),
		auth.WithDevLogin(true, "user@example.com"),
	)
	s.Router = httpapi.NewRouter(httpapi.Config{
		Logger:     logger,
		Tokens:     tokens,
		Sessions:   authService,
		AdminToken: AdminToken,
	}, httpapi.Handlers{
		Auth:        authhandler.New(authService, logger, false),
		Objects:     objectshandler.New(objects.NewService(st, objects.WithLogger(logger)), logger),
		Reviews:     review.NewHandler(review.NewService(st, logger), logger),
		Assessments: assessmenthandler.New(assessment.NewService(st, s.Catalog.Propagation, assessment.WithLogger(logger)), logger),
		Converters: convertershandler.New(converters.NewService(st, s.Catalog.Propagation,
			converters.WithLogger(logger),
			converters.WithBlobStore(memory.New(), "exports/", 0),
		), logger),
		Roles:    acl.NewHandler(acl.NewService(st, logger), logger),
		AuditLog: audit.NewHandler(s.AuditLog, logger),
	})

	s.User = models.Person{}
	s.Ctx = ctx
	s.token = ""
	s.Audit = models.Audit{}
	s.Snapshot = models.Snapshot{}
}

// Login signs in the default user through GET /login; later requests carry
// the session token.
func (s *Suite) Login() models.Person {
	rr := s.serve(httptest.NewRequest(http.MethodGet, "/login", nil))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	var resp authhandler.LoginResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.token = resp.Token
	s.Require().NoError(s.Store.View(context.Background(), func(tx *store.Tx) error {
		p, ok := tx.People().Get(resp.Person.ID)
		s.Require().True(ok)
		s.User = p
		return nil
	}))
	s.Ctx = requestcontext.WithPersonID(context.Background(), s.User.ID)
	return s.User
}

// Commit runs factory calls in one commit, acting as the signed-in user.
func (s *Suite) Commit(fn func(f *factories.Factory)) {
	factories.SingleCommit(s.T(), s.Ctx, s.Store, fn)
}

// View runs fn against the committed state.
func (s *Suite) View(fn func(tx *store.Tx)) {
	s.Require().NoError(s.Store.View(context.Background(), func(tx *store.Tx) error {
		fn(tx)
		return nil
	}))
}

func (s *Suite) serve(req *http.Request) *httptest.ResponseRecorder {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

// Do sends a request with an optional body as the signed-in user.
func (s *Suite) Do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.serve(req)
}

// DoJSON sends v as a JSON body.
func (s *Suite) DoJSON(method, path string, v any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(v)
	s.Require().NoError(err)
	return s.Do(method, path, bytes.NewReader(raw), "application/json")
}

// DoAdmin sends a request carrying the admin token.
func (s *Suite) DoAdmin(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(admin.HeaderAdminToken, AdminToken)
	return s.serve(req)
}

// ExportCSV posts export queries to /_service/export_csv.
func (s *Suite) ExportCSV(queries ...map[string]any) *httptest.ResponseRecorder {
	return s.DoJSON(http.MethodPost, "/_service/export_csv", queries)
}

// ExportBlocks exports and parses the returned document, failing on any
// status other than 200.
func (s *Suite) ExportBlocks(queries ...map[string]any) []converters.Block {
	rr := s.ExportCSV(queries...)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	blocks, err := converters.ParseBlocks(rr.Body)
	s.Require().NoError(err)
	return blocks
}

// Records keys each row of b by header.
func Records(b converters.Block) []map[string]string {
	out := make([]map[string]string, 0, len(b.Rows))
	for _, row := range b.Rows {
		rec := make(map[string]string, len(b.Headers))
		for i, h := range b.Headers {
			rec[h] = row.Cell(i)
		}
		out = append(out, rec)
	}
	return out
}

// Cell is one header/value pair of an import row.
type Cell struct {
	Header string
	Value  string
}

// Row is an ordered import row. Its "object_type" cell selects the block.
type Row []Cell

// R builds a row from header/value pairs.
func R(pairs ...string) Row {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("harness.R: odd number of arguments %d", len(pairs)))
	}
	row := make(Row, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		row = append(row, Cell{Header: pairs[i], Value: pairs[i+1]})
	}
	return row
}

// BuildCSV groups consecutive rows of the same object_type into blocks.
// Each block's headers are those of its first row.
func BuildCSV(rows ...Row) ([]byte, error) {
	var blocks []converters.Block
	for _, row := range rows {
		objectType := ""
		var headers, values []string
		for _, c := range row {
			if strings.EqualFold(c.Header, "object_type") {
				objectType = c.Value
				continue
			}
			headers = append(headers, c.Header)
			values = append(values, c.Value)
		}
		if n := len(blocks); n == 0 || blocks[n-1].ObjectType != objectType {
			blocks = append(blocks, converters.Block{ObjectType: objectType, Headers: headers})
		}
		cur := &blocks[len(blocks)-1]
		cur.Rows = append(cur.Rows, converters.Row{Values: values})
	}
	return converters.EncodeBlocks(blocks)
}

// ImportCSV posts a raw document to /_service/import_csv.
func (s *Suite) ImportCSV(body []byte, dryRun bool) *httptest.ResponseRecorder {
	path := "/_service/import_csv"
	if dryRun {
		path += "?dry_run=true"
	}
	return s.Do(http.MethodPost, path, bytes.NewReader(body), "text/csv")
}

// ImportData imports rows and returns the per-block results.
func (s *Suite) ImportData(rows ...Row) []convertershandler.BlockResponse {
	body, err := BuildCSV(rows...)
	s.Require().NoError(err)
	rr := s.ImportCSV(body, false)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var resp []convertershandler.BlockResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// AssessmentPost generates an assessment for s.Snapshot in s.Audit. A nil
// template sends "template": null; extra keys are merged into the
// assessment body.
func (s *Suite) AssessmentPost(template *models.AssessmentTemplate, extra map[string]any) *httptest.ResponseRecorder {
	body := map[string]any{
		"_generated": true,
		"audit":      map[string]any{"id": s.Audit.ID, "type": "Audit"},
		"object":     map[string]any{"id": s.Snapshot.ID, "type": "Snapshot"},
		"template":   nil,
		"title":      "Temp title",
	}
	if template != nil {
		body["template"] = map[string]any{"id": template.ID, "type": "AssessmentTemplate"}
	}
	for k, v := range extra {
		body[k] = v
	}
	return s.DoJSON(http.MethodPost, "/api/assessments", map[string]any{"assessment": body})
}

// AssessmentResponse decodes the body of a successful AssessmentPost.
func (s *Suite) AssessmentResponse(rr *httptest.ResponseRecorder) assessmenthandler.AssessmentResponse {
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var env assessmenthandler.Envelope
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Assessment
}
