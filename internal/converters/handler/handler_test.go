package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"grc/internal/blob/core"
	"grc/internal/converters"
	"grc/internal/converters/handler/mocks"
	dErrors "grc/pkg/domain-errors"
	"grc/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ConvertersHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestConvertersHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConvertersHandlerSuite))
}

func (s *ConvertersHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = testutil.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *ConvertersHandlerSuite) TestExport() {
	s.Run("all fields and a filter", func() {
		s.service.EXPECT().Export(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, queries []converters.ExportQuery) (*converters.ExportResult, error) {
				s.Require().Len(queries, 1)
				s.Equal("Control", queries[0].ObjectName)
				s.Nil(queries[0].Fields)
				s.Require().NotNil(queries[0].Expression.Op)
				s.Equal("=", queries[0].Expression.Op.Name)
				return &converters.ExportResult{Body: []byte("Object type\nControl,Code*\n"), Key: "exports/k.csv", Rows: 0}, nil
			})

		req := testutil.WithPersonID(testutil.NewJSONRequest(s.T(), http.MethodPost, "/_service/export_csv", []map[string]any{{
			"object_name": " Control ",
			"filters": map[string]any{"expression": map[string]any{
				"op": map[string]any{"name": "="}, "left": "title", "right": "Control 1",
			}},
			"fields": "all",
		}}), 1)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Equal("exports/k.csv", rr.Header().Get(KeyHeader))
		s.Contains(rr.Header().Get("Content-Disposition"), converters.ExportFilename)
		s.True(strings.HasPrefix(rr.Body.String(), "Object type"))
	})

	s.Run("field list", func() {
		s.service.EXPECT().Export(gomock.Any(), []converters.ExportQuery{{ObjectName: "Audit", Fields: []string{"Title"}}}).
			Return(&converters.ExportResult{Body: []byte("x")}, nil)
		req := testutil.WithPersonID(testutil.NewJSONRequest(s.T(), http.MethodPost, "/_service/export_csv", []map[string]any{{
			"object_name": "Audit",
			"fields":      []string{"Title", " "},
		}}), 1)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Empty(rr.Header().Get(KeyHeader))
	})

	s.Run("invalid bodies", func() {
		for _, body := range []any{
			[]map[string]any{},
			[]map[string]any{{"object_name": ""}},
			[]map[string]any{{"object_name": "Control", "fields": "some"}},
			[]map[string]any{{"object_name": "Control", "fields": 3}},
		} {
			req := testutil.WithPersonID(testutil.NewJSONRequest(s.T(), http.MethodPost, "/_service/export_csv", body), 1)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		}
	})

	s.Run("requires authentication", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/_service/export_csv", []map[string]any{{"object_name": "Control"}}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func (s *ConvertersHandlerSuite) TestImport() {
	result := []converters.BlockResult{{Name: "Control", Rows: 1, Updated: 1}}

	s.Run("raw body", func() {
		s.service.EXPECT().Import(gomock.Any(), gomock.Any(), false).DoAndReturn(
			func(_ context.Context, r io.Reader, _ bool) ([]converters.BlockResult, error) {
				body, err := io.ReadAll(r)
				s.Require().NoError(err)
				s.Equal("Object type\nControl,Code\n,CONTROL-1\n", string(body))
				return result, nil
			})
		req := testutil.WithPersonID(testutil.NewCSVRequest(s.T(), http.MethodPost, "/_service/import_csv",
			"Object type\nControl,Code\n,CONTROL-1\n"), 1)
		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[[]BlockResponse](s.T(), rr)
		s.Require().Len(*resp, 1)
		s.Equal(1, (*resp)[0].Updated)
		s.NotNil((*resp)[0].RowErrors)
		s.Empty((*resp)[0].RowErrors)
	})

	s.Run("multipart dry run", func() {
		s.service.EXPECT().Import(gomock.Any(), gomock.Any(), true).DoAndReturn(
			func(_ context.Context, r io.Reader, _ bool) ([]converters.BlockResult, error) {
				body, err := io.ReadAll(r)
				s.Require().NoError(err)
				s.Equal("csv payload", string(body))
				return result, nil
			})

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "import.csv")
		s.Require().NoError(err)
		_, err = part.Write([]byte("csv payload"))
		s.Require().NoError(err)
		s.Require().NoError(mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/_service/import_csv?dry_run=true", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := testutil.DoRequest(s.router, testutil.WithPersonID(req, 1))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("invalid dry run flag", func() {
		req := testutil.WithPersonID(testutil.NewCSVRequest(s.T(), http.MethodPost, "/_service/import_csv?dry_run=maybe", "x"), 1)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("parse failure", func() {
		s.service.EXPECT().Import(gomock.Any(), gomock.Any(), false).
			Return(nil, dErrors.New(dErrors.CodeBadRequest, "the file does not start with an object type block"))
		req := testutil.WithPersonID(testutil.NewCSVRequest(s.T(), http.MethodPost, "/_service/import_csv", "Code\n"), 1)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *ConvertersHandlerSuite) TestExports() {
	s.Run("list", func() {
		s.service.EXPECT().ListExports(gomock.Any()).Return([]core.Info{{Key: "exports/a.csv", Size: 10}}, nil)
		rr := testutil.DoRequest(s.router, testutil.WithPersonID(testutil.NewRequest(s.T(), http.MethodGet, "/_service/exports"), 1))
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ExportList](s.T(), rr)
		s.Require().Len(resp.Exports, 1)
		s.Equal("exports/a.csv", resp.Exports[0].Key)
	})

	s.Run("presigned redirect", func() {
		s.service.EXPECT().OpenExport(gomock.Any(), "a.csv").Return(&converters.Artifact{URL: "https://bucket/a.csv?sig"}, nil)
		rr := testutil.DoRequest(s.router, testutil.WithPersonID(testutil.NewRequest(s.T(), http.MethodGet, "/_service/exports/a.csv"), 1))
		s.Equal(http.StatusFound, rr.Code)
		s.Equal("https://bucket/a.csv?sig", rr.Header().Get("Location"))
	})

	s.Run("streamed", func() {
		s.service.EXPECT().OpenExport(gomock.Any(), "b.csv").Return(&converters.Artifact{
			Info: core.Info{ContentType: "text/csv"},
			Body: io.NopCloser(strings.NewReader("Object type\n")),
		}, nil)
		rr := testutil.DoRequest(s.router, testutil.WithPersonID(testutil.NewRequest(s.T(), http.MethodGet, "/_service/exports/b.csv"), 1))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Equal("text/csv", rr.Header().Get("Content-Type"))
		s.Equal("Object type\n", rr.Body.String())
	})

	s.Run("missing", func() {
		s.service.EXPECT().OpenExport(gomock.Any(), "nope").Return(nil, dErrors.New(dErrors.CodeNotFound, `export "nope" not found`))
		rr := testutil.DoRequest(s.router, testutil.WithPersonID(testutil.NewRequest(s.T(), http.MethodGet, "/_service/exports/nope"), 1))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}
