package converters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"grc/internal/blob/core"
	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
	"grc/pkg/platform/sentinel"
)

// ExportFilename is the attachment name of exported documents.
const ExportFilename = "export_objects.csv"

// ExportQuery selects the objects of one block. Nil Fields exports every
// exportable column.
type ExportQuery struct {
	ObjectName string
	Expression Expression
	Fields     []string
}

// ExportResult is a rendered export document.
type ExportResult struct {
	Body []byte
	// Key locates the stored artifact; empty without a blob store.
	Key  string
	Rows int
}

// Artifact is a stored export: a presigned URL when the driver supports
// one, the content otherwise.
type Artifact struct {
	URL  string
	Info core.Info
	Body io.ReadCloser
}

// Export renders one block per query, in query order.
func (s *Service) Export(ctx context.Context, queries []ExportQuery) (*ExportResult, error) {
	ctx, span := tracer.Start(ctx, "converters.Export")
	defer span.End()
	start := time.Now()

	if len(queries) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one export query is required")
	}
	blocks := make([]Block, len(queries))
	err := s.store.View(ctx, func(tx *store.Tx) error {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, q := range queries {
			g.Go(func() error {
				b, err := s.renderBlock(tx, q)
				if err != nil {
					return err
				}
				blocks[i] = b
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		span.SetStatus(codes.Error, "render failed")
		return nil, translate(err, "failed to export objects")
	}

	body, err := EncodeBlocks(blocks)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode export")
	}
	result := &ExportResult{Body: body}
	types := make([]string, 0, len(blocks))
	for _, b := range blocks {
		result.Rows += len(b.Rows)
		types = append(types, b.ObjectType)
		s.metrics.AddExported(b.ObjectType, len(b.Rows))
	}
	result.Key = s.storeArtifact(ctx, body)

	err = s.store.SingleCommit(ctx, func(tx *store.Tx) error {
		tx.Emit(audit.Event{
			Action:     string(audit.EventObjectsExported),
			ObjectType: strings.Join(types, ","),
			Subject:    result.Key,
			Detail:     fmt.Sprintf("rows=%d", result.Rows),
		})
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to record export")
	}

	span.SetAttributes(
		attribute.Int("export.blocks", len(blocks)),
		attribute.Int("export.rows", result.Rows),
	)
	s.metrics.ObserveLatency("export", false, time.Since(start))
	s.logger.InfoContext(ctx, "objects exported",
		"blocks", len(blocks),
		"rows", result.Rows,
		"key", result.Key,
	)
	return result, nil
}

func (s *Service) renderBlock(tx *store.Tx, q ExportQuery) (Block, error) {
	t, err := domain.ParseObjectType(q.ObjectName)
	if err != nil {
		return Block{}, unknownType(q.ObjectName)
	}
	k, ok := s.kindFor(t)
	if !ok {
		return Block{}, unknownType(q.ObjectName)
	}
	cols, err := selectColumns(k, k.Columns(tx), q.Fields)
	if err != nil {
		return Block{}, err
	}
	keep, err := q.Expression.compile(k.Columns(tx))
	if err != nil {
		return Block{}, err
	}

	b := Block{ObjectType: string(t)}
	for _, c := range cols {
		b.Headers = append(b.Headers, c.Name)
	}
	for _, r := range k.Records(tx) {
		ok, err := keep(r)
		if err != nil {
			return Block{}, err
		}
		if !ok {
			continue
		}
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = r.Cells[c.Name]
		}
		b.Rows = append(b.Rows, Row{Values: values})
	}
	return b, nil
}

// selectColumns keeps the exportable columns, in definition order,
// restricted to fields when given. The key column is always exported.
func selectColumns(k kind, cols []Column, fields []string) ([]Column, error) {
	want := map[string]bool{}
	for _, f := range fields {
		c, ok := findColumn(cols, f)
		if !ok || !c.Exportable {
			return nil, dErrors.Newf(dErrors.CodeValidation, "%s has no exportable field '%s'", k.Type(), f)
		}
		want[c.Name] = true
	}
	key, _ := k.Key()
	var out []Column
	for _, c := range cols {
		if c.Exportable && (fields == nil || want[c.Name] || c.Name == key) {
			out = append(out, c)
		}
	}
	return out, nil
}

// storeArtifact keeps a copy of the export; failures are logged and the
// export is still served.
func (s *Service) storeArtifact(ctx context.Context, body []byte) string {
	if s.blobs == nil {
		return ""
	}
	key := s.exportPrefix + uuid.NewString() + ".csv"
	_, err := s.blobs.Put(ctx, key, bytes.NewReader(body), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"rows": fmt.Sprint(bytes.Count(body, []byte("\n")))},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to store export artifact",
			"key", key,
			"driver", s.blobs.Driver(),
			"error", err,
		)
		return ""
	}
	return key
}

// ListExports returns the stored export artifacts.
func (s *Service) ListExports(ctx context.Context) ([]core.Info, error) {
	if s.blobs == nil {
		return []core.Info{}, nil
	}
	infos, err := s.blobs.List(ctx, s.exportPrefix)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list exports")
	}
	return infos, nil
}

// OpenExport resolves a stored export by name (the key without prefix).
func (s *Service) OpenExport(ctx context.Context, name string) (*Artifact, error) {
	id := strings.TrimSuffix(name, ".csv")
	if _, err := uuid.Parse(id); err != nil || s.blobs == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "export %q not found", name)
	}
	key := s.exportPrefix + id + ".csv"
	info, err := s.blobs.Head(ctx, key)
	if err != nil {
		return nil, translate(err, "failed to open export")
	}
	url, err := s.blobs.PresignURL(ctx, key, core.SignedURLOptions{Method: http.MethodGet, Expiry: s.presignTTL})
	switch {
	case err == nil:
		return &Artifact{URL: url, Info: info}, nil
	case !errors.Is(err, core.ErrUnsupported):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign export url")
	}
	info, body, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, translate(err, "failed to open export")
	}
	return &Artifact{Info: info, Body: body}, nil
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
