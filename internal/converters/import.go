package converters

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"grc/internal/store"
	"grc/pkg/domain"
	dErrors "grc/pkg/domain-errors"
	audit "grc/pkg/platform/audit"
)


// BlockResult summarizes the import of one block.
type BlockResult struct {
	Name          string
	Rows          int
	Created       int
	Updated       int
	Deleted       int
	Ignored       int
	BlockErrors   []string
	BlockWarnings []string
	RowErrors     []string
	RowWarnings   []string
}

// Import applies a CSV document. Rows failing validation are reported and
// skipped; any other failure aborts the whole import. A dry run reports
// the same results without committing.
func (s *Service) Import(ctx context.Context, r io.Reader, dryRun bool) ([]BlockResult, error) {
	ctx, span := tracer.Start(ctx, "converters.Import", trace.WithAttributes(attribute.Bool("import.dry_run", dryRun)))
	defer span.End()
	start := time.Now()

	blocks, err := ParseBlocks(r)
	if err != nil {
		return nil, err
	}

	run := s.store.SingleCommit
	if dryRun {
		run = s.store.DryRun
	}
	var results []BlockResult
	err = run(ctx, func(tx *store.Tx) error {
		results = make([]BlockResult, 0, len(blocks))
		for _, b := range blocks {
			res, err := s.importBlock(tx, b)
			if err != nil {
				return err
			}
			results = append(results, res)
			tx.Emit(audit.Event{
				Action:     string(audit.EventObjectsImported),
				ObjectType: res.Name,
				Detail: fmt.Sprintf("created=%d updated=%d deleted=%d ignored=%d",
					res.Created, res.Updated, res.Deleted, res.Ignored),
			})
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "import aborted", "dry_run", dryRun, "error", err)
		return nil, translate(err, "failed to import objects")
	}

	if !dryRun {
		for _, res := range results {
			s.metrics.AddImported(res.Name, "created", res.Created)
			s.metrics.AddImported(res.Name, "updated", res.Updated)
			s.metrics.AddImported(res.Name, "deleted", res.Deleted)
			s.metrics.AddImported(res.Name, "ignored", res.Ignored)
		}
	}
	s.metrics.ObserveLatency("import", dryRun, time.Since(start))
	span.SetAttributes(
		attribute.Int("import.blocks", len(results)),
		attribute.Bool("import.dry_run", dryRun),
	)
	s.logger.InfoContext(ctx, "objects imported",
		"blocks", len(results),
		"dry_run", dryRun,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

func (s *Service) importBlock(tx *store.Tx, b Block) (BlockResult, error) {
	res := BlockResult{Name: b.ObjectType, Rows: len(b.Rows)}

	var k kind
	if t, err := domain.ParseObjectType(b.ObjectType); err == nil {
		k, _ = s.kindFor(t)
	}
	if k == nil {
		res.BlockErrors = append(res.BlockErrors,
			fmt.Sprintf("Line %d: Unknown object type '%s'. The block will be ignored.", b.Line, b.ObjectType))
		res.Ignored = len(b.Rows)
		return res, nil
	}
	res.Name = string(k.Type())

	cols := k.Columns(tx)
	keyCol, keyRequired := k.Key()
	mapping := make([]string, len(b.Headers))
	seen := map[string]bool{}
	keyIdx := -1
	for i, h := range b.Headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		col, ok := findColumn(cols, h)
		switch {
		case !ok:
			res.BlockWarnings = append(res.BlockWarnings,
				fmt.Sprintf("Line %d: Attribute '%s' does not exist. Column will be ignored.", b.Line, h))
		case !col.Importable:
			res.BlockWarnings = append(res.BlockWarnings,
				fmt.Sprintf("Line %d: Attribute '%s' can not be imported. Column will be ignored.", b.Line, h))
		case seen[col.Name]:
			res.BlockWarnings = append(res.BlockWarnings,
				fmt.Sprintf("Line %d: Duplicate column '%s'. Column will be ignored.", b.Line, h))
		default:
			mapping[i] = col.Name
			seen[col.Name] = true
			if col.Name == keyCol {
				keyIdx = i
			}
		}
	}
	if keyRequired && keyIdx < 0 {
		res.BlockErrors = append(res.BlockErrors,
			fmt.Sprintf("Line %d: Missing mandatory column '%s'. The block will be ignored.", b.Line, keyCol))
		res.Ignored = len(b.Rows)
		return res, nil
	}

	keys := map[string]int{}
	for _, row := range b.Rows {
		in := &rowInput{Values: map[string]string{}}
		for i, name := range mapping {
			if name != "" {
				in.Values[name] = row.Cell(i)
			}
		}
		if keyIdx >= 0 {
			in.Key = strings.TrimSpace(row.Cell(keyIdx))
		}
		if keyRequired && in.Key == "" {
			res.RowErrors = append(res.RowErrors,
				fmt.Sprintf("Line %d: Field '%s' is required. The row will be ignored.", row.Line, keyCol))
			res.Ignored++
			continue
		}
		if in.Key != "" {
			lk := strings.ToLower(in.Key)
			if first, dup := keys[lk]; dup {
				res.RowErrors = append(res.RowErrors,
					fmt.Sprintf("Line %d: Field '%s' should be unique, but '%s' already exists on line %d. The row will be ignored.",
						row.Line, keyCol, in.Key, first))
				res.Ignored++
				continue
			}
			keys[lk] = row.Line
		}

		line := row.Line
		in.warn = func(format string, args ...any) {
			res.RowWarnings = append(res.RowWarnings, fmt.Sprintf("Line %d: ", line)+fmt.Sprintf(format, args...))
		}

		var out outcome
		err := tx.Savepoint(func() error {
			var err error
			out, err = k.Apply(tx, in)
			return err
		})
		if err != nil {
			if !rowLevel(err) {
				return res, err
			}
			res.RowErrors = append(res.RowErrors,
				fmt.Sprintf("Line %d: %s. The row will be ignored.", row.Line, strings.TrimSuffix(dErrors.MessageOf(err), ".")))
			res.Ignored++
			continue
		}
		switch out {
		case outcomeCreated:
			res.Created++
		case outcomeDeleted:
			res.Deleted++
		default:
			res.Updated++
		}
	}
	return res, nil
}

// rowLevel reports whether err rejects one row rather than the import.
func rowLevel(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput,
		dErrors.CodeConflict, dErrors.CodeNotFound, dErrors.CodeInvariantViolation:
		return true
	}
	return false
}
