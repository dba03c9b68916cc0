package converters

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	dErrors "grc/pkg/domain-errors"
)

// Filter operators.
const (
	OpEqual       = "="
	OpNotEqual    = "!="
	OpContains    = "~"
	OpNotContains = "!~"
	OpAnd         = "AND"
	OpOr          = "OR"
)

// Operator names the operation of an expression node.
type Operator struct {
	Name string `json:"name"`
}

// Expression is a filter tree. Comparison nodes hold a field name in Left
// and a value in Right; AND/OR nodes hold nested expressions. A node with
// only IDs keeps the listed object ids. The empty expression matches all.
type Expression struct {
	Op    *Operator       `json:"op,omitempty"`
	Left  json.RawMessage `json:"left,omitempty"`
	Right json.RawMessage `json:"right,omitempty"`
	IDs   []int64         `json:"ids,omitempty"`
}

// predicate decides whether a record passes a filter.
type predicate func(record) (bool, error)

func matchAll(record) (bool, error) { return true, nil }

// compile turns the expression into a predicate over records of a kind
// with the given columns.
func (e Expression) compile(cols []Column) (predicate, error) {
	if e.Op == nil || strings.TrimSpace(e.Op.Name) == "" {
		if len(e.IDs) == 0 {
			return matchAll, nil
		}
		ids := slices.Clone(e.IDs)
		return func(r record) (bool, error) { return slices.Contains(ids, r.ID), nil }, nil
	}

	switch op := strings.ToUpper(strings.TrimSpace(e.Op.Name)); op {
	case OpAnd, OpOr:
		left, err := compileRaw(e.Left, cols)
		if err != nil {
			return nil, err
		}
		right, err := compileRaw(e.Right, cols)
		if err != nil {
			return nil, err
		}
		return combine(op, left, right), nil
	case OpEqual, OpNotEqual, OpContains, OpNotContains:
		return e.comparison(cols, op)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported filter operator %q", e.Op.Name)
	}
}

func compileRaw(raw json.RawMessage, cols []Column) (predicate, error) {
	var sub Expression
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed filter expression")
		}
	}
	return sub.compile(cols)
}

func combine(op string, left, right predicate) predicate {
	return func(r record) (bool, error) {
		l, err := left(r)
		if err != nil {
			return false, err
		}
		if op == OpAnd && !l {
			return false, nil
		}
		if op == OpOr && l {
			return true, nil
		}
		return right(r)
	}
}

func (e Expression) comparison(cols []Column, op string) (predicate, error) {
	var field string
	if err := json.Unmarshal(e.Left, &field); err != nil || strings.TrimSpace(field) == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation, "filter %q needs a field name on the left", op)
	}
	want, err := scalar(e.Right)
	if err != nil {
		return nil, err
	}
	want = strings.ToLower(strings.TrimSpace(want))
	if _, err := cellFor(cols, record{}, field); err != nil {
		return nil, err
	}
	return func(r record) (bool, error) {
		cell, err := cellFor(cols, r, field)
		if err != nil {
			return false, err
		}
		cell = strings.ToLower(cell)
		switch op {
		case OpEqual:
			return cell == want, nil
		case OpNotEqual:
			return cell != want, nil
		case OpContains:
			return strings.Contains(cell, want), nil
		default:
			return !strings.Contains(cell, want), nil
		}
	}, nil
}

// scalar renders a JSON string, number or bool as text.
func scalar(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "malformed filter value")
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "filter values must be strings or numbers")
	}
}
