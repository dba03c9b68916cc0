package handler

import (
	"bytes"
	"encoding/json"
	"strings"

	"grc/internal/converters"
	dErrors "grc/pkg/domain-errors"
)

// ExportQuery is one entry of an export request body.
type ExportQuery struct {
	ObjectName string `json:"object_name"`
	Filters    struct {
		Expression converters.Expression `json:"expression"`
	} `json:"filters"`
	// Fields is "all" or a list of column names.
	Fields json.RawMessage `json:"fields"`
}

// ExportRequest is the body of POST /_service/export_csv.
type ExportRequest []ExportQuery

func (r *ExportRequest) Normalize() {
	for i := range *r {
		(*r)[i].ObjectName = strings.TrimSpace((*r)[i].ObjectName)
	}
}

func (r *ExportRequest) Validate() error {
	if len(*r) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one export query is required")
	}
	for _, q := range *r {
		if q.ObjectName == "" {
			return dErrors.New(dErrors.CodeValidation, "object_name is required")
		}
		if _, err := fieldsOf(q.Fields); err != nil {
			return err
		}
	}
	return nil
}

// ToQueries converts a validated request.
func (r *ExportRequest) ToQueries() []converters.ExportQuery {
	out := make([]converters.ExportQuery, 0, len(*r))
	for _, q := range *r {
		fields, _ := fieldsOf(q.Fields)
		out = append(out, converters.ExportQuery{
			ObjectName: q.ObjectName,
			Expression: q.Filters.Expression,
			Fields:     fields,
		})
	}
	return out
}

// fieldsOf returns nil for every field.
func fieldsOf(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var all string
	if err := json.Unmarshal(raw, &all); err == nil {
		if strings.EqualFold(all, "all") {
			return nil, nil
		}
		return nil, dErrors.Newf(dErrors.CodeValidation, "fields must be \"all\" or a list, got %q", all)
	}
	var fields []string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "fields must be \"all\" or a list of names")
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out, nil
}
