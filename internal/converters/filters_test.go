package converters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "grc/pkg/domain-errors"
)

var filterColumns = []Column{both(ColCode, "code"), both(ColTitle, "title"), {Name: ColDelete, Importable: true}}

var filterRecords = []record{
	{ID: 1, Cells: map[string]string{ColCode: "CONTROL-1", ColTitle: "Access review"}},
	{ID: 2, Cells: map[string]string{ColCode: "CONTROL-2", ColTitle: "Backup policy"}},
	{ID: 3, Cells: map[string]string{ColCode: "CONTROL-3", ColTitle: "Access logging"}},
}

func matching(t *testing.T, doc string) []int64 {
	t.Helper()
	var e Expression
	require.NoError(t, json.Unmarshal([]byte(doc), &e))
	keep, err := e.compile(filterColumns)
	require.NoError(t, err)
	var ids []int64
	for _, r := range filterRecords {
		ok, err := keep(r)
		require.NoError(t, err)
		if ok {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func TestExpressionCompile(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []int64
	}{
		{"empty matches all", `{}`, []int64{1, 2, 3}},
		{"ids", `{"ids":[3,1]}`, []int64{1, 3}},
		{"equal ignores case", `{"op":{"name":"="},"left":"title","right":"backup POLICY"}`, []int64{2}},
		{"not equal", `{"op":{"name":"!="},"left":"Code","right":"CONTROL-2"}`, []int64{1, 3}},
		{"contains", `{"op":{"name":"~"},"left":"title","right":"access"}`, []int64{1, 3}},
		{"not contains", `{"op":{"name":"!~"},"left":"title","right":"access"}`, []int64{2}},
		{"id field", `{"op":{"name":"="},"left":"id","right":2}`, []int64{2}},
		{"and", `{"op":{"name":"AND"},
			"left":{"op":{"name":"~"},"left":"title","right":"access"},
			"right":{"op":{"name":"!="},"left":"code","right":"control-1"}}`, []int64{3}},
		{"or", `{"op":{"name":"or"},
			"left":{"op":{"name":"="},"left":"code","right":"CONTROL-1"},
			"right":{"op":{"name":"="},"left":"code","right":"CONTROL-2"}}`, []int64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matching(t, tt.doc))
		})
	}
}

func TestExpressionCompileErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown operator":   `{"op":{"name":"<>"},"left":"title","right":"x"}`,
		"unknown field":      `{"op":{"name":"="},"left":"owner","right":"x"}`,
		"import only field":  `{"op":{"name":"="},"left":"Delete","right":"x"}`,
		"missing field":      `{"op":{"name":"="},"right":"x"}`,
		"nested bad operand": `{"op":{"name":"AND"},"left":{},"right":{"op":{"name":"="},"left":"nope","right":1}}`,
		"object value":       `{"op":{"name":"="},"left":"title","right":{"a":1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			var e Expression
			require.NoError(t, json.Unmarshal([]byte(doc), &e))
			_, err := e.compile(filterColumns)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
