package handler

import (
	"time"

	"grc/internal/blob/core"
	"grc/internal/converters"
)

// BlockResponse reports the import of one block.
type BlockResponse struct {
	Name          string   `json:"name"`
	Rows          int      `json:"rows"`
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Deleted       int      `json:"deleted"`
	Ignored       int      `json:"ignored"`
	BlockErrors   []string `json:"block_errors"`
	BlockWarnings []string `json:"block_warnings"`
	RowErrors     []string `json:"row_errors"`
	RowWarnings   []string `json:"row_warnings"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func FromResults(results []converters.BlockResult) []BlockResponse {
	out := make([]BlockResponse, 0, len(results))
	for _, r := range results {
		out = append(out, BlockResponse{
			Name:          r.Name,
			Rows:          r.Rows,
			Created:       r.Created,
			Updated:       r.Updated,
			Deleted:       r.Deleted,
			Ignored:       r.Ignored,
			BlockErrors:   nonNil(r.BlockErrors),
			BlockWarnings: nonNil(r.BlockWarnings),
			RowErrors:     nonNil(r.RowErrors),
			RowWarnings:   nonNil(r.RowWarnings),
		})
	}
	return out
}

// ExportInfo describes a stored export.
type ExportInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ExportList is the body of GET /_service/exports.
type ExportList struct {
	Exports []ExportInfo `json:"exports"`
}

func FromInfos(infos []core.Info) ExportList {
	out := ExportList{Exports: make([]ExportInfo, 0, len(infos))}
	for _, i := range infos {
		out.Exports = append(out.Exports, ExportInfo{Key: i.Key, Size: i.Size, LastModified: i.LastModified})
	}
	return out
}
