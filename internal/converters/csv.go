package converters

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	dErrors "grc/pkg/domain-errors"
)

// BlockMarker is the first cell of the row opening a block.
const BlockMarker = "Object type"

// Row is one data row of a block; Line is its 1-based line in the file.
type Row struct {
	Line   int
	Values []string
}

// Block is the CSV section holding objects of one type.
type Block struct {
	ObjectType string
	Line       int
	Headers    []string
	Rows       []Row
}

// Cell returns the value under header index i, empty when the row is short.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseBlocks splits a block CSV document. A block opens with a row whose
// first cell is "Object type"; the next row holds the type name followed by
// the column headers; data rows start with an empty cell.
func ParseBlocks(r io.Reader) ([]Block, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		blocks   []Block
		cur      *Block
		expectTy bool
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed CSV")
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}
		first := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		switch {
		case strings.EqualFold(first, BlockMarker):
			expectTy = true
			cur = nil
		case expectTy:
			expectTy = false
			headers := make([]string, 0, len(record)-1)
			for _, h := range record[1:] {
				headers = append(headers, strings.TrimSpace(h))
			}
			for len(headers) > 0 && headers[len(headers)-1] == "" {
				headers = headers[:len(headers)-1]
			}
			blocks = append(blocks, Block{ObjectType: first, Line: line, Headers: headers})
			cur = &blocks[len(blocks)-1]
		case cur == nil:
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "line %d: data found before the first %q row", line, BlockMarker)
		default:
			cur.Rows = append(cur.Rows, Row{Line: line, Values: record[1:]})
		}
	}
	if expectTy {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "%q row is missing its object type", BlockMarker)
	}
	if len(blocks) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "file contains no object blocks")
	}
	return blocks, nil
}

// WriteBlocks renders blocks separated by a blank row.
func WriteBlocks(w io.Writer, blocks []Block) error {
	cw := csv.NewWriter(w)
	for i, b := range blocks {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{BlockMarker}); err != nil {
			return err
		}
		if err := cw.Write(append([]string{b.ObjectType}, b.Headers...)); err != nil {
			return err
		}
		for _, row := range b.Rows {
			if err := cw.Write(append([]string{""}, row.Values...)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeBlocks is WriteBlocks into a byte slice.
func EncodeBlocks(blocks []Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteBlocks(&buf, blocks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
