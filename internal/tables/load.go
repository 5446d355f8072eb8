package tables

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lowcarbon-viz/lowcarbon/internal/fetcher"
)

// ErrNotFound is returned when a persisted table file does not exist.
var ErrNotFound = eris.New("tables: file not found")

// File is a persisted table read back from disk.
type File struct {
	Schema Schema
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Load reads the CSV of schema under outDir. Header cells are stripped of
// BOMs and whitespace but keep their case.
func Load(ctx context.Context, outDir string, schema Schema) (*File, error) {
	path := schema.Path(outDir)
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, eris.Wrapf(err, "tables: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, fh, fetcher.CSVOptions{LazyQuotes: true})

	f := &File{Schema: schema, index: map[string]int{}}
	first := true
	for row := range rowCh {
		if first {
			first = false
			f.Header = make([]string, len(row))
			for i, h := range row {
				h = strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", ""))
				f.Header[i] = h
				if _, dup := f.index[h]; !dup {
					f.index[h] = i
				}
			}
			continue
		}
		f.Rows = append(f.Rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "tables: read %s", path)
		}
	}
	return f, nil
}

// Has reports whether the file has the named column.
func (f *File) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Missing returns the schema columns absent from the file header.
func (f *File) Missing() []string {
	var out []string
	for _, c := range f.Schema.Columns {
		if !f.Has(c.Name) {
			out = append(out, c.Name)
		}
	}
	return out
}

// Cell returns the raw cell of row in column col, or "" when absent.
func (f *File) Cell(row []string, col string) string {
	i, ok := f.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Value returns the typed cell of row in column col. Columns outside the
// schema are returned as strings.
func (f *File) Value(row []string, col string) any {
	kind := String
	if c, ok := f.Schema.Column(col); ok {
		kind = c.Kind
	}
	return ParseCell(kind, f.Cell(row, col))
}

// Float returns a numeric cell, or false when null.
func (f *File) Float(row []string, col string) (float64, bool) {
	v, ok := ParseCell(Float, f.Cell(row, col)).(float64)
	return v, ok
}

// Int returns an integer cell, or false when null.
func (f *File) Int(row []string, col string) (int, bool) {
	v, ok := ParseCell(Int, f.Cell(row, col)).(int)
	return v, ok
}

// Record converts a row to a column→typed value map restricted to cols, or
// every header column when cols is empty.
func (f *File) Record(row []string, cols []string) map[string]any {
	if len(cols) == 0 {
		cols = f.Header
	}
	rec := make(map[string]any, len(cols))
	for _, c := range cols {
		if f.Has(c) {
			rec[c] = f.Value(row, c)
		}
	}
	return rec
}
