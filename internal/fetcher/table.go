package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no file exists for a table name.
var ErrNotFound = eris.New("fetcher: table file not found")

// Extensions lists the supported table formats in lookup order.
var Extensions = []string{".csv", ".xlsx"}

// Table is an in-memory raw table with a normalized header.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

func newTable(rows [][]string) *Table {
	t := &Table{index: map[string]int{}}
	if len(rows) == 0 {
		return t
	}
	t.Header = make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = NormalizeHeader(h)
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	t.Rows = rows[1:]
	return t
}

// NormalizeHeader strips stray BOMs and whitespace and lowercases a column
// name.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[NormalizeHeader(col)]
	return ok
}

// Get returns the cell of row in the named column, or "" when the column or
// cell is missing.
func (t *Table) Get(row []string, col string) string {
	idx, ok := t.index[NormalizeHeader(col)]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Resolve finds <dir>/<base><ext> for the first supported extension that
// exists.
func Resolve(dir, base string) (string, error) {
	for _, ext := range Extensions {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", eris.Wrapf(ErrNotFound, "%s in %s", base, dir)
}

// ReadFile loads a CSV or XLSX table, choosing the parser by extension.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		t, err := ReadCSV(ctx, f)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read %s", path)
		}
		return t, nil
	case ".xlsx":
		return ReadXLSXTable(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("fetcher: unsupported table format %q", filepath.Ext(path))
	}
}
