package persist

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// WriteCSV writes d as UTF-8 CSV with a leading BOM so spreadsheet tools
// detect the encoding.
func WriteCSV(path string, d tables.Data) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "persist: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "persist: create %s", path)
	}
	if err := encodeCSV(f, d); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "persist: write %s", path)
	}
	return eris.Wrapf(f.Close(), "persist: close %s", path)
}

func encodeCSV(w io.Writer, d tables.Data) error {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bw)

	if err := cw.Write(d.Schema.ColumnNames()); err != nil {
		return eris.Wrap(err, "header")
	}
	record := make([]string, len(d.Schema.Columns))
	for i, row := range d.Rows {
		if len(row) != len(record) {
			return eris.Errorf("row %d has %d cells, want %d", i, len(row), len(record))
		}
		for j, v := range row {
			record[j] = tables.FormatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "flush")
	}
	return bw.Close()
}
