package persist

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"

	"github.com/lowcarbon-viz/lowcarbon/internal/stats"
	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// ParquetPath is the parquet file written next to a table's CSV.
func ParquetPath(outDir string, s tables.Schema) string {
	return strings.TrimSuffix(s.Path(outDir), filepath.Ext(s.File)) + ".parquet"
}

// parquetSchema builds a flat schema of optional columns. Group fields are
// ordered by name, so the returned map gives each table column its leaf
// index.
func parquetSchema(s tables.Schema) (*parquet.Schema, map[string]int) {
	group := parquet.Group{}
	for _, c := range s.Columns {
		var leaf parquet.Node
		switch c.Kind {
		case tables.Int:
			leaf = parquet.Int(64)
		case tables.Float:
			leaf = parquet.Leaf(parquet.DoubleType)
		case tables.Bool:
			leaf = parquet.Leaf(parquet.BooleanType)
		default:
			leaf = parquet.String()
		}
		group[c.Name] = parquet.Optional(leaf)
	}
	schema := parquet.NewSchema(s.Name, group)
	index := make(map[string]int, len(s.Columns))
	for i, f := range schema.Fields() {
		index[f.Name()] = i
	}
	return schema, index
}

func parquetValue(v any) (parquet.Value, bool) {
	switch x := v.(type) {
	case string:
		return parquet.ByteArrayValue([]byte(x)), true
	case int:
		return parquet.Int64Value(int64(x)), true
	case float64:
		return parquet.DoubleValue(x), true
	case stats.Value:
		if f, ok := x.Float64(); ok {
			return parquet.DoubleValue(f), true
		}
	case bool:
		return parquet.BooleanValue(x), true
	}
	return parquet.Value{}, false
}

// WriteParquet writes d as a parquet file with one optional column per
// table column. Null cells are written as nulls.
func WriteParquet(path string, d tables.Data) error {
	schema, index := parquetSchema(d.Schema)

	rows := make([]parquet.Row, len(d.Rows))
	for i, r := range d.Rows {
		row := make(parquet.Row, len(index))
		for j, c := range d.Schema.Columns {
			col := index[c.Name]
			if v, ok := parquetValue(r[j]); ok {
				row[col] = v.Level(0, 1, col)
			} else {
				row[col] = parquet.NullValue().Level(0, 0, col)
			}
		}
		rows[i] = row
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "persist: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "persist: create %s", path)
	}
	w := parquet.NewWriter(f, schema)
	if _, err := w.WriteRows(rows); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "persist: write rows %s", path)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "persist: finish %s", path)
	}
	return eris.Wrapf(f.Close(), "persist: close %s", path)
}
