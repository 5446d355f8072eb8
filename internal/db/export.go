package db

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// Exporter copies persisted output tables into Postgres.
type Exporter struct {
	Pool   Pool
	Schema string
	OutDir string
}

// ExportResult reports rows written per table.
type ExportResult struct {
	ExportID    string
	Rows        map[string]int64
	Missing     []string // tables with no file on disk
	Diagnostics int64
}

// Export migrates the schema, upserts every persisted table present under
// OutDir keyed by its natural key, and appends the batch diagnostics under
// a fresh export id. Rows with a null or empty key cell are skipped.
func (e *Exporter) Export(ctx context.Context) (*ExportResult, error) {
	log := zap.L().With(zap.String("component", "db.export"))
	start := time.Now()

	if err := Migrate(ctx, e.Pool, e.Schema); err != nil {
		return nil, err
	}

	res := &ExportResult{ExportID: uuid.New().String(), Rows: map[string]int64{}}
	for _, s := range tables.All {
		f, err := tables.Load(ctx, e.OutDir, s)
		if errors.Is(err, tables.ErrNotFound) {
			res.Missing = append(res.Missing, s.Name)
			log.Warn("db: table file missing, skipped", zap.String("table", s.Name))
			continue
		}
		if err != nil {
			return nil, err
		}
		if missing := f.Missing(); len(missing) > 0 {
			return nil, eris.Errorf("db: %s is missing columns %v", s.File, missing)
		}

		rows, skipped := typedRows(f)
		if skipped > 0 {
			log.Warn("db: rows with null key skipped", zap.String("table", s.Name), zap.Int("rows", skipped))
		}
		n, err := BulkUpsert(ctx, e.Pool, UpsertConfig{
			Table:        TableName(e.Schema, s),
			Columns:      s.ColumnNames(),
			ConflictKeys: s.Key,
		}, rows)
		if err != nil {
			return nil, err
		}
		res.Rows[s.Name] = n
	}

	diags, err := readDiagnostics(e.OutDir)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(diags))
	for i, d := range diags {
		rows[i] = []any{res.ExportID, d.Stage, nullString(d.Province), nullInt(d.Year), nullString(d.Scenario), string(d.Outcome), d.Reason}
	}
	res.Diagnostics, err = CopyFrom(ctx, e.Pool, e.Schema+"."+DiagnosticsTable,
		[]string{"run_id", "stage", "province", "year", "scenario", "outcome", "reason"}, rows)
	if err != nil {
		return nil, err
	}

	log.Info("db: export complete",
		zap.String("export_id", res.ExportID),
		zap.Int("tables", len(res.Rows)),
		zap.Int64("diagnostics", res.Diagnostics),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

// typedRows converts CSV cells to Go values for COPY in column order.
func typedRows(f *tables.File) ([][]any, int) {
	keyIdx := make([]int, len(f.Schema.Key))
	for i, k := range f.Schema.Key {
		for j, c := range f.Schema.Columns {
			if c.Name == k {
				keyIdx[i] = j
			}
		}
	}

	var out [][]any
	skipped := 0
	for _, raw := range f.Rows {
		row := make([]any, len(f.Schema.Columns))
		for j, c := range f.Schema.Columns {
			row[j] = tables.ParseCell(c.Kind, f.Cell(raw, c.Name))
		}
		ok := true
		for _, j := range keyIdx {
			ok = ok && row[j] != nil && row[j] != ""
		}
		if !ok {
			skipped++
			continue
		}
		out = append(out, row)
	}
	return out, skipped
}

func readDiagnostics(outDir string) (model.Diagnostics, error) {
	path := filepath.Join(outDir, "meta", "diagnostics.json")
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "db: read %s", path)
	}
	var diags model.Diagnostics
	if err := json.Unmarshal(raw, &diags); err != nil {
		return nil, eris.Wrapf(err, "db: decode %s", path)
	}
	return diags, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
