// Package persist writes a batch result to the output directory: one CSV
// per table plus the optional parquet, workbook and chart formats, and the
// meta documents.
package persist

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
	"github.com/lowcarbon-viz/lowcarbon/internal/pipeline"
)

// Writer persists batch results under OutDir.
type Writer struct {
	OutDir  string
	Output  config.OutputConfig
	Workers int
}

// NewWriter creates a Writer from configuration.
func NewWriter(cfg *config.Config) *Writer {
	return &Writer{OutDir: cfg.Data.OutDir, Output: cfg.Output, Workers: cfg.Workers}
}

// Summary reports what WriteAll produced.
type Summary struct {
	Rows  map[string]int // table name to row count
	Files []string       // paths relative to OutDir
}

// WriteAll writes every table and the meta documents. Tables are written in
// parallel; each goroutine owns its own files.
func (w *Writer) WriteAll(ctx context.Context, res *pipeline.Result) (*Summary, error) {
	log := zap.L().With(zap.String("component", "persist"))
	start := time.Now()

	data := Tables(res)
	files := make([][]string, len(data))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(w.Workers, 1))
	for i, d := range data {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			path := d.Schema.Path(w.OutDir)
			if err := WriteCSV(path, d); err != nil {
				return err
			}
			files[i] = append(files[i], path)
			if w.Output.Has("parquet") {
				pq := ParquetPath(w.OutDir, d.Schema)
				if err := WriteParquet(pq, d); err != nil {
					return err
				}
				files[i] = append(files[i], pq)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "persist: write tables")
	}

	sum := &Summary{Rows: make(map[string]int, len(data))}
	for i, d := range data {
		sum.Rows[d.Schema.Name] = len(d.Rows)
		sum.Files = append(sum.Files, files[i]...)
	}

	if w.Output.Has("xlsx") {
		path := filepath.Join(w.OutDir, WorkbookFile)
		if err := WriteWorkbook(path, data); err != nil {
			return nil, err
		}
		sum.Files = append(sum.Files, path)
	}
	if w.Output.Has("charts") {
		dir := filepath.Join(w.OutDir, ChartsDir)
		names, err := WriteCharts(dir, res)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			sum.Files = append(sum.Files, filepath.Join(dir, n))
		}
	}

	if err := WriteMeta(w.OutDir, res.Diagnostics); err != nil {
		return nil, err
	}
	for _, name := range []string{DataSourcesFile, VariableDict, DiagnosticsFile} {
		sum.Files = append(sum.Files, filepath.Join(w.OutDir, MetaDir, name))
	}

	for i, f := range sum.Files {
		if rel, err := filepath.Rel(w.OutDir, f); err == nil {
			sum.Files[i] = rel
		}
	}

	log.Info("persist: outputs written",
		zap.String("out_dir", w.OutDir),
		zap.Int("files", len(sum.Files)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return sum, nil
}
