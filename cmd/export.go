package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lowcarbon-viz/lowcarbon/internal/db"
)

var (
	exportOutDir string
	exportSchema string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upsert the written output tables into Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOutDir != "" {
			cfg.Data.OutDir = exportOutDir
		}
		if exportSchema != "" {
			cfg.Export.Schema = exportSchema
		}
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		ctx := cmd.Context()
		pool, err := db.Connect(ctx, cfg.Export.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		exp := &db.Exporter{Pool: pool, Schema: cfg.Export.Schema, OutDir: cfg.Data.OutDir}
		res, err := exp.Export(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		formatExport(os.Stdout, res)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutDir, "out-dir", "", "output directory to export (default from config)")
	exportCmd.Flags().StringVar(&exportSchema, "schema", "", "target Postgres schema (default from config)")
	rootCmd.AddCommand(exportCmd)
}

// formatExport writes the rows upserted per table to w.
func formatExport(out io.Writer, res *db.ExportResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "export %s\n", res.ExportID)
	_, _ = fmt.Fprintln(w, "TABLE\tROWS")
	names := make([]string, 0, len(res.Rows))
	for name := range res.Rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", name, res.Rows[name])
	}
	for _, name := range res.Missing {
		_, _ = fmt.Fprintf(w, "%s\tmissing\n", name)
	}
	_, _ = fmt.Fprintf(w, "\n%d diagnostics appended\n", res.Diagnostics)
	_ = w.Flush()
}
