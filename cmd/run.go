package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
	"github.com/lowcarbon-viz/lowcarbon/internal/persist"
	"github.com/lowcarbon-viz/lowcarbon/internal/pipeline"
	"github.com/lowcarbon-viz/lowcarbon/internal/store"
	"github.com/lowcarbon-viz/lowcarbon/internal/verify"
)

var (
	runRawDir    string
	runOutDir    string
	runFormats   []string
	runWorkers   int
	runNoHistory bool
	runVerify    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the batch and write every output table",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cfg)
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var st store.Store
		if !runNoHistory && cfg.Store.DatabaseURL != "" {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		var runID string
		if st != nil {
			run, err := st.CreateRun(ctx, cfg.Data.RawDir, cfg.Data.OutDir)
			if err != nil {
				return eris.Wrap(err, "record run")
			}
			runID = run.ID
		}

		res, sum, err := runBatch(ctx, cfg)
		if err != nil {
			if st != nil {
				if ferr := st.FailRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
					zap.L().Warn("run: record failure", zap.String("run_id", runID), zap.Error(ferr))
				}
			}
			return err
		}
		if st != nil {
			if err := st.CompleteRun(ctx, runID, sum.Rows, res.Diagnostics); err != nil {
				return eris.Wrap(err, "record run")
			}
		}

		formatSummary(os.Stdout, runID, sum, len(res.Diagnostics))

		if runVerify {
			rep, err := verify.Run(ctx, verify.FromConfig(cfg))
			if err != nil {
				return err
			}
			if _, err := rep.Write(); err != nil {
				return err
			}
			return rep.Render(os.Stdout)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runRawDir, "raw-dir", "", "raw input directory (default from config)")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", "", "output directory (default from config)")
	runCmd.Flags().StringSliceVar(&runFormats, "formats", nil, "output formats: csv, parquet, xlsx, charts (default from config)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "worker count (default from config)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not record the run in the history database")
	runCmd.Flags().BoolVar(&runVerify, "verify", false, "verify the written outputs after the run")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(c *config.Config) {
	if runRawDir != "" {
		c.Data.RawDir = runRawDir
	}
	if runOutDir != "" {
		c.Data.OutDir = runOutDir
	}
	if len(runFormats) > 0 {
		c.Output.Formats = runFormats
	}
	if runWorkers > 0 {
		c.Workers = runWorkers
	}
}

// runBatch loads the raw inputs, computes every table and persists them.
func runBatch(ctx context.Context, c *config.Config) (*pipeline.Result, *persist.Summary, error) {
	res, err := pipeline.New(c).Execute(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "run batch")
	}
	sum, err := persist.NewWriter(c).WriteAll(ctx, res)
	if err != nil {
		return nil, nil, eris.Wrap(err, "persist outputs")
	}
	return res, sum, nil
}

// formatSummary writes per-table row counts to w.
func formatSummary(out io.Writer, runID string, sum *persist.Summary, diagnostics int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if runID != "" {
		_, _ = fmt.Fprintf(w, "run %s\n", runID)
	}
	_, _ = fmt.Fprintln(w, "TABLE\tROWS")
	names := make([]string, 0, len(sum.Rows))
	for name := range sum.Rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", name, sum.Rows[name])
	}
	_, _ = fmt.Fprintf(w, "\n%d files written, %d diagnostics\n", len(sum.Files), diagnostics)
	_ = w.Flush()
}
