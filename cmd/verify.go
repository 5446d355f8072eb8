package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/verify"
)

var (
	verifyOutDir string
	verifyStrict bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the consistency of the written outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifyOutDir != "" {
			cfg.Data.OutDir = verifyOutDir
		}
		if err := cfg.Validate("verify"); err != nil {
			return err
		}

		rep, err := verify.Run(cmd.Context(), verify.FromConfig(cfg))
		if err != nil {
			return err
		}
		path, err := rep.Write()
		if err != nil {
			return err
		}
		zap.L().Info("verify report written", zap.String("path", path))

		if err := rep.Render(os.Stdout); err != nil {
			return eris.Wrap(err, "render report")
		}
		if verifyStrict && rep.Failed() {
			return eris.Errorf("verify: %d checks failed", rep.Count(verify.StatusFail))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOutDir, "out-dir", "", "output directory to check (default from config)")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "exit non-zero when any check fails")
	rootCmd.AddCommand(verifyCmd)
}
