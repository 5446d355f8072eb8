package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lowcarbon-viz/lowcarbon/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lowcarbon",
	Short: "Provincial low-carbon and ecology indicator pipeline",
	Long:  "Loads provincial emission, energy, green-space and socioeconomic tables, derives synergy indices, clusters and scenario forecasts, and serves the results read-only.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
