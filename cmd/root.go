package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "waterwatch",
	Short: "Water-quality site intelligence engine",
	Long:  "Aggregates federal water data sources into per-site dossiers: composite risk scores, cached national datasets, and real-time anomaly signals.",
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
