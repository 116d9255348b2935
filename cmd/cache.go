package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the national bulk caches",
}

var cacheBuildCmd = &cobra.Command{
	Use:   "build <domain>",
	Short: "Build one cache domain and wait for completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := args[0]

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		status, err := env.Coord.TriggerBuild(domain)
		if err != nil && !eris.Is(err, cache.ErrBuildInProgress) {
			return err
		}
		zap.L().Info("build started",
			zap.String("domain", domain),
			zap.Int("total_units", status.TotalUnits),
		)

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				st := env.Coord.Status(domain)
				zap.L().Info("build progress",
					zap.String("domain", domain),
					zap.String("state", string(st.State)),
					zap.Int("loaded", st.LoadedUnits),
					zap.Int("total", st.TotalUnits),
				)
				if st.State != model.CacheBuilding {
					return printJSON(st)
				}
			}
		}
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status [domain]",
	Short: "Show cache build status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			return printJSON(env.Coord.Status(args[0]))
		}
		return printJSON(env.Coord.StatusAll())
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	cacheCmd.AddCommand(cacheBuildCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	rootCmd.AddCommand(cacheCmd)
}
