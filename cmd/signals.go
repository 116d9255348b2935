package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pinwater/waterwatch/internal/model"
)

var (
	signalsState string
	signalsLimit int
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Scan a state's real-time gauges for anomaly signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := strings.ToUpper(signalsState)
		if _, ok := model.FIPSFor(state); !ok {
			return eris.Errorf("unknown state code %q", signalsState)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		events, sources := env.Assembler.Signals(ctx, state, signalsLimit)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"state":         state,
			"signals":       events,
			"sources":       sources,
			"source_health": env.Health.Summary(),
		})
	},
}

func init() {
	signalsCmd.Flags().StringVar(&signalsState, "state", "", "two-letter state code (required)")
	signalsCmd.Flags().IntVar(&signalsLimit, "limit", 0, "max signals to return (default from config)")
	_ = signalsCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(signalsCmd)
}
