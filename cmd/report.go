package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pinwater/waterwatch/pkg/geocode"
)

var (
	reportLat     float64
	reportLon     float64
	reportZip     string
	reportAddress string
	reportState   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Produce a one-shot site dossier as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		q := geocode.Query{Zip: reportZip, Address: reportAddress, State: reportState}
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
			q.Latitude, q.Longitude = &reportLat, &reportLon
		}

		loc, err := env.Locator.Locate(ctx, q)
		if err != nil {
			return err
		}

		report := env.Assembler.Assemble(ctx, loc)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	reportCmd.Flags().Float64Var(&reportLat, "lat", 0, "latitude in decimal degrees")
	reportCmd.Flags().Float64Var(&reportLon, "lon", 0, "longitude in decimal degrees")
	reportCmd.Flags().StringVar(&reportZip, "zip", "", "5-digit zip code")
	reportCmd.Flags().StringVar(&reportAddress, "address", "", "free-text address")
	reportCmd.Flags().StringVar(&reportState, "state", "", "two-letter state override")
	rootCmd.AddCommand(reportCmd)
}
