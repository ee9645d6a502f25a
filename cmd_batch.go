package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"strava-power/internal/report"
)

var (
	batchConcurrency int
	batchLimit       int
	batchDelay       time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Sync and rebuild the power curve for every athlete",
	Long: `Runs sync and a power curve rebuild for every athlete that has logged in.
One athlete failing does not stop the rest; the run is recorded in the database.

Examples:
  strava-power batch
  strava-power batch --concurrency 4 --limit 100 --batch-delay 0ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			if errors.Is(err, errConfigCreated) {
				return nil
			}
			return err
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Fetch.Concurrency = batchConcurrency
		}
		if cmd.Flags().Changed("limit") {
			cfg.Fetch.SessionLimit = batchLimit
		}
		if cmd.Flags().Changed("batch-delay") {
			cfg.Fetch.BatchDelay = batchDelay
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return runBatch(cmd.Context(), a)
	},
}

func runBatch(ctx context.Context, a *app) error {
	r, err := a.svc.RunBatch(ctx)
	if err != nil {
		return err
	}
	return output(r, func() string { return report.Batch(r) })
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "stream fetches per batch")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "most recent power sessions per athlete")
	batchCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "pause between stream batches")
	rootCmd.AddCommand(batchCmd)
}
