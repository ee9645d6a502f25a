package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"strava-power/internal/httpapi"
)

var (
	serveAddr    string
	serveNoBatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API and run scheduled batches",
	Long: `Serves the analytics API (power curve, load, critical power, forecast,
/metrics) and runs the batch rebuild on the schedule.batch_cron expression.

Examples:
  strava-power serve
  strava-power serve --addr 127.0.0.1:9000 --no-batch`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		cfg := httpapi.DefaultConfig()
		cfg.Addr = a.cfg.Server.Addr
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}

		if !serveNoBatch && a.cfg.Schedule.BatchCron != "" {
			c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			if _, err := c.AddFunc(a.cfg.Schedule.BatchCron, func() { scheduledBatch(ctx, a) }); err != nil {
				return fmt.Errorf("register batch schedule: %w", err)
			}
			c.Start()
			a.log.Info().Str("cron", a.cfg.Schedule.BatchCron).Msg("batch schedule started")
			defer func() { <-c.Stop().Done() }()
		}

		return httpapi.New(a.svc, a.registry, cfg, a.log).ListenAndServe(ctx)
	}),
}

func scheduledBatch(ctx context.Context, a *app) {
	r, err := a.svc.RunBatch(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("scheduled batch failed")
		return
	}
	a.log.Info().Str("run_id", r.RunID).Int("failed", r.Failed).Msg("scheduled batch done")
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	serveCmd.Flags().BoolVar(&serveNoBatch, "no-batch", false, "do not run scheduled batches")
	rootCmd.AddCommand(serveCmd)
}
