package main

import (
	"context"

	"github.com/spf13/cobra"

	"strava-power/internal/report"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new session summaries from Strava",
	Long: `Fetches sessions newer than the latest stored one and stores them with
their training stress scores. Power sessions are scored from weighted average
watts and FTP, the rest from heart rate.`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := a.athlete()
		if err != nil {
			return err
		}
		res, err := a.svc.Sync(ctx, id)
		if err != nil {
			return err
		}
		return output(res, func() string { return report.Sync(res) })
	}),
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
