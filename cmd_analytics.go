package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"strava-power/internal/report"
	"strava-power/internal/service"
)

var (
	curveMaxAge  time.Duration
	curveRefresh bool
	forecastDays int
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Show the power-duration curve",
	Long: `Shows the best average power for each duration from 5s to 1h across the
most recent power sessions. The stored curve is reused while it is younger than
--max-age; otherwise the streams are fetched again and the curve rebuilt.

Examples:
  strava-power curve
  strava-power curve --max-age 24h
  strava-power curve --refresh`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := a.athlete()
		if err != nil {
			return err
		}
		maxAge := curveMaxAge
		if curveRefresh {
			maxAge = 0
		}
		res, err := a.svc.PowerCurve(ctx, id, maxAge, false)
		if err != nil {
			return err
		}
		return output(res, func() string { return report.Curve(id, res) })
	}),
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Show fitness, fatigue and form",
	Long: `Models CTL (42-day fitness), ATL (7-day fatigue) and TSB (form) from the
stored sessions' stress scores. Run sync first to bring them up to date.`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := a.athlete()
		if err != nil {
			return err
		}
		r, err := a.svc.Load(ctx, id)
		if err != nil {
			return err
		}
		return output(r, func() string { return report.Load(r) })
	}),
}

var cpCmd = &cobra.Command{
	Use:   "cp",
	Short: "Fit critical power and W'",
	Long: `Fits the two-parameter critical power model to the 3, 10 and 20 minute
bests of the power curve and predicts how long powers above CP can be held.`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := a.athlete()
		if err != nil {
			return err
		}
		r, err := a.svc.CriticalPower(ctx, id, curveMaxAge)
		if err != nil {
			return err
		}
		return output(r, func() string { return report.CriticalPower(r) })
	}),
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project training load under standard plans",
	Long: `Projects CTL, ATL and TSB forward from today under rest, maintenance,
moderate and intense plans.`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := a.athlete()
		if err != nil {
			return err
		}
		r, err := a.svc.Forecast(ctx, id, forecastDays)
		if err != nil {
			return err
		}
		return output(r, func() string { return report.Forecast(r) })
	}),
}

func init() {
	curveCmd.Flags().DurationVar(&curveMaxAge, "max-age", service.DefaultCurveMaxAge, "reuse a stored curve younger than this")
	curveCmd.Flags().BoolVar(&curveRefresh, "refresh", false, "always rebuild the curve")
	cpCmd.Flags().DurationVar(&curveMaxAge, "max-age", service.DefaultCurveMaxAge, "reuse a stored curve younger than this")
	forecastCmd.Flags().IntVar(&forecastDays, "days", service.DefaultForecastDays, "days to project")

	rootCmd.AddCommand(curveCmd, loadCmd, cpCmd, forecastCmd)
}
