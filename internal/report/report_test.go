package report

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"strava-power/internal/analysis"
	"strava-power/internal/service"
	"strava-power/internal/store"
)

var day = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{45, "45s"},
		{1600, "26m 40s"},
		{3900, "1h 05m"},
		{math.Inf(1), "∞"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.in); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCurve(t *testing.T) {
	curve := analysis.NewPowerCurve(analysis.StandardDurations)
	curve[analysis.Dur5s] = 900
	curve[analysis.Dur20m] = 280
	res := &service.CurveResult{Record: &store.CurveRecord{AthleteID: 42, Curve: curve, ComputedAt: day}}

	out := ansi.Strip(Curve(42, res))
	assert.Contains(t, out, "Power curve: athlete 42")
	assert.Contains(t, out, "900 W")
	assert.Contains(t, out, "280 W")
	assert.Contains(t, out, "Best efforts")
}

func TestCurveEmpty(t *testing.T) {
	res := &service.CurveResult{Refreshing: true, Message: "power curve is being recomputed"}

	out := ansi.Strip(Curve(42, res))
	assert.Contains(t, out, "No power data yet")
	assert.Contains(t, out, "being recomputed")
}

func TestLoad(t *testing.T) {
	samples := []analysis.StressSample{
		{Date: day.AddDate(0, 0, -10), TSS: 80},
		{Date: day.AddDate(0, 0, -4), TSS: 120},
		{Date: day, TSS: 60},
	}
	series := analysis.Model(samples, 0, 0, day)
	r := &service.LoadReport{
		AthleteID: 42,
		Series:    series,
		Current:   analysis.Current(series),
		Week:      analysis.Summarize(series, service.WeekDays),
		Month:     analysis.Summarize(series, service.MonthDays),
		Weekly:    analysis.Weekly(series),
	}

	out := ansi.Strip(Load(r))
	assert.Contains(t, out, "Fitness (CTL)")
	assert.Contains(t, out, "Last 7 days")
	assert.Contains(t, out, "Weekly")
}

func TestLoadEmpty(t *testing.T) {
	out := ansi.Strip(Load(&service.LoadReport{AthleteID: 42}))
	assert.Contains(t, out, "No sessions yet")
}

func TestCriticalPower(t *testing.T) {
	r := &service.CPReport{
		AthleteID: 42,
		Model:     analysis.CriticalPowerModel{CP: 250, WPrime: 20000, Kind: analysis.KindTwoParameter},
		TTE:       []service.TTEPoint{{Watts: 262.5, Seconds: 1600}},
	}

	out := ansi.Strip(CriticalPower(r))
	assert.Contains(t, out, "250 W")
	assert.Contains(t, out, "20.0 kJ")
	assert.Contains(t, out, "26m 40s")
}

func TestCriticalPowerInsufficient(t *testing.T) {
	r := &service.CPReport{
		AthleteID: 42,
		Model:     analysis.CriticalPowerModel{Kind: analysis.KindInsufficientData},
		Message:   "need more data",
	}
	assert.Contains(t, ansi.Strip(CriticalPower(r)), "need more data")
}

func TestForecast(t *testing.T) {
	current := analysis.DailyLoad{Date: day, CTL: 50, ATL: 60, TSB: -10}
	r := &service.ForecastReport{
		AthleteID: 42,
		Current:   current,
		Days:      14,
		Scenarios: analysis.Scenarios(current, 14),
	}

	out := ansi.Strip(Forecast(r))
	for _, sc := range analysis.AllScenarios {
		assert.Contains(t, out, string(sc))
	}
	assert.Contains(t, out, "14 days")
}

func TestBatch(t *testing.T) {
	r := &service.BatchReport{
		RunID:    "run-1",
		Started:  day,
		Finished: day.Add(2 * time.Second),
		Athletes: []service.AthleteOutcome{
			{AthleteID: 7, Synced: 3},
			{AthleteID: 42, Err: errors.New("sync: boom")},
		},
		Failed: 1,
	}

	out := ansi.Strip(Batch(r))
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "athlete 7: 3 sessions synced")
	assert.Contains(t, out, "boom")
}

func TestSync(t *testing.T) {
	out := ansi.Strip(Sync(&service.SyncResult{AthleteID: 42, SessionsFetched: 5, SessionsStored: 5, WithPower: 3}))
	assert.Contains(t, out, "athlete 42")
	assert.Contains(t, out, "With power")
}
