package service

import (
	"context"
	"fmt"
	"time"

	"strava-power/internal/analysis"
)

// LoadReport is an athlete's training load history and rollups
type LoadReport struct {
	AthleteID int64                 `json:"athlete_id"`
	Series    []analysis.DailyLoad  `json:"series"`
	Current   analysis.DailyLoad    `json:"current"`
	Week      analysis.Summary      `json:"week"`
	Month     analysis.Summary      `json:"month"`
	Weekly    []analysis.PeriodLoad `json:"weekly"`
	Monthly   []analysis.PeriodLoad `json:"monthly"`
	LastSync  time.Time             `json:"last_sync"`
}

// Load models ATL/CTL/TSB from the athlete's stored sessions
func (s *Service) Load(ctx context.Context, athleteID int64) (*LoadReport, error) {
	sessions, err := s.store.ListSessions(athleteID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	lastSync, err := s.store.LastSync(athleteID)
	if err != nil {
		return nil, fmt.Errorf("reading last sync: %w", err)
	}

	now := s.now()
	today := analysis.Day(now)
	samples := make([]analysis.StressSample, 0, len(sessions))
	for _, sess := range sessions {
		day := sess.Day()
		// east of UTC the athlete's date can already be tomorrow's
		if day.After(today) && !sess.StartDate.After(now) {
			today = day
		}
		samples = append(samples, analysis.StressSample{Date: day, TSS: sess.TSS})
	}

	series := analysis.Model(samples, 0, 0, today)
	return &LoadReport{
		AthleteID: athleteID,
		Series:    series,
		Current:   analysis.Current(series),
		Week:      analysis.Summarize(series, WeekDays),
		Month:     analysis.Summarize(series, MonthDays),
		Weekly:    analysis.Weekly(series),
		Monthly:   analysis.Monthly(series),
		LastSync:  lastSync,
	}, nil
}

// TTEPoint is the predicted time to exhaustion at a power
type TTEPoint struct {
	Watts   float64 `json:"watts"`
	Seconds float64 `json:"seconds"`
}

// CPReport is the critical power fit from the athlete's curve
type CPReport struct {
	AthleteID int64                       `json:"athlete_id"`
	Model     analysis.CriticalPowerModel `json:"model"`
	Curve     analysis.PowerCurve         `json:"-"`
	TTE       []TTEPoint                  `json:"time_to_exhaustion"`
	Message   string                      `json:"message,omitempty"`
}

// CriticalPower fits CP and W' to the athlete's power curve
func (s *Service) CriticalPower(ctx context.Context, athleteID int64, maxAge time.Duration) (*CPReport, error) {
	res, err := s.PowerCurve(ctx, athleteID, maxAge, false)
	if err != nil {
		return nil, err
	}

	curve := res.Curve()
	report := &CPReport{
		AthleteID: athleteID,
		Model:     analysis.FitCriticalPower(curve),
		Curve:     curve,
		Message:   res.Message,
	}
	if report.Model.Kind != analysis.KindTwoParameter {
		if report.Message == "" {
			report.Message = "need 3, 10 and 20 minute bests to fit critical power"
		}
		return report, nil
	}

	for _, f := range TTEPowerFractions {
		watts := report.Model.CP * f
		if secs, ok := report.Model.TimeToExhaustion(watts); ok {
			report.TTE = append(report.TTE, TTEPoint{Watts: watts, Seconds: secs})
		}
	}
	return report, nil
}

// ForecastReport projects every scenario from the athlete's current load
type ForecastReport struct {
	AthleteID int64                       `json:"athlete_id"`
	Current   analysis.DailyLoad          `json:"current"`
	Days      int                         `json:"days"`
	Scenarios []analysis.ScenarioForecast `json:"scenarios"`
}

// Forecast runs the standard scenarios for 'days' days
func (s *Service) Forecast(ctx context.Context, athleteID int64, days int) (*ForecastReport, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}

	load, err := s.Load(ctx, athleteID)
	if err != nil {
		return nil, err
	}

	current := load.Current
	if current.Date.IsZero() {
		current.Date = analysis.Day(s.now())
	}
	return &ForecastReport{
		AthleteID: athleteID,
		Current:   current,
		Days:      days,
		Scenarios: analysis.Scenarios(current, days),
	}, nil
}
