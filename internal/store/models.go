package store

import (
	"time"

	"strava-power/internal/analysis"
)

// Auth represents OAuth tokens for one athlete
type Auth struct {
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session is a stored activity summary with its computed stress score
type Session struct {
	ID                   int64
	AthleteID            int64
	Name                 string
	SportType            string
	StartDate            time.Time
	// StartDateLocal is the athlete's wall clock start, zero when unknown
	StartDateLocal       time.Time
	MovingTime           int      // seconds
	HasPower             bool     // device_watts
	AverageWatts         *float64 // nullable
	WeightedAverageWatts *float64 // nullable, normalized power estimate
	Kilojoules           *float64 // nullable
	AverageHeartrate     *float64 // nullable
	TSS                  float64
}

// Day is the calendar day the session belongs to in the athlete's timezone.
// It falls back to the UTC start when no local start is stored.
func (s *Session) Day() time.Time {
	if !s.StartDateLocal.IsZero() {
		return analysis.Day(s.StartDateLocal)
	}
	return analysis.Day(s.StartDate)
}

// CurveRecord is a persisted power curve snapshot
type CurveRecord struct {
	AthleteID  int64
	Version    int
	Curve      analysis.PowerCurve
	ComputedAt time.Time
}

// Age is how old the snapshot is at now
func (r *CurveRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.ComputedAt)
}

// BatchRun records one batch recompute
type BatchRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Athletes   int
	Failed     int
	Error      string
}
