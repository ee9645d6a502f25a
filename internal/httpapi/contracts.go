package httpapi

import (
	"time"

	"strava-power/internal/analysis"
	"strava-power/internal/service"
)

// ErrorResponse is the body of every 4xx answer
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse answers /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// CurveBucket is one power curve entry
type CurveBucket struct {
	Duration string  `json:"duration"`
	Seconds  int     `json:"seconds"`
	Watts    float64 `json:"watts"`
}

// CurveResponse answers /athletes/{id}/power-curve
type CurveResponse struct {
	AthleteID  int64         `json:"athlete_id"`
	ComputedAt *time.Time    `json:"computed_at"`
	Stale      bool          `json:"stale"`
	Refreshing bool          `json:"refreshing"`
	Buckets    []CurveBucket `json:"buckets"`
	Message    string        `json:"message,omitempty"`
}

func curveResponse(athleteID int64, res *service.CurveResult) CurveResponse {
	out := CurveResponse{
		AthleteID:  athleteID,
		Stale:      res.Stale,
		Refreshing: res.Refreshing,
		Message:    res.Message,
		Buckets:    buckets(res.Curve()),
	}
	if res.Record != nil {
		at := res.Record.ComputedAt.UTC()
		out.ComputedAt = &at
	}
	return out
}

func buckets(curve analysis.PowerCurve) []CurveBucket {
	out := make([]CurveBucket, 0, len(curve))
	for _, d := range curve.Durations() {
		out = append(out, CurveBucket{Duration: d.String(), Seconds: d.Seconds(), Watts: curve[d]})
	}
	return out
}

// CriticalPowerResponse answers /athletes/{id}/critical-power
type CriticalPowerResponse struct {
	*service.CPReport
	Curve []CurveBucket `json:"curve"`
}

// LoadResponse answers /athletes/{id}/load
type LoadResponse struct {
	*service.LoadReport
	Message string `json:"message,omitempty"`
}

// ForecastResponse answers /athletes/{id}/forecast
type ForecastResponse struct {
	*service.ForecastReport
	Message string `json:"message,omitempty"`
}
