package service

import "time"

const (
	// Rollup windows
	WeekDays  = 7
	MonthDays = 30

	// DefaultForecastDays is used when a forecast horizon isn't given
	DefaultForecastDays = 14
	MaxForecastDays     = 365

	// DefaultCurveMaxAge is how long a stored power curve is served without recomputing
	DefaultCurveMaxAge = time.Hour

	// syncOverlap re-lists sessions started shortly before the newest stored one
	// so late uploads and edits are picked up
	syncOverlap = 24 * time.Hour
)

// TTEPowerFractions are the fractions of CP reported with time to exhaustion
var TTEPowerFractions = []float64{1.05, 1.1, 1.2, 1.5}
