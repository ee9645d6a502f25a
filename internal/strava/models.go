package strava

import "time"

// Activity represents a Strava activity summary from /athlete/activities
type Activity struct {
	ID                   int64     `json:"id"`
	Athlete              Athlete   `json:"athlete"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type"`
	SportType            string    `json:"sport_type"`
	StartDate            time.Time `json:"start_date"`
	StartDateLocal       time.Time `json:"start_date_local"`
	Timezone             string    `json:"timezone"`
	Distance             float64   `json:"distance"`               // meters
	MovingTime           int       `json:"moving_time"`            // seconds
	ElapsedTime          int       `json:"elapsed_time"`           // seconds
	TotalElevationGain   float64   `json:"total_elevation_gain"`   // meters
	AverageWatts         float64   `json:"average_watts"`          // W
	WeightedAverageWatts float64   `json:"weighted_average_watts"` // W, normalized power estimate
	MaxWatts             float64   `json:"max_watts"`              // W
	Kilojoules           float64   `json:"kilojoules"`
	DeviceWatts          bool      `json:"device_watts"`      // true only for power-meter data
	AverageHeartrate     float64   `json:"average_heartrate"` // bpm
	MaxHeartrate         float64   `json:"max_heartrate"`     // bpm
	HasHeartrate         bool      `json:"has_heartrate"`
	SufferScore          int       `json:"suffer_score"`
}

// Athlete represents a Strava athlete (minimal info in activity response)
type Athlete struct {
	ID int64 `json:"id"`
}

// HasPowerMeter reports whether the activity carries measured (not estimated) power
func (a Activity) HasPowerMeter() bool {
	return a.DeviceWatts && a.AverageWatts > 0
}

// Stream channel keys
const (
	StreamTime      = "time"
	StreamWatts     = "watts"
	StreamHeartrate = "heartrate"
	StreamCadence   = "cadence"
)

// PowerStreamKeys are the channels needed for power-duration analysis
var PowerStreamKeys = []string{StreamWatts, StreamTime}

// StreamData represents a single stream type
// Strava returns streams keyed by type when key_by_type=true
type StreamData struct {
	Data         []float64 `json:"data"`
	SeriesType   string    `json:"series_type"`
	OriginalSize int       `json:"original_size"`
	Resolution   string    `json:"resolution"`
}

// Streams maps a channel key to its samples
type Streams map[string][]float64

// Len returns the length of the time channel, or 0 if absent
func (s Streams) Len() int {
	return len(s[StreamTime])
}

// HasPower returns true if watts data exists
func (s Streams) HasPower() bool {
	return len(s[StreamWatts]) > 0
}
