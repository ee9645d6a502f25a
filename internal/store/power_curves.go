package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"strava-power/internal/analysis"
)

// CurveSchemaVersion is the current power_curves document layout
const CurveSchemaVersion = 1

var (
	// ErrPowerCurveNotFound is returned when an athlete has no stored curve
	ErrPowerCurveNotFound = errors.New("power curve not found")

	// ErrCurveVersion is returned for a stored curve written by an unknown schema
	ErrCurveVersion = errors.New("unsupported power curve schema version")
)

// LoadPowerCurve returns an athlete's stored curve snapshot
func (db *DB) LoadPowerCurve(athleteID int64) (*CurveRecord, error) {
	var version int
	var buckets, computedAt string
	err := db.QueryRow(`
		SELECT schema_version, buckets, computed_at
		FROM power_curves
		WHERE athlete_id = ?
	`, athleteID).Scan(&version, &buckets, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPowerCurveNotFound
	}
	if err != nil {
		return nil, err
	}

	if version != CurveSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrCurveVersion, version)
	}

	curve, err := decodeCurve(buckets)
	if err != nil {
		return nil, fmt.Errorf("decoding power curve for athlete %d: %w", athleteID, err)
	}
	at, err := parseTime(computedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing computed_at %q: %w", computedAt, err)
	}

	return &CurveRecord{
		AthleteID:  athleteID,
		Version:    version,
		Curve:      curve,
		ComputedAt: at,
	}, nil
}

// SavePowerCurve replaces an athlete's curve snapshot
func (db *DB) SavePowerCurve(athleteID int64, curve analysis.PowerCurve, computedAt time.Time) error {
	doc, err := encodeCurve(curve)
	if err != nil {
		return fmt.Errorf("encoding power curve: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO power_curves (athlete_id, schema_version, buckets, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(athlete_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			buckets = excluded.buckets,
			computed_at = excluded.computed_at
	`, athleteID, CurveSchemaVersion, doc, formatTime(computedAt))
	return err
}

// encodeCurve writes buckets keyed by seconds, e.g. {"5": 812.4, "60": 455}
func encodeCurve(curve analysis.PowerCurve) (string, error) {
	m := make(map[string]float64, len(curve))
	for d, w := range curve {
		m[strconv.Itoa(d.Seconds())] = w
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func decodeCurve(doc string) (analysis.PowerCurve, error) {
	var m map[string]float64
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, err
	}

	curve := analysis.NewPowerCurve(analysis.StandardDurations)
	for k, w := range m {
		secs, err := strconv.Atoi(k)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("bad bucket key %q", k)
		}
		curve[analysis.Duration(secs)] = w
	}
	return curve, nil
}
