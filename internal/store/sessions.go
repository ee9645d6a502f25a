package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when a session doesn't exist
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, athlete_id, name, sport_type, start_date, start_date_local, moving_time, has_power,
	average_watts, weighted_average_watts, kilojoules, average_heartrate, tss`

// UpsertSession inserts or updates a session
func (db *DB) UpsertSession(s *Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (`+sessionColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			sport_type = excluded.sport_type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			moving_time = excluded.moving_time,
			has_power = excluded.has_power,
			average_watts = excluded.average_watts,
			weighted_average_watts = excluded.weighted_average_watts,
			kilojoules = excluded.kilojoules,
			average_heartrate = excluded.average_heartrate,
			tss = excluded.tss,
			updated_at = CURRENT_TIMESTAMP
	`,
		s.ID, s.AthleteID, s.Name, s.SportType, formatTime(s.StartDate), nullTime(s.StartDateLocal), s.MovingTime,
		boolToInt(s.HasPower), s.AverageWatts, s.WeightedAverageWatts, s.Kilojoules,
		s.AverageHeartrate, s.TSS,
	)
	return err
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id int64) (*Session, error) {
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrSessionNotFound
	}
	return &sessions[0], nil
}

// ListSessions returns an athlete's sessions started at or after since, oldest first.
// A zero since returns all of them.
func (db *DB) ListSessions(athleteID int64, since time.Time) ([]Session, error) {
	rows, err := db.Query(`
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE athlete_id = ? AND start_date >= ?
		ORDER BY start_date, id
	`, athleteID, formatTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

// LatestSessionStart returns the newest stored start time, or the zero time
func (db *DB) LatestSessionStart(athleteID int64) (time.Time, error) {
	var latest sql.NullString
	err := db.QueryRow(`SELECT MAX(start_date) FROM sessions WHERE athlete_id = ?`, athleteID).Scan(&latest)
	if err != nil || !latest.Valid {
		return time.Time{}, err
	}
	return parseTime(latest.String)
}

// CountSessions returns the number of stored sessions for an athlete
func (db *DB) CountSessions(athleteID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE athlete_id = ?`, athleteID).Scan(&count)
	return count, err
}

// scanSessions scans multiple sessions from rows
func scanSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session

	for rows.Next() {
		var s Session
		var startDate string
		var startDateLocal sql.NullString
		var hasPower int

		err := rows.Scan(
			&s.ID, &s.AthleteID, &s.Name, &s.SportType, &startDate, &startDateLocal, &s.MovingTime, &hasPower,
			&s.AverageWatts, &s.WeightedAverageWatts, &s.Kilojoules, &s.AverageHeartrate, &s.TSS,
		)
		if err != nil {
			return nil, err
		}

		s.StartDate, err = parseTime(startDate)
		if err != nil {
			return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
		}
		if startDateLocal.Valid {
			s.StartDateLocal, err = parseTime(startDateLocal.String)
			if err != nil {
				return nil, fmt.Errorf("parsing start_date_local %q: %w", startDateLocal.String, err)
			}
		}
		s.HasPower = hasPower == 1

		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}
