package store

import (
	"database/sql"
	"time"
)

// StartRun records the start of a batch run
func (db *DB) StartRun(id string, startedAt time.Time) error {
	_, err := db.Exec(`INSERT INTO batch_runs (id, started_at) VALUES (?, ?)`, id, formatTime(startedAt))
	return err
}

// FinishRun records a batch run's outcome
func (db *DB) FinishRun(id string, finishedAt time.Time, athletes, failed int, runErr error) error {
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := db.Exec(`
		UPDATE batch_runs
		SET finished_at = ?, athletes = ?, failed = ?, error = ?
		WHERE id = ?
	`, formatTime(finishedAt), athletes, failed, msg, id)
	return err
}

// RecentRuns returns the latest batch runs, newest first
func (db *DB) RecentRuns(limit int) ([]BatchRun, error) {
	rows, err := db.Query(`
		SELECT id, started_at, finished_at, athletes, failed, error
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BatchRun
	for rows.Next() {
		var r BatchRun
		var started string
		var finished, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished, &r.Athletes, &r.Failed, &errMsg); err != nil {
			return nil, err
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
