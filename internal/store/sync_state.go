package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSyncState retrieves a sync state value by key
// Returns empty string if key doesn't exist
func (db *DB) GetSyncState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSyncState sets a sync state value
func (db *DB) SetSyncState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func lastSyncKey(athleteID int64) string {
	return fmt.Sprintf("last_session_sync:%d", athleteID)
}

// LastSync returns when the athlete's sessions were last synced, or the zero time
func (db *DB) LastSync(athleteID int64) (time.Time, error) {
	v, err := db.GetSyncState(lastSyncKey(athleteID))
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return parseTime(v)
}

// SetLastSync records a completed sync
func (db *DB) SetLastSync(athleteID int64, at time.Time) error {
	return db.SetSyncState(lastSyncKey(athleteID), formatTime(at))
}
