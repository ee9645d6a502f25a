package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Authentication, one row per connected athlete
		`CREATE TABLE IF NOT EXISTS auth (
			athlete_id INTEGER PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sessions (summary data from /athlete/activities, with computed stress)
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			sport_type TEXT NOT NULL,
			start_date TEXT NOT NULL,
			start_date_local TEXT,
			moving_time INTEGER NOT NULL,
			has_power INTEGER NOT NULL,
			average_watts REAL,
			weighted_average_watts REAL,
			kilojoules REAL,
			average_heartrate REAL,
			tss REAL NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_athlete_start ON sessions(athlete_id, start_date)`,

		// Power curve snapshot per athlete, replaced wholesale on recompute
		`CREATE TABLE IF NOT EXISTS power_curves (
			athlete_id INTEGER PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			buckets TEXT NOT NULL,
			computed_at TEXT NOT NULL
		)`,

		// Batch recompute runs
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			athletes INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
