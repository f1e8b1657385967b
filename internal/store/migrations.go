package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per pipeline run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			frames INTEGER NOT NULL DEFAULT 0
		)`,

		// Gesture events table - label transitions observed during a session
		`CREATE TABLE IF NOT EXISTS gesture_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			ts_ms INTEGER NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			handedness TEXT NOT NULL DEFAULT ''
		)`,

		// Calibration fits table - quality diagnostics per fit attempt.
		// Model coefficients are never stored; a fitted mapping lives only
		// in memory.
		`CREATE TABLE IF NOT EXISTS calibration_fits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			ts_ms INTEGER NOT NULL,
			samples INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			residual_x REAL NOT NULL DEFAULT 0,
			residual_y REAL NOT NULL DEFAULT 0
		)`,

		// Gaze trace table - optional per-frame raw and mapped gaze points
		`CREATE TABLE IF NOT EXISTS gaze_trace (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			ts_ms INTEGER NOT NULL,
			raw_x REAL NOT NULL,
			raw_y REAL NOT NULL,
			x REAL,
			y REAL
		)`,

		// Settings table - runtime tuning overrides as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_gesture_events_session_id ON gesture_events(session_id, ts_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_calibration_fits_session_id ON calibration_fits(session_id, ts_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_gaze_trace_session_id ON gaze_trace(session_id, ts_ms)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
