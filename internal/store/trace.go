package store

import "database/sql"

// GazePoint is one frame of the optional gaze trace: the raw iris sample
// plus the mapped-and-smoothed screen point when a calibration was active.
type GazePoint struct {
	ID        int64    `json:"id"`
	SessionID string   `json:"session_id"`
	TS        int64    `json:"ts_ms"`
	RawX      float64  `json:"raw_x"`
	RawY      float64  `json:"raw_y"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
}

// TraceRepository provides operations for gaze traces.
type TraceRepository struct {
	db *sql.DB
}

// Trace returns the gaze trace repository for this store.
func (s *Store) Trace() *TraceRepository {
	return &TraceRepository{db: s.db}
}

// Create inserts a batch of trace points in a single transaction.
func (r *TraceRepository) Create(sessionID string, points []GazePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO gaze_trace (session_id, ts_ms, raw_x, raw_y, x, y)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		var x, y any
		if p.X != nil {
			x = *p.X
		}
		if p.Y != nil {
			y = *p.Y
		}
		if _, err := stmt.Exec(sessionID, p.TS, p.RawX, p.RawY, x, y); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// BySession retrieves up to limit trace points for a session in capture
// order. A non-positive limit retrieves at most 1000 points.
func (r *TraceRepository) BySession(sessionID string, limit int) ([]GazePoint, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, ts_ms, raw_x, raw_y, x, y
		 FROM gaze_trace WHERE session_id = ? ORDER BY ts_ms LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []GazePoint
	for rows.Next() {
		var p GazePoint
		var x, y sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.SessionID, &p.TS, &p.RawX, &p.RawY, &x, &y); err != nil {
			return nil, err
		}
		if x.Valid {
			v := x.Float64
			p.X = &v
		}
		if y.Valid {
			v := y.Float64
			p.Y = &v
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// CountBySession reports how many trace points a session recorded.
func (r *TraceRepository) CountBySession(sessionID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM gaze_trace WHERE session_id = ?`, sessionID,
	).Scan(&count)
	return count, err
}
