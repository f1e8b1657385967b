package store

import "database/sql"

// Fit records the outcome of one calibration fit attempt. Only quality
// diagnostics are kept; the model coefficients stay in memory.
type Fit struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id"`
	TS        int64   `json:"ts_ms"`
	Samples   int     `json:"samples"`
	OK        bool    `json:"ok"`
	ResidualX float64 `json:"residual_x"`
	ResidualY float64 `json:"residual_y"`
}

// FitRepository provides operations for calibration fit records.
type FitRepository struct {
	db *sql.DB
}

// Fits returns the calibration fit repository for this store.
func (s *Store) Fits() *FitRepository {
	return &FitRepository{db: s.db}
}

// Create inserts a fit record.
func (r *FitRepository) Create(f *Fit) error {
	ok := 0
	if f.OK {
		ok = 1
	}

	result, err := r.db.Exec(
		`INSERT INTO calibration_fits (session_id, ts_ms, samples, ok, residual_x, residual_y)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.SessionID, f.TS, f.Samples, ok, f.ResidualX, f.ResidualY,
	)
	if err != nil {
		return err
	}

	f.ID, err = result.LastInsertId()
	return err
}

// BySession retrieves all fit records for a session in capture order.
func (r *FitRepository) BySession(sessionID string) ([]Fit, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, ts_ms, samples, ok, residual_x, residual_y
		 FROM calibration_fits WHERE session_id = ? ORDER BY ts_ms`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fits []Fit
	for rows.Next() {
		var f Fit
		var ok int
		if err := rows.Scan(&f.ID, &f.SessionID, &f.TS, &f.Samples, &ok, &f.ResidualX, &f.ResidualY); err != nil {
			return nil, err
		}
		f.OK = ok != 0
		fits = append(fits, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fits, nil
}
