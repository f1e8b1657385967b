package store

import "database/sql"

// Event represents one gesture label transition observed during a session.
// Events are recorded only when the label changes, not per frame.
type Event struct {
	ID         int64   `json:"id"`
	SessionID  string  `json:"session_id"`
	TS         int64   `json:"ts_ms"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Handedness string  `json:"handedness"`
}

// EventRepository provides operations for gesture events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the gesture event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts a gesture event.
func (r *EventRepository) Create(e *Event) error {
	result, err := r.db.Exec(
		`INSERT INTO gesture_events (session_id, ts_ms, label, confidence, handedness)
		 VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.TS, e.Label, e.Confidence, e.Handedness,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// BySession retrieves all events for a session in capture order.
func (r *EventRepository) BySession(sessionID string) ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, ts_ms, label, confidence, handedness
		 FROM gesture_events WHERE session_id = ? ORDER BY ts_ms`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TS, &e.Label, &e.Confidence, &e.Handedness); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
