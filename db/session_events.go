package db

import (
	"database/sql"
	"time"

	"github.com/rohanthewiz/serr"
)

// SessionEvent is one recorded transition of a live preview session.
type SessionEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Shader    string    `json:"shader,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordSessionEvent appends a session transition. Safe for concurrent use.
func (db *DB) RecordSessionEvent(sessionID, kind, shader string) error {
	_, err := db.Exec(
		"INSERT INTO session_events (session_id, kind, shader) VALUES (?, ?, ?)",
		sessionID, kind, nullableString(shader),
	)
	if err != nil {
		return serr.Wrap(err, "failed to record session event", "session", sessionID, "kind", kind)
	}
	return nil
}

// SessionEvents returns the events of one session in the order they were recorded.
func (db *DB) SessionEvents(sessionID string) ([]SessionEvent, error) {
	rows, err := db.Query(`
		SELECT id, session_id, kind, shader, created_at
		FROM session_events
		WHERE session_id = ?
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []SessionEvent{}
	for rows.Next() {
		var (
			e      SessionEvent
			shader sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &shader, &e.CreatedAt); err != nil {
			return nil, serr.Wrap(err, "failed to scan session event")
		}
		e.Shader = shader.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// ReloadCounts returns how many reloads each shader triggered across all sessions.
func (db *DB) ReloadCounts() (map[string]int64, error) {
	rows, err := db.Query(`
		SELECT shader, COUNT(*)
		FROM session_events
		WHERE kind = 'reload'
		GROUP BY shader`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			shader string
			n      int64
		)
		if err := rows.Scan(&shader, &n); err != nil {
			return nil, serr.Wrap(err, "failed to scan reload count")
		}
		counts[shader] = n
	}
	return counts, rows.Err()
}
