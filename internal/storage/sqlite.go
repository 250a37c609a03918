package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/bowerhall/conductor/internal/session"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS session_snapshots (
    session_id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// SQLiteStore keeps snapshots in the shared database, one row per session.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, c *session.Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return persistErr("save", c.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (session_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		c.SessionID, string(data), time.Now().UTC(),
	)
	return persistErr("save", c.SessionID, err)
}

func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*session.Context, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM session_snapshots WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("load", sessionID, err)
	}

	return decode(sessionID, []byte(data))
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ?`, sessionID)
	return persistErr("delete", sessionID, err)
}

// SessionIDs lists every persisted session, most recently updated first.
func (s *SQLiteStore) SessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM session_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
