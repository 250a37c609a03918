package memory

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// StartSession registers a session once; repeated starts are ignored.
func (s *Store) StartSession(ctx context.Context, sessionID string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, start_time, metadata) VALUES (?, ?, ?)`,
		sessionID, formatTime(time.Now()), encodeMetadata(metadata),
	)
	return err
}

func (s *Store) EndSession(ctx context.Context, sessionID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET end_time = ?, summary = ? WHERE session_id = ?`,
		formatTime(time.Now()), nullable(summary), sessionID,
	)
	return err
}

// GetSession returns nil when the session was never started.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var start string
	var end, summary, metadata sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT start_time, end_time, summary, metadata FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&start, &end, &summary, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess := &Session{
		SessionID: sessionID,
		StartTime: parseTime(start),
		Summary:   summary.String,
		Metadata:  decodeMetadata(metadata),
	}
	if end.Valid {
		t := parseTime(end.String)
		sess.EndTime = &t
	}
	return sess, nil
}
