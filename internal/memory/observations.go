package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const observationColumns = `o.id, o.session_id, o.timestamp, o.type, o.tool_name, o.content, o.metadata, o.summary`

// Add writes the observation and its FTS row in one transaction and returns
// the assigned id. An empty session id is stored under DefaultSessionID and a
// zero timestamp becomes now.
func (s *Store) Add(ctx context.Context, obs Observation) (int64, error) {
	if obs.Type == "" {
		return 0, errors.New("observation type is required")
	}
	if obs.SessionID == "" {
		obs.SessionID = DefaultSessionID
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO observations (session_id, timestamp, type, tool_name, content, metadata, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.SessionID,
		formatTime(obs.Timestamp),
		obs.Type,
		nullable(obs.ToolName),
		truncateRunes(obs.Content, MaxContentLength),
		encodeMetadata(obs.Metadata),
		nullable(obs.Summary),
	)
	if err != nil {
		return 0, fmt.Errorf("insert observation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return id, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SearchKeyword matches type, tool name, content and summary, best match
// first. An empty query lists recent observations instead.
func (s *Store) SearchKeyword(ctx context.Context, query string, limit int, typeFilter string) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		obs, err := s.Recent(ctx, limit, typeFilter)
		if err != nil {
			return nil, err
		}
		results := make([]SearchResult, len(obs))
		for i, o := range obs {
			results[i] = SearchResult{Observation: o}
		}
		return results, nil
	}

	sqlStr := `
		SELECT ` + observationColumns + `, fts.rank
		FROM observations_fts fts
		JOIN observations o ON o.id = fts.rowid
		WHERE observations_fts MATCH ?`
	args := []any{ftsQuery}

	if typeFilter != "" {
		sqlStr += " AND o.type = ?"
		args = append(args, typeFilter)
	}

	sqlStr += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var sr SearchResult
		if err := scanObservation(rows, &sr.Observation, &sr.Rank); err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

// Recent lists observations newest first.
func (s *Store) Recent(ctx context.Context, limit int, typeFilter string) ([]Observation, error) {
	if limit <= 0 {
		limit = 10
	}

	sqlStr := `SELECT ` + observationColumns + ` FROM observations o`
	var args []any

	if typeFilter != "" {
		sqlStr += " WHERE o.type = ?"
		args = append(args, typeFilter)
	}

	sqlStr += " ORDER BY o.timestamp DESC, o.id DESC LIMIT ?"
	args = append(args, limit)

	return s.queryObservations(ctx, sqlStr, args...)
}

// SessionObservations lists one session's observations in write order.
func (s *Store) SessionObservations(ctx context.Context, sessionID string) ([]Observation, error) {
	return s.queryObservations(ctx,
		`SELECT `+observationColumns+` FROM observations o WHERE o.session_id = ? ORDER BY o.timestamp ASC, o.id ASC`,
		sessionID,
	)
}

// Unsummarized lists the oldest observations still lacking a summary.
func (s *Store) Unsummarized(ctx context.Context, limit int) ([]Observation, error) {
	return s.queryObservations(ctx,
		`SELECT `+observationColumns+` FROM observations o WHERE o.summary IS NULL OR o.summary = '' ORDER BY o.id ASC LIMIT ?`,
		limit,
	)
}

func (s *Store) Get(ctx context.Context, id int64) (*Observation, error) {
	obs, err := s.queryObservations(ctx, `SELECT `+observationColumns+` FROM observations o WHERE o.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &obs[0], nil
}

// UpdateSummary back-fills the summary; the FTS row follows via trigger.
func (s *Store) UpdateSummary(ctx context.Context, id int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE observations SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("observation %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM observations GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Observation
	for rows.Next() {
		var o Observation
		if err := scanObservation(rows, &o); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanObservation(rows *sql.Rows, o *Observation, extra ...any) error {
	var sessionID, toolName, metadata, summary sql.NullString
	var ts string

	dest := append([]any{&o.ID, &sessionID, &ts, &o.Type, &toolName, &o.Content, &metadata, &summary}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}

	o.SessionID = sessionID.String
	o.Timestamp = parseTime(ts)
	o.ToolName = toolName.String
	o.Metadata = decodeMetadata(metadata)
	o.Summary = summary.String
	return nil
}
