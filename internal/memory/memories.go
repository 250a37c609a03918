package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) AddMemory(ctx context.Context, memType, content string, metadata map[string]any) (int64, error) {
	if memType == "" || content == "" {
		return 0, errors.New("memory type and content are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (type, content, metadata, timestamp) VALUES (?, ?, ?, ?)`,
		memType, truncateRunes(content, MaxContentLength), encodeMetadata(metadata), formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) SearchMemories(ctx context.Context, query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return s.queryMemories(ctx,
			`SELECT m.id, m.type, m.content, m.metadata, m.timestamp FROM memories m ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
			limit)
	}

	return s.queryMemories(ctx, `
		SELECT m.id, m.type, m.content, m.metadata, m.timestamp
		FROM memories_fts fts
		JOIN memories m ON m.id = fts.rowid
		WHERE memories_fts MATCH ?
		ORDER BY fts.rank LIMIT ?`,
		ftsQuery, limit)
}

func (s *Store) queryMemories(ctx context.Context, query string, args ...any) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Memory
	for rows.Next() {
		var m Memory
		var metadata sql.NullString
		var ts string
		if err := rows.Scan(&m.ID, &m.Type, &m.Content, &metadata, &ts); err != nil {
			return nil, err
		}
		m.Metadata = decodeMetadata(metadata)
		m.Timestamp = parseTime(ts)
		result = append(result, m)
	}
	return result, rows.Err()
}
