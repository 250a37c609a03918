package budget

import (
	"database/sql"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_session ON usage(session_id);
`

type Store struct {
	db       *sql.DB
	timezone *time.Location
}

func NewStore(db *sql.DB, timezone *time.Location) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	tz := timezone
	if tz == nil {
		tz = time.UTC
	}

	return &Store{db: db, timezone: tz}, nil
}

type UsageRecord struct {
	SessionID    string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

func (s *Store) Record(u UsageRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO usage (timestamp, session_id, provider, model, input_tokens, output_tokens, cost_usd) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().In(s.timezone),
		u.SessionID,
		u.Provider,
		u.Model,
		u.InputTokens,
		u.OutputTokens,
		CalculateCost(u.Provider, u.Model, u.InputTokens, u.OutputTokens),
	)

	return err
}

type Summary struct {
	TotalRequests     int     `json:"total_requests"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

func (s *Store) SummaryRange(from, to time.Time) (*Summary, error) {
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM usage
		WHERE timestamp >= ? AND timestamp < ?
	`, from, to)

	var sum Summary
	if err := row.Scan(&sum.TotalRequests, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
		return nil, err
	}

	return &sum, nil
}

func (s *Store) todayRange() (time.Time, time.Time) {
	now := time.Now().In(s.timezone)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone)
	return start, start.Add(24 * time.Hour)
}

func (s *Store) Today() (*Summary, error) {
	return s.SummaryRange(s.todayRange())
}

func (s *Store) TodayTokens() (int, error) {
	sum, err := s.Today()
	if err != nil {
		return 0, err
	}
	return sum.TotalInputTokens + sum.TotalOutputTokens, nil
}

// ForSession totals every recorded call made on behalf of one session.
func (s *Store) ForSession(sessionID string) (*Summary, error) {
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM usage
		WHERE session_id = ?
	`, sessionID)

	var sum Summary
	if err := row.Scan(&sum.TotalRequests, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
		return nil, err
	}

	return &sum, nil
}

type ModelBreakdown struct {
	Model        string  `json:"model"`
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

func (s *Store) BreakdownByModel(from, to time.Time) ([]ModelBreakdown, error) {
	rows, err := s.db.Query(`
		SELECT
			model,
			COUNT(*),
			SUM(input_tokens),
			SUM(output_tokens),
			SUM(cost_usd)
		FROM usage
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY model
		ORDER BY SUM(cost_usd) DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ModelBreakdown
	for rows.Next() {
		var b ModelBreakdown
		if err := rows.Scan(&b.Model, &b.Requests, &b.InputTokens, &b.OutputTokens, &b.CostUSD); err != nil {
			return nil, err
		}
		result = append(result, b)
	}

	return result, rows.Err()
}
