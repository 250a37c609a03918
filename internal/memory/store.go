package memory

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode"
)

// timeLayout is fixed width so text ordering in SQL matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is shared by every session of the process. Writes go through one
// mutex so id assignment and index maintenance never interleave.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle to components sharing the database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}

func encodeMetadata(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMetadata(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" || s.String == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil
	}
	return m
}

// sanitizeFTS quotes every word so user text can't inject FTS5 syntax.
// Words without letters or digits are dropped since they match nothing.
func sanitizeFTS(query string) string {
	var words []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, "")
		if !strings.ContainsFunc(w, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			continue
		}
		words = append(words, `"`+w+`"`)
	}
	return strings.Join(words, " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
