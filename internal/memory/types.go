// Package memory is the append-only observation log. Every observation is
// written together with its full-text index entry, and the summary column is
// the only field that may change after the write.
package memory

import "time"

// MaxContentLength caps observation content; longer content is truncated.
const MaxContentLength = 10000

const DefaultSessionID = "default"

// Observation types produced by the pipeline. The type column is open, so
// callers may store other values.
const (
	TypeToolUse    = "tool_use"
	TypeDecision   = "decision"
	TypePreference = "preference"
	TypeUserInput  = "user_input"
	TypeAgentRun   = "agent_run"
)

type Observation struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	ToolName  string         `json:"tool_name,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Summary   string         `json:"summary,omitempty"`
}

// SearchResult is an observation with its FTS5 rank (lower is better, 0 for
// non-FTS listings).
type SearchResult struct {
	Observation
	Rank float64 `json:"rank"`
}

type Session struct {
	SessionID string         `json:"session_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Memory is a standalone preference or decision, outside any session.
type Memory struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Stats struct {
	TotalSessions      int            `json:"total_sessions"`
	TotalObservations  int            `json:"total_observations"`
	ObservationsByType map[string]int `json:"observations_by_type"`
	TotalMemories      int            `json:"total_memories"`
}
