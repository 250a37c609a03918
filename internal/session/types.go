package session

import (
	"sync"
	"time"
)

// Turn is one user/assistant exchange.
type Turn struct {
	User       string    `json:"user"`
	Assistant  string    `json:"assistant"`
	Timestamp  time.Time `json:"timestamp"`
	TokensUsed int       `json:"tokens_used"`
}

// Context is the rolling conversation state of one session. Turns older than
// the recent window survive only through Summary.
type Context struct {
	SessionID       string            `json:"session_id"`
	Summary         string            `json:"conversation_summary"`
	RecentTurns     []Turn            `json:"recent_turns"`
	ActiveFiles     map[string]string `json:"active_files"`
	TaskHistory     []string          `json:"task_history"`
	TotalTokensUsed int               `json:"total_tokens_used"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Session guards request processing for one session id.
type Session struct {
	processing sync.Mutex
}

// Store hands out one Session per id so callers can serialize work per session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}
