// Package contextmgr keeps each session's rolling conversation context inside
// a token budget and persists it after every change.
package contextmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bowerhall/conductor/internal/agent"
	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/storage"
)

const summaryMaxTokens = 1000

const summaryPrompt = `Summarize this conversation, preserving:
- Key technical decisions and specifications
- Files that have been created or modified
- Tasks that have been completed
- Current work-in-progress items
- Any errors or issues encountered

Be concise but retain all important technical details.

Previous summary:
%s

Recent conversation:
%s

Provide a comprehensive summary that incorporates both the previous summary and new information.`

// Manager owns the live contexts. Callers serialize work per session; the
// manager only guards its own session table.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*session.Context
	store     storage.Snapshots
	llm       llm.LLM
	keep      int
	threshold int
	now       func() time.Time
}

func New(cfg config.ContextConfig, model llm.LLM, store storage.Snapshots) *Manager {
	return &Manager{
		sessions:  make(map[string]*session.Context),
		store:     store,
		llm:       model,
		keep:      cfg.RecentTurnsToKeep,
		threshold: cfg.SummarizationTokens(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Threshold() int {
	return m.threshold
}

// Get returns the live context for sessionID: cached, else loaded from the
// snapshot store, else fresh. An unreadable snapshot is logged and replaced
// by a fresh context.
func (m *Manager) Get(ctx context.Context, sessionID string) *session.Context {
	m.mu.Lock()
	if c, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return c
	}
	m.mu.Unlock()

	c := m.load(ctx, sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[sessionID]; ok {
		return existing
	}
	m.sessions[sessionID] = c
	return c
}

func (m *Manager) load(ctx context.Context, sessionID string) *session.Context {
	if m.store == nil {
		return session.NewContext(sessionID)
	}

	c, err := m.store.Load(ctx, sessionID)
	switch {
	case err == nil:
		logger.Debug("context loaded", "session", sessionID, "turns", len(c.RecentTurns))
		return c
	case errors.Is(err, storage.ErrNotFound):
	default:
		logger.Warn("failed to load context, starting fresh", "session", sessionID, "error", err)
	}
	return session.NewContext(sessionID)
}

// Update records one completed turn and persists the context. The in-memory
// context is updated even when the save fails; the save error is returned so
// callers can log it.
func (m *Manager) Update(ctx context.Context, sessionID, userText, assistantText string, responses []agent.Response, tokensUsed int) error {
	c := m.Get(ctx, sessionID)
	now := m.now()

	c.AddTurn(session.Turn{
		User:       userText,
		Assistant:  assistantText,
		Timestamp:  now,
		TokensUsed: tokensUsed,
	}, m.keep)

	for _, resp := range responses {
		for _, tc := range resp.ToolCalls {
			if tc.Type != agent.CallFileOperation || tc.Filename == "" {
				continue
			}
			summary := tc.Summary
			if summary == "" {
				summary = "Modified by " + resp.TaskID
			}
			c.ActiveFiles[tc.Filename] = summary
		}
	}

	for _, resp := range responses {
		c.TaskHistory = append(c.TaskHistory, resp.ActionsTaken...)
	}

	c.TotalTokensUsed += tokensUsed
	c.UpdatedAt = now

	return m.save(ctx, c)
}

// ShouldSummarize reports whether the estimated context size is over the
// threshold.
func (m *Manager) ShouldSummarize(ctx context.Context, sessionID string) bool {
	return m.Get(ctx, sessionID).EstimateTokens() > m.threshold
}

// Summarize replaces the session summary with an LLM consolidation of the
// previous summary and the recent context, then keeps only the latest turn.
// On any error the context is left unchanged.
func (m *Manager) Summarize(ctx context.Context, sessionID string) error {
	c := m.Get(ctx, sessionID)

	previous := c.Summary
	if previous == "" {
		previous = "None"
	}

	resp, err := m.llm.Chat(ctx, llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: fmt.Sprintf(summaryPrompt, previous, c.FullContext())}},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("summarize context: %w", err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return errors.New("summarize context: empty summary")
	}

	c.Summary = summary
	if n := len(c.RecentTurns); n > 0 {
		c.RecentTurns = []session.Turn{c.RecentTurns[n-1]}
	}
	c.UpdatedAt = m.now()

	logger.Info("context summarized", "session", sessionID, "tokens", c.EstimateTokens())

	if err := m.save(ctx, c); err != nil {
		logger.Warn("summarized context not persisted", "session", sessionID, "error", err)
	}
	return nil
}

// Clear forgets the session in memory and deletes its snapshot.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, sessionID)
}

// Snapshot returns a copy of the session's context, or nil when the session
// is neither cached nor persisted.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) *session.Context {
	m.mu.Lock()
	c, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		return c.Clone()
	}

	if m.store == nil {
		return nil
	}
	loaded, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil
	}
	return loaded
}

// Sessions lists cached session ids.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) save(ctx context.Context, c *session.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, c); err != nil {
		logger.Warn("failed to persist context", "session", c.SessionID, "error", err)
		return err
	}
	return nil
}
