package session

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// RecentActionsShown is how many task history entries are read back.
const RecentActionsShown = 10

// CharsPerToken is the fixed ratio used to estimate token counts.
const CharsPerToken = 4

func NewContext(sessionID string) *Context {
	now := time.Now().UTC()
	return &Context{
		SessionID:   sessionID,
		RecentTurns: []Turn{},
		ActiveFiles: make(map[string]string),
		TaskHistory: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddTurn appends a turn and keeps only the last keep turns.
func (c *Context) AddTurn(turn Turn, keep int) {
	c.RecentTurns = append(c.RecentTurns, turn)
	if keep > 0 && len(c.RecentTurns) > keep {
		c.RecentTurns = append([]Turn(nil), c.RecentTurns[len(c.RecentTurns)-keep:]...)
	}
}

// RecentActions returns up to the last RecentActionsShown task history entries.
func (c *Context) RecentActions() []string {
	if len(c.TaskHistory) <= RecentActionsShown {
		return c.TaskHistory
	}
	return c.TaskHistory[len(c.TaskHistory)-RecentActionsShown:]
}

// LastTurns returns up to n of the most recent turns.
func (c *Context) LastTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(c.RecentTurns) <= n {
		return c.RecentTurns
	}
	return c.RecentTurns[len(c.RecentTurns)-n:]
}

// SortedFiles returns the active file names in lexical order.
func (c *Context) SortedFiles() []string {
	names := make([]string, 0, len(c.ActiveFiles))
	for name := range c.ActiveFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FullContext serializes turns, active files and the last task entries into
// the block that is both measured and sent for summarization.
func (c *Context) FullContext() string {
	var parts []string

	for _, turn := range c.RecentTurns {
		parts = append(parts, "User: "+turn.User, "Assistant: "+turn.Assistant, "")
	}

	if len(c.ActiveFiles) > 0 {
		parts = append(parts, "Active Files:")
		for _, name := range c.SortedFiles() {
			parts = append(parts, fmt.Sprintf("  - %s: %s", name, c.ActiveFiles[name]))
		}
		parts = append(parts, "")
	}

	if len(c.TaskHistory) > 0 {
		parts = append(parts, "Recent Actions:")
		for _, action := range c.RecentActions() {
			parts = append(parts, "  - "+action)
		}
		parts = append(parts, "")
	}

	return strings.Join(parts, "\n")
}

// EstimateTokens approximates the context size at CharsPerToken characters per token.
func (c *Context) EstimateTokens() int {
	return utf8.RuneCountInString(c.FullContext()) / CharsPerToken
}

// Clone returns a deep copy safe to hand to readers outside the manager.
func (c *Context) Clone() *Context {
	out := *c
	out.RecentTurns = append([]Turn(nil), c.RecentTurns...)
	out.TaskHistory = append([]string(nil), c.TaskHistory...)
	out.ActiveFiles = make(map[string]string, len(c.ActiveFiles))
	for k, v := range c.ActiveFiles {
		out.ActiveFiles[k] = v
	}
	return &out
}
