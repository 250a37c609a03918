package agent

import (
	"context"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/tools"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const (
	CallToolUse       = "tool_use"
	CallFileOperation = "file_operation"
)

type Task struct {
	TaskID     string         `json:"task_id"`
	UserQuery  string         `json:"user_query"`
	Intent     string         `json:"intent"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ToolCall is one tool invocation or file write made while running a task.
// File operations carry Filename and Summary.
type ToolCall struct {
	Type     string         `json:"type"`
	Tool     string         `json:"tool"`
	Input    map[string]any `json:"input,omitempty"`
	ID       string         `json:"id,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Summary  string         `json:"summary,omitempty"`
}

type Response struct {
	TaskID       string     `json:"task_id"`
	Agent        string     `json:"agent"`
	Status       string     `json:"status"`
	Result       string     `json:"result"`
	ActionsTaken []string   `json:"actions_taken"`
	TokensUsed   int        `json:"tokens_used"`
	ToolCalls    []ToolCall `json:"tool_calls"`
	Errors       []string   `json:"errors,omitempty"`
}

func (r Response) Failed() bool {
	return r.Status == StatusFailed
}

// Agent executes one task against a session context. Failures are reported
// in the response status, never as a Go error.
type Agent interface {
	Name() string
	Execute(ctx context.Context, task Task, sc *session.Context) Response
}

// Specialist is an Agent backed by one role prompt and a fixed tool set.
type Specialist struct {
	name      string
	prompt    string
	llm       llm.LLM
	tools     *tools.Registry
	maxTokens int
}
