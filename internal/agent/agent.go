package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/tools"
)

const (
	maxToolIterations = 10
	defaultMaxTokens  = 4096
	recentTurnsShown  = 2
)

func NewSpecialist(name, prompt string, model llm.LLM, registry *tools.Registry) *Specialist {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Specialist{
		name:      name,
		prompt:    prompt,
		llm:       model,
		tools:     registry,
		maxTokens: defaultMaxTokens,
	}
}

func (s *Specialist) Name() string {
	return s.name
}

func (s *Specialist) Tools() []llm.Tool {
	return s.tools.Tools()
}

func (s *Specialist) Execute(ctx context.Context, task Task, sc *session.Context) Response {
	logger.Debug("agent executing", "agent", s.name, "task", task.TaskID)

	resp := Response{
		TaskID:       task.TaskID,
		Agent:        s.name,
		ActionsTaken: []string{},
		ToolCalls:    []ToolCall{},
	}

	rec := &tools.Recorder{}
	ctx = tools.WithRecorder(ctx, rec)

	messages := buildMessages(task, sc)
	result, err := s.runToolLoop(ctx, messages, &resp)
	if err != nil {
		logger.Error("agent failed", "agent", s.name, "task", task.TaskID, "error", err)
		resp.Status = StatusFailed
		resp.Errors = []string{err.Error()}
	} else {
		resp.Status = StatusSuccess
		resp.Result = result
	}

	for _, op := range rec.Operations() {
		summary := op.Summary
		if summary == "" {
			summary = "Modified by " + task.TaskID
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			Type:     CallFileOperation,
			Tool:     tools.WriteFile,
			Filename: op.Filename,
			Summary:  summary,
		})
		resp.ActionsTaken = append(resp.ActionsTaken, "Modified file: "+op.Filename)
	}

	return resp
}

// runToolLoop calls the model until it answers without requesting tools.
// Usage and tool calls accumulate on resp as they happen, so a failure
// partway through still reports them.
func (s *Specialist) runToolLoop(ctx context.Context, messages []llm.Message, resp *Response) (string, error) {
	available := s.tools.Tools()

	for i := range maxToolIterations {
		logger.Debug("agent loop iteration", "agent", s.name, "iteration", i, "messages", len(messages))

		out, err := s.llm.Chat(ctx, llm.Request{
			System:    s.prompt,
			Messages:  messages,
			Tools:     available,
			MaxTokens: s.maxTokens,
		})
		if err != nil {
			return "", err
		}

		resp.TokensUsed += out.Tokens()

		if len(out.ToolCalls) == 0 {
			return out.Content, nil
		}

		logger.Debug("llm requested tools", "agent", s.name, "count", len(out.ToolCalls))
		messages = append(messages, llm.Message{Role: "assistant", Content: out.Content, ToolCalls: out.ToolCalls})

		for _, tc := range out.ToolCalls {
			result, err := s.tools.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				result = "Error: " + err.Error()
			}

			logger.Debug("tool result", "agent", s.name, "tool", tc.Name, "chars", len(result))
			messages = append(messages, llm.Message{Role: "tool", Content: result, ToolCallID: tc.ID})

			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				Type:  CallToolUse,
				Tool:  tc.Name,
				Input: decodeInput(tc.Arguments),
				ID:    tc.ID,
			})
			resp.ActionsTaken = append(resp.ActionsTaken, "Used tool: "+tc.Name)
		}
	}

	logger.Warn("agent loop hit max iterations", "agent", s.name, "max", maxToolIterations)
	return "", fmt.Errorf("no final answer after %d tool iterations", maxToolIterations)
}

// buildMessages lays out the summary, the last two turns, then the query
// with the active files appended.
func buildMessages(task Task, sc *session.Context) []llm.Message {
	var messages []llm.Message

	if sc == nil {
		return []llm.Message{{Role: "user", Content: task.UserQuery}}
	}

	if sc.Summary != "" {
		messages = append(messages,
			llm.Message{Role: "user", Content: fmt.Sprintf("Previous conversation summary:\n%s\n\n", sc.Summary)},
			llm.Message{Role: "assistant", Content: "I understand the previous context."},
		)
	}

	for _, turn := range sc.LastTurns(recentTurnsShown) {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.User},
			llm.Message{Role: "assistant", Content: turn.Assistant},
		)
	}

	content := task.UserQuery
	if len(sc.ActiveFiles) > 0 {
		var lines []string
		for _, f := range sc.SortedFiles() {
			lines = append(lines, fmt.Sprintf("  - %s: %s", f, sc.ActiveFiles[f]))
		}
		content += "\n\nActive files:\n" + strings.Join(lines, "\n")
	}

	return append(messages, llm.Message{Role: "user", Content: content})
}

func decodeInput(args string) map[string]any {
	if args == "" {
		return nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return map[string]any{"raw": args}
	}
	return input
}
