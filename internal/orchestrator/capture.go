package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bowerhall/conductor/internal/agent"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/memory"
)

const resultExcerpt = 1000

// capture logs the request, each agent run and each tool call to memory.
// Failures are logged and never reach the caller.
func (o *Orchestrator) capture(ctx context.Context, sessionID, query, intentName string, responses []agent.Response) {
	if o.memory == nil {
		return
	}

	if err := o.memory.StartSession(ctx, sessionID, nil); err != nil {
		logger.Warn("failed to start memory session", "session", sessionID, "error", err)
	}

	o.record(ctx, memory.Observation{
		SessionID: sessionID,
		Type:      memory.TypeUserInput,
		Content:   query,
		Metadata:  map[string]any{"intent": intentName},
	})

	for _, r := range responses {
		content := fmt.Sprintf("%s %s: %s", r.Agent, r.Status, excerpt(resultText(r), resultExcerpt))
		o.record(ctx, memory.Observation{
			SessionID: sessionID,
			Type:      memory.TypeAgentRun,
			ToolName:  r.Agent,
			Content:   content,
			Metadata: map[string]any{
				"task_id":     r.TaskID,
				"intent":      intentName,
				"status":      r.Status,
				"tokens_used": r.TokensUsed,
			},
		})

		for _, tc := range r.ToolCalls {
			if tc.Type != agent.CallToolUse {
				continue
			}
			input, _ := json.Marshal(tc.Input)
			o.record(ctx, memory.Observation{
				SessionID: sessionID,
				Type:      memory.TypeToolUse,
				ToolName:  tc.Tool,
				Content:   string(input),
				Metadata:  map[string]any{"agent": r.Agent, "task_id": r.TaskID, "call_id": tc.ID},
			})
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, obs memory.Observation) {
	if _, err := o.memory.Capture(ctx, obs); err != nil {
		logger.Warn("failed to capture observation", "session", obs.SessionID, "type", obs.Type, "error", err)
		o.alerts.Warn("memory", "observation capture failed", err)
	}
}

func excerpt(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}
