package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/retrieval"
	"github.com/bowerhall/conductor/internal/session"
)

type SearchArgs struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func RegisterMemoryTools(registry *Registry, manager *retrieval.Manager) {
	searchTool := llm.Tool{
		Name:        SearchMemory,
		Description: "Search past observations and stored decisions from earlier work. Use this to recall what was done before, which files were touched, or what the user decided.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for (e.g., 'database schema decision', 'auth tests')",
				},
				"mode": map[string]any{
					"type":        "string",
					"enum":        []string{retrieval.ModeHybrid, retrieval.ModeKeyword, retrieval.ModeSemantic},
					"description": "Search mode. Default: hybrid.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results. Default: 5.",
				},
			},
			"required": []string{"query"},
		},
	}

	registry.Register(searchTool, func(ctx context.Context, args string) (string, error) {
		var params SearchArgs
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if params.Mode == "" {
			params.Mode = retrieval.ModeHybrid
		}
		if params.Limit <= 0 {
			params.Limit = 5
		}

		results, err := manager.Search(ctx, params.Query, params.Limit, params.Mode)
		if err != nil {
			return "", err
		}

		memories, err := manager.Memories(ctx, params.Query, 3)
		if err != nil {
			return "", err
		}

		if len(results) == 0 && len(memories) == 0 {
			return "No relevant memories found.", nil
		}

		var sb strings.Builder
		if len(memories) > 0 {
			sb.WriteString("Stored memories:\n")
			for _, m := range memories {
				fmt.Fprintf(&sb, "- [%s] %s\n", m.Type, m.Content)
			}
		}

		if len(results) > 0 {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("Observations:\n")
			for _, r := range results {
				text := r.Content
				if r.Summary != "" {
					text = r.Summary
				}
				fmt.Fprintf(&sb, "- [%s, %s %.2f] %s\n", r.Type, r.Source, r.Score, text)
			}
		}

		return sb.String(), nil
	})

	rememberTool := llm.Tool{
		Name:        Remember,
		Description: "Store a durable user preference or project decision so later sessions can find it.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{
					"type":        "string",
					"enum":        []string{"preference", "decision"},
					"description": "Kind of memory",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The preference or decision, stated plainly",
				},
			},
			"required": []string{"type", "content"},
		},
	}

	registry.Register(rememberTool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(params.Content) == "" {
			return "", fmt.Errorf("content is required")
		}

		var metadata map[string]any
		if id := session.IDFrom(ctx); id != "" {
			metadata = map[string]any{"session_id": id}
		}

		id, err := manager.Remember(ctx, params.Type, params.Content, metadata)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Stored %s #%d", params.Type, id), nil
	})
}
