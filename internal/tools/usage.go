package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bowerhall/conductor/internal/budget"
	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/session"
)

func RegisterUsageTools(registry *Registry, store *budget.Store, timezone *time.Location) {
	if store == nil {
		return
	}
	if timezone == nil {
		timezone = time.UTC
	}

	usageTool := llm.Tool{
		Name:        UsageSummary,
		Description: "Get LLM token usage and cost in USD for today, this week, this month, or the current session, with a per-model breakdown.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period": map[string]any{
					"type":        "string",
					"enum":        []string{"today", "week", "month", "session"},
					"description": "Time period, or session for the current conversation",
				},
			},
			"required": []string{"period"},
		},
	}

	registry.Register(usageTool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Period string `json:"period"`
		}
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}

		if params.Period == "session" {
			id := session.IDFrom(ctx)
			if id == "" {
				return "", fmt.Errorf("no session in context")
			}
			summary, err := store.ForSession(id)
			if err != nil {
				return "", err
			}
			return formatSummary("session "+id, summary), nil
		}

		from, to, err := periodRange(params.Period, time.Now().In(timezone))
		if err != nil {
			return "", err
		}

		summary, err := store.SummaryRange(from, to)
		if err != nil {
			return "", err
		}

		var sb strings.Builder
		sb.WriteString(formatSummary(params.Period, summary))

		breakdown, err := store.BreakdownByModel(from, to)
		if err != nil {
			return "", err
		}
		if len(breakdown) > 0 {
			sb.WriteString("\n\n| Model | Requests | Input Tokens | Output Tokens | Cost |\n")
			sb.WriteString("|-------|----------|--------------|---------------|------|\n")
			for _, b := range breakdown {
				fmt.Fprintf(&sb, "| %s | %d | %d | %d | $%.4f |\n",
					b.Model, b.Requests, b.InputTokens, b.OutputTokens, b.CostUSD)
			}
		}

		return sb.String(), nil
	})
}

func periodRange(period string, now time.Time) (time.Time, time.Time, error) {
	loc := now.Location()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch period {
	case "today":
		return day, day.Add(24 * time.Hour), nil
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		from := day.AddDate(0, 0, -weekday+1)
		return from, from.AddDate(0, 0, 7), nil
	case "month":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period: %s", period)
	}
}

func formatSummary(label string, s *budget.Summary) string {
	return fmt.Sprintf(
		"Usage for %s:\n- Requests: %d\n- Input tokens: %d\n- Output tokens: %d\n- Total cost: $%.4f",
		label,
		s.TotalRequests,
		s.TotalInputTokens,
		s.TotalOutputTokens,
		s.TotalCostUSD,
	)
}
