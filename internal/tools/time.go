package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bowerhall/conductor/internal/llm"
)

// RegisterTimeTools registers current_time. Agents use it to date changelogs
// and release notes; now is injectable for tests.
func RegisterTimeTools(registry *Registry, timezone *time.Location) {
	registerTimeTool(registry, timezone, time.Now)
}

func registerTimeTool(registry *Registry, timezone *time.Location, now func() time.Time) {
	if timezone == nil {
		timezone = time.UTC
	}

	tool := llm.Tool{
		Name:        CurrentTime,
		Description: "Get the current date and time for changelogs, release notes or file headers. Pass an IANA timezone to override the default.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name, e.g. Europe/Berlin",
				},
			},
		},
	}

	registry.Register(tool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Timezone string `json:"timezone"`
		}
		if strings.TrimSpace(args) != "" {
			if err := json.Unmarshal([]byte(args), &params); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
		}

		loc := timezone
		if params.Timezone != "" {
			l, err := time.LoadLocation(params.Timezone)
			if err != nil {
				return "", fmt.Errorf("unknown timezone %q", params.Timezone)
			}
			loc = l
		}

		t := now().In(loc)
		year, week := t.ISOWeek()

		var sb strings.Builder
		fmt.Fprintf(&sb, "Date: %s (%s)\n", t.Format("2006-01-02"), t.Weekday())
		fmt.Fprintf(&sb, "Time: %s %s\n", t.Format("15:04:05"), loc)
		fmt.Fprintf(&sb, "ISO week: %d-W%02d\n", year, week)
		fmt.Fprintf(&sb, "RFC3339: %s", t.Format(time.RFC3339))
		return sb.String(), nil
	})
}
