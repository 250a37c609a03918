package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/bowerhall/conductor/internal/llm"
)

const maxCommandOutput = 20_000

// RegisterCommandTools exposes run_command for the allowed binaries, run
// inside root. Nothing is registered when allowed is empty.
func RegisterCommandTools(registry *Registry, root string, allowed []string, timeout time.Duration) {
	if len(allowed) == 0 {
		return
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	tool := llm.Tool{
		Name:        RunCommand,
		Description: fmt.Sprintf("Run a command in the workspace, such as a test runner or linter. Allowed programs: %s.", strings.Join(allowed, ", ")),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Program to run",
				},
				"args": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Arguments passed to the program",
				},
			},
			"required": []string{"command"},
		},
	}

	registry.Register(tool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Command string   `json:"command"`
			Args    []string `json:"args"`
		}
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if !slices.Contains(allowed, params.Command) {
			return "", fmt.Errorf("command not allowed: %s", params.Command)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, params.Command, params.Args...)
		cmd.Dir = root

		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		err := cmd.Run()
		output := out.String()
		if len(output) > maxCommandOutput {
			output = output[len(output)-maxCommandOutput:]
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Sprintf("Command timed out after %s\n%s", timeout, output), nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Sprintf("Exit code %d\n%s", exitErr.ExitCode(), output), nil
		}
		if err != nil {
			return "", err
		}
		return "Exit code 0\n" + output, nil
	})
}
