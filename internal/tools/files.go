package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/validate"
)

const maxReadBytes = 100_000

// RegisterFileTools exposes read, write and list operations confined to root.
func RegisterFileTools(registry *Registry, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}

	ws := &workspace{root: abs}
	registerReadFile(registry, ws)
	registerWriteFile(registry, ws)
	registerListFiles(registry, ws)
	return nil
}

type workspace struct {
	root string
}

// resolve maps a user path into the workspace, rejecting anything that
// escapes it.
func (w *workspace) resolve(path string) (string, error) {
	if err := validate.FilePath(path); err != nil {
		return "", err
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(w.root, path)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(w.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside workspace %s", path, w.root)
	}
	return full, nil
}

func registerReadFile(registry *Registry, ws *workspace) {
	tool := llm.Tool{
		Name:        ReadFile,
		Description: "Read a text file from the workspace. Paths are relative to the workspace root.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path relative to the workspace root",
				},
			},
			"required": []string{"path"},
		},
	}

	registry.Register(tool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}

		full, err := ws.resolve(params.Path)
		if err != nil {
			return "", err
		}

		data, err := os.ReadFile(full)
		if err != nil {
			return "", err
		}

		if len(data) > maxReadBytes {
			return string(data[:maxReadBytes]) + "\n\n[truncated]", nil
		}
		return string(data), nil
	})
}

func registerWriteFile(registry *Registry, ws *workspace) {
	tool := llm.Tool{
		Name:        WriteFile,
		Description: "Create or overwrite a file in the workspace. Parent directories are created as needed. Give a one-line summary of the change so it can be tracked.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path relative to the workspace root",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full file content",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "One-line description of what changed",
				},
			},
			"required": []string{"path", "content"},
		},
	}

	registry.Register(tool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Path    string `json:"path"`
			Content string `json:"content"`
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}

		full, err := ws.resolve(params.Path)
		if err != nil {
			return "", err
		}

		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(full, []byte(params.Content), 0644); err != nil {
			return "", err
		}

		rel, _ := filepath.Rel(ws.root, full)
		recordFile(ctx, filepath.ToSlash(rel), params.Summary)

		return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), filepath.ToSlash(rel)), nil
	})
}

func registerListFiles(registry *Registry, ws *workspace) {
	tool := llm.Tool{
		Name:        ListFiles,
		Description: "List files in a workspace directory, optionally filtered by a glob pattern such as *.go.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"directory": map[string]any{
					"type":        "string",
					"description": "Directory relative to the workspace root (default: root)",
				},
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern matched against file names (default: *)",
				},
				"recursive": map[string]any{
					"type":        "boolean",
					"description": "Descend into subdirectories",
				},
			},
		},
	}

	registry.Register(tool, func(ctx context.Context, args string) (string, error) {
		var params struct {
			Directory string `json:"directory"`
			Pattern   string `json:"pattern"`
			Recursive bool   `json:"recursive"`
		}
		if args != "" {
			if err := json.Unmarshal([]byte(args), &params); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
		}
		if params.Directory == "" {
			params.Directory = "."
		}
		if params.Pattern == "" {
			params.Pattern = "*"
		}

		dir, err := ws.resolve(params.Directory)
		if err != nil {
			return "", err
		}

		files, err := listFiles(ws.root, dir, params.Pattern, params.Recursive)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "No files found.", nil
		}
		return strings.Join(files, "\n"), nil
	})
}

func listFiles(root, dir, pattern string, recursive bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}
