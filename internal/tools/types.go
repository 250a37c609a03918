package tools

import (
	"context"
	"sync"

	"github.com/bowerhall/conductor/internal/llm"
)

type Handler func(ctx context.Context, args string) (string, error)

type Registry struct {
	tools    []llm.Tool
	handlers map[string]Handler
}

// FileOperation is a file a tool wrote on behalf of an agent.
type FileOperation struct {
	Filename string
	Summary  string
}

// Recorder collects file operations made while one agent runs.
type Recorder struct {
	mu  sync.Mutex
	ops []FileOperation
}
