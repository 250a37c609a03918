package tools

import (
	"context"
	"fmt"

	"github.com/bowerhall/conductor/internal/llm"
)

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(tool llm.Tool, handler Handler) {
	if _, exists := r.handlers[tool.Name]; !exists {
		r.tools = append(r.tools, tool)
	} else {
		for i := range r.tools {
			if r.tools[i].Name == tool.Name {
				r.tools[i] = tool
			}
		}
	}
	r.handlers[tool.Name] = handler
}

func (r *Registry) Tools() []llm.Tool {
	return r.tools
}

func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

func (r *Registry) Execute(ctx context.Context, name, args string) (string, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, args)
}

// Subset returns a registry holding only the named tools that exist here, in
// the order given.
func (r *Registry) Subset(names ...string) *Registry {
	sub := NewRegistry()
	for _, name := range names {
		handler, ok := r.handlers[name]
		if !ok {
			continue
		}
		for _, tool := range r.tools {
			if tool.Name == name {
				sub.Register(tool, handler)
				break
			}
		}
	}
	return sub
}

type recorderKey struct{}

func WithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

func recordFile(ctx context.Context, filename, summary string) {
	rec, ok := ctx.Value(recorderKey{}).(*Recorder)
	if !ok || rec == nil {
		return
	}
	rec.mu.Lock()
	rec.ops = append(rec.ops, FileOperation{Filename: filename, Summary: summary})
	rec.mu.Unlock()
}

// Operations returns the recorded file operations in order.
func (r *Recorder) Operations() []FileOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FileOperation, len(r.ops))
	copy(out, r.ops)
	return out
}
