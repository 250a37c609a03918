// Package llmtest provides a scripted LLM for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/bowerhall/conductor/internal/llm"
)

// Fake replays Responses in order. Once they run out it returns Err, or a
// fixed "ok" response when Err is nil. Every request is kept in Requests.
type Fake struct {
	mu        sync.Mutex
	Responses []*llm.ChatResponse
	Err       error
	Requests  []llm.Request
	// Handler, when set, takes precedence over Responses.
	Handler func(req llm.Request) (*llm.ChatResponse, error)
}

var ErrScriptExhausted = errors.New("llmtest: no scripted response left")

// Text builds a plain text response with the given usage split.
func Text(content string, in, out int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Content: content,
		Usage:   &llm.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}

func (f *Fake) Chat(ctx context.Context, req llm.Request) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, &llm.ProviderError{Provider: "fake", Err: err}
	}

	if f.Handler != nil {
		return f.Handler(req)
	}

	if len(f.Responses) > 0 {
		resp := f.Responses[0]
		f.Responses = f.Responses[1:]
		return resp, nil
	}

	if f.Err != nil {
		return nil, f.Err
	}

	return Text("ok", 1, 1), nil
}

func (f *Fake) Provider() string { return "fake" }
func (f *Fake) Model() string    { return "fake-model" }

// Calls returns how many requests were made so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}
