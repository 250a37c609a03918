package llm

import "context"

type Config struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
}

type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Request is one message-creation call. MaxTokens <= 0 means the provider default.
type Request struct {
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int
}

type ChatResponse struct {
	ID         string
	Model      string
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      *Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Tokens returns the total usage of a response, zero when unreported.
func (r *ChatResponse) Tokens() int {
	if r == nil || r.Usage == nil {
		return 0
	}
	return r.Usage.TotalTokens
}

// LLM is the provider capability. Every variant is chosen once by New and
// called polymorphically afterwards.
type LLM interface {
	Chat(ctx context.Context, req Request) (*ChatResponse, error)
	Provider() string
	Model() string
}
