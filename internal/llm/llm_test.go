package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewKnownProviders(t *testing.T) {
	for _, provider := range []string{"claude", "openai", "ollama", "openrouter", "groq"} {
		model, err := New(Config{Provider: provider, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%s): %v", provider, err)
		}
		if model.Provider() != provider {
			t.Errorf("expected provider %s, got %s", provider, model.Provider())
		}
		if model.Model() == "" {
			t.Errorf("expected default model for %s", provider)
		}
	}
}

func TestEveryKnownProviderHasDefaultModel(t *testing.T) {
	for _, provider := range KnownProviders() {
		model, err := New(Config{Provider: provider, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%s): %v", provider, err)
		}
		if model.Model() == "" {
			t.Errorf("%s has no default model", provider)
		}
	}

	model, _ := New(Config{Provider: "deepseek", APIKey: "k", Model: "deepseek-reasoner"})
	if model.Model() != "deepseek-reasoner" {
		t.Errorf("configured model should win, got %s", model.Model())
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if IsKnownProvider("nope") {
		t.Error("nope should not be known")
	}
}

func TestOpenAICompatibleChat(t *testing.T) {
	var got openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{
			"id": "resp-1",
			"model": "m",
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\":\"a.go\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	model := newOpenAICompatible("openai", "secret", srv.URL, "m", 1)
	resp, err := model.Chat(context.Background(), Request{
		System:    "be brief",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		Tools:     []Tool{{Name: "read_file", Description: "read", Parameters: map[string]any{"type": "object"}}},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("expected system message first, got %+v", got.Messages)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "read_file" {
		t.Errorf("tools not forwarded: %+v", got.Tools)
	}
	if got.MaxTokens != 100 {
		t.Errorf("expected max_tokens 100, got %d", got.MaxTokens)
	}

	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "read_file" {
		t.Fatalf("expected one tool call, got %+v", resp.ToolCalls)
	}
	if resp.Tokens() != 15 {
		t.Errorf("expected 15 tokens, got %d", resp.Tokens())
	}
}

func TestOpenAICompatibleErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	model := newOpenAICompatible("openrouter", "bad", srv.URL, "m", 3)
	_, err := model.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pErr.StatusCode != http.StatusUnauthorized || pErr.Provider != "openrouter" {
		t.Errorf("unexpected error fields: %+v", pErr)
	}
}

type slowLLM struct{}

func (slowLLM) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (slowLLM) Provider() string { return "slow" }
func (slowLLM) Model() string    { return "slow-1" }

func TestWithTimeout(t *testing.T) {
	model := WithTimeout(slowLLM{}, 20*time.Millisecond)

	_, err := model.Chat(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !IsProviderError(err) {
		t.Error("expected timeout to surface as ProviderError")
	}
	if model.Model() != "slow-1" {
		t.Errorf("decorator should keep model name, got %s", model.Model())
	}
}

func TestSanitizeToolID(t *testing.T) {
	if got := sanitizeToolID("call:1.abc"); got != "call_1_abc" {
		t.Errorf("unexpected sanitized id %s", got)
	}
}
