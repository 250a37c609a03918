package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestSessionID(t *testing.T) {
	valid := []string{"abc", "session_1", "telegram_12345", "A-b_C-9"}
	for _, id := range valid {
		if err := SessionID(id); err != nil {
			t.Errorf("expected %q to be valid, got %v", id, err)
		}
	}

	rejected := []string{"", "has space", "colon:id", "../etc", strings.Repeat("a", 101)}
	for _, id := range rejected {
		err := SessionID(id)
		if err == nil {
			t.Errorf("expected %q to be rejected", id)
			continue
		}

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("expected ValidationError for %q, got %T", id, err)
		}
	}
}

func TestSessionIDMaxLength(t *testing.T) {
	if err := SessionID(strings.Repeat("a", 100)); err != nil {
		t.Errorf("expected 100 characters to be allowed, got %v", err)
	}
}

func TestInputStripsControlCharacters(t *testing.T) {
	got, err := Input("  hello\x00 wor\x07ld\n ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "hello world" {
		t.Errorf("expected 'hello world', got %q", got)
	}
}

func TestInputKeepsInnerWhitespace(t *testing.T) {
	got, err := Input("line one\nline\ttwo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "line one\nline\ttwo" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestInputTooLong(t *testing.T) {
	_, err := Input(strings.Repeat("x", MaxInputLength+1))
	if err == nil {
		t.Fatal("expected error for oversized input")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "input" {
		t.Errorf("expected input ValidationError, got %v", err)
	}
}

func TestFilePath(t *testing.T) {
	if err := FilePath("src/main.go"); err != nil {
		t.Errorf("expected valid path, got %v", err)
	}

	for _, p := range []string{"", "   ", "../secrets", "a/../../b"} {
		if err := FilePath(p); err == nil {
			t.Errorf("expected %q to be rejected", p)
		}
	}
}

func TestAgentName(t *testing.T) {
	if err := AgentName("qa_checker"); err != nil {
		t.Errorf("expected valid, got %v", err)
	}

	for _, n := range []string{"", "Coder", "1coder", "docs-agent"} {
		if err := AgentName(n); err == nil {
			t.Errorf("expected %q to be rejected", n)
		}
	}
}
