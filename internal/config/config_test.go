package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectProviderClaude(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("CLAUDE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if provider := DetectProvider(); provider != "claude" {
		t.Errorf("expected claude, got %s", provider)
	}
}

func TestDetectProviderOpenRouter(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	if provider := DetectProvider(); provider != "openrouter" {
		t.Errorf("expected openrouter (priority over openai), got %s", provider)
	}
}

func TestDetectProviderFallbackOllama(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if provider := DetectProvider(); provider != "ollama" {
		t.Errorf("expected ollama fallback, got %s", provider)
	}
}

func TestEnvKeyForProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"claude", "ANTHROPIC_API_KEY"},
		{"openai", "OPENAI_API_KEY"},
		{"openrouter", "OPENROUTER_API_KEY"},
		{"ollama", ""},
		{"groq", "GROQ_API_KEY"},
	}

	for _, tt := range tests {
		got := EnvKeyForProvider(tt.provider)
		if got != tt.want {
			t.Errorf("EnvKeyForProvider(%s) = %s, want %s", tt.provider, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "MAX_CONTEXT_TOKENS",
		"SUMMARIZATION_THRESHOLD", "RECENT_TURNS_TO_KEEP", "SESSION_STORAGE",
		"SESSION_STORAGE_PATH", "ROUTES_FILE", "LLM_TIMEOUT_SECONDS",
		"TZ", "WORKSPACE_DIR", "TOOLS_ALLOWED_COMMANDS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.LLM.Provider != "claude" {
		t.Errorf("expected claude, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != DefaultModel {
		t.Errorf("expected default model, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout.Seconds() != 300 {
		t.Errorf("expected 300s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.Context.RecentTurnsToKeep != 3 {
		t.Errorf("expected 3 recent turns, got %d", cfg.Context.RecentTurnsToKeep)
	}
	if got := cfg.Context.SummarizationTokens(); got != 3200 {
		t.Errorf("expected threshold 3200, got %d", got)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Path != "sessions/" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Tools.Workspace != "." || len(cfg.Tools.AllowedCommands) != 0 || cfg.Tools.Timezone != "UTC" {
		t.Errorf("unexpected tools defaults: %+v", cfg.Tools)
	}
}

func TestLoadToolsConfig(t *testing.T) {
	t.Setenv("TOOLS_ALLOWED_COMMANDS", "go, git,,ls ")
	t.Setenv("TOOLS_COMMAND_TIMEOUT_SECONDS", "30")

	tc := loadToolsConfig()
	if len(tc.AllowedCommands) != 3 || tc.AllowedCommands[1] != "git" || tc.AllowedCommands[2] != "ls" {
		t.Errorf("allowed commands = %q", tc.AllowedCommands)
	}
	if tc.CommandTimeout.Seconds() != 30 {
		t.Errorf("timeout = %v", tc.CommandTimeout)
	}
}

func TestLoadMissingKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when OPENAI_API_KEY is missing")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := &Config{
		Context: ContextConfig{MaxContextTokens: 4000, SummarizationThreshold: 1.5, RecentTurnsToKeep: 3},
		Storage: StorageConfig{Backend: "file"},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected threshold > 1 to be rejected")
	}

	cfg.Context.SummarizationThreshold = 0.8
	cfg.Context.RecentTurnsToKeep = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero recent turns to be rejected")
	}
}

func TestLoadRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yml")
	content := `
intents:
  - intent: security_audit
    agents: [qa_checker]
  - intent: onboarding
    agents: [docs_agent, requirement_analyzer]
capabilities:
  devops: [kubernetes]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write routes: %v", err)
	}

	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("load routes: %v", err)
	}

	if len(routes.Intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(routes.Intents))
	}
	if routes.Intents[1].Intent != "onboarding" || len(routes.Intents[1].Agents) != 2 {
		t.Errorf("unexpected second route: %+v", routes.Intents[1])
	}
	if caps := routes.Capabilities["devops"]; len(caps) != 1 || caps[0] != "kubernetes" {
		t.Errorf("unexpected capabilities: %v", routes.Capabilities)
	}
}

func TestParseRoutesRejectsEmptyAgents(t *testing.T) {
	_, err := ParseRoutes([]byte("intents:\n  - intent: x\n"))
	if err == nil {
		t.Fatal("expected error for route without agents")
	}
}
