package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bowerhall/conductor/internal/agent"
	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/contextmgr"
	"github.com/bowerhall/conductor/internal/intent"
	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/llm/llmtest"
	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/orchestrator"
	"github.com/bowerhall/conductor/internal/registry"
	"github.com/bowerhall/conductor/internal/retrieval"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/sqlitedb"
	"github.com/bowerhall/conductor/internal/storage"
)

type docsAgent struct{}

func (docsAgent) Name() string { return "docs_agent" }

func (docsAgent) Execute(ctx context.Context, task agent.Task, sc *session.Context) agent.Response {
	return agent.Response{TaskID: task.TaskID, Agent: "docs_agent", Status: agent.StatusSuccess, Result: "README updated", TokensUsed: 7}
}

func newTestServer(t *testing.T, withMemory bool) *Server {
	t.Helper()

	cls := intent.New(&llmtest.Fake{Handler: func(llm.Request) (*llm.ChatResponse, error) {
		return llmtest.Text(`{"intent": "documentation", "confidence": 0.8, "agents": ["docs_agent"]}`, 1, 1), nil
	}})

	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	contexts := contextmgr.New(config.ContextConfig{MaxContextTokens: 4000, SummarizationThreshold: 0.8, RecentTurnsToKeep: 3}, &llmtest.Fake{}, store)

	reg := registry.New()
	reg.Register(docsAgent{}, []string{"documentation", "readme"})

	orch := orchestrator.New(cls, reg, contexts)
	if withMemory {
		db, err := sqlitedb.Open(sqlitedb.Memory)
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		ms, err := memory.New(db)
		if err != nil {
			t.Fatalf("memory: %v", err)
		}
		orch.SetMemory(retrieval.NewManager(ms, nil, retrieval.Options{}))
	}

	return New(orch, "test")
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("expected text content")
	}
	return tc.Text
}

func TestToolRegistration(t *testing.T) {
	if n := len(newTestServer(t, false).MCPServer().ListTools()); n != 4 {
		t.Errorf("expected 4 tools without memory, got %d", n)
	}
	if n := len(newTestServer(t, true).MCPServer().ListTools()); n != 6 {
		t.Errorf("expected 6 tools with memory, got %d", n)
	}
}

func TestProcessRequestTool(t *testing.T) {
	s := newTestServer(t, true)

	res := call(t, s, "process_request", map[string]any{"query": "update the readme", "session_id": "mcp_1"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", text(t, res))
	}
	got := text(t, res)
	if !strings.HasPrefix(got, "README updated") || !strings.Contains(got, "session: mcp_1") {
		t.Errorf("unexpected reply %q", got)
	}

	ctxRes := call(t, s, "session_context", map[string]any{"session_id": "mcp_1"})
	if ctxRes.IsError || !strings.Contains(text(t, ctxRes), "update the readme") {
		t.Errorf("context missing turn: %s", text(t, ctxRes))
	}

	search := call(t, s, "search_memory", map[string]any{"query": "readme", "mode": "keyword"})
	if !strings.Contains(text(t, search), "Found") {
		t.Errorf("expected search hit, got %s", text(t, search))
	}

	if res := call(t, s, "process_request", map[string]any{}); !res.IsError {
		t.Error("expected error without query")
	}
}

func TestListAgentsAndClear(t *testing.T) {
	s := newTestServer(t, false)

	if got := text(t, call(t, s, "list_agents", nil)); got != "- docs_agent: documentation, readme\n" {
		t.Errorf("list_agents = %q", got)
	}

	call(t, s, "process_request", map[string]any{"query": "docs", "session_id": "mcp_2"})
	if res := call(t, s, "clear_session", map[string]any{"session_id": "mcp_2"}); res.IsError {
		t.Fatalf("clear: %s", text(t, res))
	}
	if res := call(t, s, "session_context", map[string]any{"session_id": "mcp_2"}); !res.IsError {
		t.Error("expected missing session after clear")
	}
}
