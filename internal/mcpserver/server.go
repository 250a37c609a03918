// Package mcpserver exposes the orchestrator as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bowerhall/conductor/internal/orchestrator"
)

const Name = "conductor"

const instructions = `conductor routes software engineering requests to specialized agents
(coder, test_writer, requirement_analyzer, qa_checker, docs_agent, devops) and keeps per-session
conversation context. Use process_request with a stable session_id so follow-ups see earlier turns.
Use search_memory to look up past work before starting on something similar.`

type Server struct {
	orch *orchestrator.Orchestrator
	mcp  *server.MCPServer
}

func New(orch *orchestrator.Orchestrator, version string) *Server {
	s := &Server{orch: orch}

	s.mcp = server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.mcp.AddTool(processRequestTool(), s.processRequest)
	s.mcp.AddTool(listAgentsTool(), s.listAgents)
	s.mcp.AddTool(sessionContextTool(), s.sessionContext)
	s.mcp.AddTool(clearSessionTool(), s.clearSession)

	if orch.Memory() != nil {
		s.mcp.AddTool(searchMemoryTool(), s.searchMemory)
		s.mcp.AddTool(memoryStatsTool(), s.memoryStats)
	}

	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func processRequestTool() mcp.Tool {
	return mcp.NewTool("process_request",
		mcp.WithDescription("Classify a request, run the matching agents in order and return their combined answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The request in natural language")),
		mcp.WithString("session_id", mcp.Description("Session to continue. Omit to start a new one.")),
	)
}

func (s *Server) processRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	res, err := s.orch.Handle(ctx, query, req.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("%s\n\n[session: %s | intent: %s | tokens: %d]",
		res.Response, res.SessionID, res.Classification.Intent, res.TokensUsed)
	return mcp.NewToolResultText(text), nil
}

func listAgentsTool() mcp.Tool {
	return mcp.NewTool("list_agents",
		mcp.WithDescription("List registered agents and their capability tags."),
	)
}

func (s *Server) listAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agents := s.orch.ListAgents()

	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, strings.Join(agents[name], ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func sessionContextTool() mcp.Tool {
	return mcp.NewTool("session_context",
		mcp.WithDescription("Show the stored conversation context of a session."),
		mcp.WithString("session_id", mcp.Required()),
	)
}

func (s *Server) sessionContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c := s.orch.Context(ctx, req.GetString("session_id", ""))
	if c == nil {
		return mcp.NewToolResultError("session not found"), nil
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func clearSessionTool() mcp.Tool {
	return mcp.NewTool("clear_session",
		mcp.WithDescription("Forget a session's conversation context."),
		mcp.WithString("session_id", mcp.Required()),
	)
}

func (s *Server) clearSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if err := s.orch.ClearSession(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Cleared session " + id), nil
}

func searchMemoryTool() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Search past observations by keyword, meaning, or both."),
		mcp.WithString("query", mcp.Required()),
		mcp.WithString("mode", mcp.Description("keyword, semantic or hybrid (default)")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 10)")),
	)
}

func (s *Server) searchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	results, err := s.orch.Memory().Search(ctx, query, intArg(req, "limit", 10), req.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No matching observations."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d observations:\n\n", len(results))
	for i, r := range results {
		text := r.Summary
		if text == "" {
			text = r.Content
		}
		fmt.Fprintf(&b, "[%d] %s (%s, %s, score %.2f)\n    %s\n\n", i+1, r.DocID, r.Type, r.Source, r.Score, text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func memoryStatsTool() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription("Counts of sessions, observations and indexed vectors."),
	)
}

func (s *Server) memoryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.orch.Memory().Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	if v, ok := req.GetArguments()[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}
