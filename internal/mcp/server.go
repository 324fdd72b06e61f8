package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/datasource"
	"dashboard-go/internal/state"
	"dashboard-go/internal/table"
)

// Server exposes the leads dashboard as MCP tools so agents can load a
// dataset, narrow it down and read the aggregates.
type Server struct {
	mcp *server.MCPServer

	engine   *dashboard.Engine
	sessions *state.Store
	sources  *datasource.Registry
	remote   *datasource.Cache

	// Session used when a tool call omits sessionId
	mu       sync.Mutex
	activeID string
}

// Deps holds what the server needs from the process.
type Deps struct {
	Engine   *dashboard.Engine
	Sessions *state.Store
	Sources  *datasource.Registry
	Remote   *datasource.Cache // optional
}

// New creates and configures the MCP server with all tools.
func New(deps Deps) *Server {
	s := &Server{
		engine:   deps.Engine,
		sessions: deps.Sessions,
		sources:  deps.Sources,
		remote:   deps.Remote,
	}
	if s.engine == nil {
		s.engine = dashboard.NewEngine()
	}
	if s.sessions == nil {
		s.sessions = state.NewStore()
	}
	if s.sources == nil {
		s.sources = datasource.NewRegistry()
	}

	s.mcp = server.NewMCPServer(
		"leads-dashboard-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerLoadTools()
	s.registerFilterTools()
	s.registerAggregateTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// problemResult reports err to the agent as a structured Problem.
func problemResult(err error) (*mcp.CallToolResult, error) {
	data, merr := json.Marshal(dashboard.Describe(err))
	if merr != nil {
		return nil, fmt.Errorf("marshal problem: %w", merr)
	}
	return mcp.NewToolResultError(string(data)), nil
}

// resolveSession returns the session named by sessionId or the active one.
func (s *Server) resolveSession(req mcp.CallToolRequest) (state.Session, error) {
	id := req.GetString("sessionId", "")
	if id == "" {
		s.mu.Lock()
		id = s.activeID
		s.mu.Unlock()
	}
	if id == "" {
		return state.Session{}, dashboard.Invalid("sessionId", "no sessionId provided and no dataset loaded (use load_file first)")
	}
	sess, err := s.sessions.Get(id)
	if errors.Is(err, state.ErrNotFound) {
		return state.Session{}, dashboard.Problem{
			Code:    dashboard.CodeNotFound,
			Message: fmt.Sprintf("session %q not found", id),
			Fields:  []string{"sessionId"},
		}
	}
	return sess, err
}

// start loads t into a new session and makes it the active one.
func (s *Server) start(source string, t *table.Table) (*mcp.CallToolResult, error) {
	ds, err := s.engine.Load(t)
	if err != nil {
		return problemResult(err)
	}
	sess := s.sessions.Create(source, ds)
	s.mu.Lock()
	s.activeID = sess.ID
	s.mu.Unlock()
	log.Printf("[MCP] session %s created from %s", sess.ID, source)

	_, warnings := ds.Filters()
	problems := make([]dashboard.Problem, 0, len(warnings))
	for _, w := range warnings {
		problems = append(problems, dashboard.Describe(w))
	}
	return jsonResult(map[string]any{
		"sessionId": sess.ID,
		"source":    source,
		"rows":      ds.Table().Len(),
		"mapping":   ds.Mapping(),
		"filters":   sess.Filters.Controls(),
		"warnings":  problems,
	})
}
