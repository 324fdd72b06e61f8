package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"dashboard-go/internal/datasource"
)

func (s *Server) registerLoadTools() {
	s.mcp.AddTool(mcp.NewTool("load_file",
		mcp.WithDescription("Load a CRM leads export (CSV or XLSX) from disk into a new session. The new session becomes the active one."),
		mcp.WithString("path", mcp.Description("Path to the .csv or .xlsx file"), mcp.Required()),
	), s.handleLoadFile)

	s.mcp.AddTool(mcp.NewTool("load_source",
		mcp.WithDescription("Load leads from a configured source (file, http, postgres, mysql, sqlite, mongo) into a new session"),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description(`Source configuration as JSON, e.g. {"url":"https://example.com/leads.csv"} or {"host":"db","user":"crm","database":"crm","table":"leads"}`), mcp.Required()),
	), s.handleLoadSource)

	s.mcp.AddTool(mcp.NewTool("load_remote",
		mcp.WithDescription("Load the shared remote leads dataset configured for this server into a new session"),
	), s.handleLoadRemote)

	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List the available source types"),
	), s.handleListSources)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List loaded sessions with their row counts"),
	), s.handleListSessions)

	s.mcp.AddTool(mcp.NewTool("close_session",
		mcp.WithDescription("Drop a session and its dataset"),
		mcp.WithString("sessionId", mcp.Description("Session ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleCloseSession)
}

func boolPtr(v bool) *bool { return &v }

func (s *Server) handleLoadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	src := &datasource.File{Path: path}
	t, err := src.Load(ctx)
	if err != nil {
		return problemResult(err)
	}
	return s.start(src.Name(), t)
}

func (s *Server) handleLoadSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sourceType, _ := args["sourceType"].(string)

	// sourceConfigJSON may come as a string or as a raw JSON object
	var cfg datasource.Config
	switch v := args["sourceConfigJSON"].(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return nil, fmt.Errorf("parse sourceConfigJSON: %w", err)
		}
	case map[string]any:
		cfg = v
	}

	src, err := s.sources.Open(sourceType, cfg)
	if err != nil {
		return nil, err
	}
	t, err := src.Load(ctx)
	if err != nil {
		return problemResult(err)
	}
	return s.start(src.Name(), t)
}

func (s *Server) handleLoadRemote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("no remote dataset configured (set DATASET_URL or DATASET_PATH)")
	}
	t, err := s.remote.Get(ctx)
	if err != nil {
		return problemResult(err)
	}
	return s.start(s.remote.Source().Name(), t)
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sources.Types())
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type item struct {
		SessionID string `json:"sessionId"`
		Source    string `json:"source"`
		Rows      int    `json:"rows"`
		Filtered  int    `json:"filtered"`
		Active    bool   `json:"active"`
	}
	s.mu.Lock()
	active := s.activeID
	s.mu.Unlock()

	items := []item{}
	for _, sess := range s.sessions.List() {
		items = append(items, item{
			SessionID: sess.ID,
			Source:    sess.Source,
			Rows:      sess.Dataset.Table().Len(),
			Filtered:  sess.Dataset.Apply(sess.Filters).Len(),
			Active:    sess.ID == active,
		})
	}
	return jsonResult(items)
}

func (s *Server) handleCloseSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	s.sessions.Delete(sess.ID)

	s.mu.Lock()
	if s.activeID == sess.ID {
		s.activeID = ""
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("session %s closed", sess.ID)), nil
}
