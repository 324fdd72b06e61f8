package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"dashboard-go/internal/aggregate"
	"dashboard-go/internal/analysis"
	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/datasource"
	"dashboard-go/internal/export"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
)

const sessionDescription = "Session ID (optional, defaults to the last loaded dataset)"

func (s *Server) registerFilterTools() {
	s.mcp.AddTool(mcp.NewTool("get_filters",
		mcp.WithDescription("Show the filter controls of a session: options and selection for stage, source and manager, bounds and selected range for the creation date"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
	), s.handleGetFilters)

	s.mcp.AddTool(mcp.NewTool("set_filters",
		mcp.WithDescription("Narrow the dataset. Unmentioned fields keep their current selection. All parts are validated before anything is stored."),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
		mcp.WithString("selectionsJSON", mcp.Description(`JSON object mapping a field to the allowed values, e.g. {"Stage":["New","Won"]}. An empty list matches nothing.`)),
		mcp.WithString("rangesJSON", mcp.Description(`JSON object mapping a date field to an inclusive day range, e.g. {"Date of creation":{"start":"2024-01-01","end":"2024-01-31"}}`)),
		mcp.WithBoolean("reset", mcp.Description("Start from the default filters (everything selected)")),
	), s.handleSetFilters)
}

func (s *Server) registerAggregateTools() {
	s.mcp.AddTool(mcp.NewTool("dashboard",
		mcp.WithDescription("Evaluate the full dashboard for the current filters: KPIs, counts by stage, source and manager, top companies, leads per day and days from creation to last change"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
		mcp.WithNumber("topN", mcp.Description("Number of companies to rank (default 10)")),
		mcp.WithNumber("bins", mcp.Description("Histogram bins for elapsed days (default 10)")),
	), s.handleDashboard)

	s.mcp.AddTool(mcp.NewTool("count_by",
		mcp.WithDescription("Count filtered leads per value of a field, most frequent first"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
		mcp.WithString("field", mcp.Description("Logical field: Stage, Source, Responsible, Company name"), mcp.Required()),
	), s.handleCountBy)

	s.mcp.AddTool(mcp.NewTool("count_by_pair",
		mcp.WithDescription("Count filtered leads per combination of two fields, e.g. stages per manager"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
		mcp.WithString("a", mcp.Description("First field (default Responsible)")),
		mcp.WithString("b", mcp.Description("Second field (default Stage)")),
	), s.handleCountByPair)

	s.mcp.AddTool(mcp.NewTool("top_n",
		mcp.WithDescription("The n most frequent values of a field"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
		mcp.WithString("field", mcp.Description("Logical field (default Company name)")),
		mcp.WithNumber("n", mcp.Description("How many values to return (default 10)")),
	), s.handleTopN)

	s.mcp.AddTool(mcp.NewTool("daily_series",
		mcp.WithDescription("Leads created per calendar day, with empty days filled in as zero"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
	), s.handleDailySeries)

	s.mcp.AddTool(mcp.NewTool("profile",
		mcp.WithDescription("Column types and data quality metrics of the filtered dataset"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
	), s.handleProfile)

	s.mcp.AddTool(mcp.NewTool("export",
		mcp.WithDescription("Write the filtered rows to a CSV or XLSX file"),
		mcp.WithString("sessionId", mcp.Description(sessionDescription)),
		mcp.WithString("path", mcp.Description("Destination file; .xlsx writes a workbook, anything else CSV"), mcp.Required()),
	), s.handleExport)
}

// ── Filters ────────────────────────────────────────────────

func (s *Server) handleGetFilters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	return jsonResult(map[string]any{
		"rows":    sess.Dataset.Apply(sess.Filters).Len(),
		"filters": sess.Filters.Controls(),
	})
}

type dayRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handleSetFilters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	args := req.GetArguments()

	var selections map[string][]string
	if err := decodeArg(args["selectionsJSON"], &selections); err != nil {
		return nil, fmt.Errorf("parse selectionsJSON: %w", err)
	}
	var ranges map[string]dayRange
	if err := decodeArg(args["rangesJSON"], &ranges); err != nil {
		return nil, fmt.Errorf("parse rangesJSON: %w", err)
	}

	set := sess.Filters
	if req.GetBool("reset", false) {
		set, _ = sess.Dataset.Filters()
	}
	for _, field := range sortedKeys(selections) {
		if set, err = set.Select(field, selections[field]); err != nil {
			return problemResult(err)
		}
	}
	for _, field := range sortedKeys(ranges) {
		r := ranges[field]
		start, err := time.Parse(filter.DayLayout, r.Start)
		if err != nil {
			return problemResult(dashboard.Invalid(field, "start must be YYYY-MM-DD, got %q", r.Start))
		}
		end, err := time.Parse(filter.DayLayout, r.End)
		if err != nil {
			return problemResult(dashboard.Invalid(field, "end must be YYYY-MM-DD, got %q", r.End))
		}
		if set, err = set.Range(field, start, end); err != nil {
			return problemResult(err)
		}
	}

	if sess, err = s.sessions.SetFilters(sess.ID, set); err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{
		"rows":    sess.Dataset.Apply(sess.Filters).Len(),
		"filters": sess.Filters.Controls(),
	})
}

// decodeArg accepts a JSON string or an already decoded value.
func decodeArg(raw any, target any) error {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = b
	}
	return json.Unmarshal(data, target)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ── Aggregates ─────────────────────────────────────────────

func (s *Server) handleDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	opts := dashboard.Options{
		TopN: req.GetInt("topN", dashboard.DefaultOptions.TopN),
		Bins: req.GetInt("bins", dashboard.DefaultOptions.Bins),
	}
	return jsonResult(sess.Dataset.Evaluate(sess.Filters, opts))
}

func (s *Server) handleCountBy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	field := req.GetString("field", "")
	if !sess.Dataset.Has(field) {
		return problemResult(dashboard.Invalid("field", "unknown field %q", field))
	}
	return jsonResult(aggregate.CountBy(sess.Dataset.Apply(sess.Filters), field))
}

func (s *Server) handleCountByPair(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	a := req.GetString("a", schema.Responsible)
	b := req.GetString("b", schema.Stage)
	for _, f := range []string{a, b} {
		if !sess.Dataset.Has(f) {
			return problemResult(dashboard.Invalid("field", "unknown field %q", f))
		}
	}
	return jsonResult(aggregate.CountByPair(sess.Dataset.Apply(sess.Filters), a, b))
}

func (s *Server) handleTopN(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	field := req.GetString("field", schema.Company)
	if !sess.Dataset.Has(field) {
		return problemResult(dashboard.Invalid("field", "unknown field %q", field))
	}
	res, err := aggregate.TopN(sess.Dataset.Apply(sess.Filters), field, req.GetInt("n", dashboard.DefaultOptions.TopN))
	if err != nil {
		return problemResult(err)
	}
	return jsonResult(res)
}

func (s *Server) handleDailySeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	series := aggregate.DailySeries(sess.Dataset.Apply(sess.Filters), schema.CreatedAt)
	out := make([]map[string]any, len(series))
	for i, d := range series {
		out[i] = map[string]any{"day": d.Day.Format(filter.DayLayout), "count": d.Count}
	}
	return jsonResult(out)
}

func (s *Server) handleProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	view := sess.Dataset.Apply(sess.Filters)
	return jsonResult(map[string]any{
		"analysis": analysis.NewAnalyzer().AnalyzeTable(view),
		"columns":  analysis.ProfileTable(view),
	})
}

func (s *Server) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return problemResult(err)
	}
	path := req.GetString("path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	view := sess.Dataset.Apply(sess.Filters)
	write := export.WriteCSV
	if datasource.DetectFormat(path, "") == datasource.FormatXLSX {
		write = export.WriteXLSX
	}
	if err := write(f, view); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return textResult(fmt.Sprintf("wrote %d rows to %s", view.Len(), path)), nil
}
