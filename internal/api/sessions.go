package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"dashboard-go/internal/aggregate"
	"dashboard-go/internal/analysis"
	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/export"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/models"
	"dashboard-go/internal/render"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/state"
	"dashboard-go/internal/table"
)

const (
	DefaultRowLimit = 100
	MaxRowLimit     = 5000
)

// ============================================================================
// Filters
// ============================================================================

func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, filterResponse(sess))
}

// UpdateFilters applies selections and date ranges on top of the current
// filter set. Nothing is stored if any part of the request is invalid.
func (h *Handler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, dashboard.Invalid("body", "invalid JSON: %v", err))
		return
	}

	set := sess.Filters
	if req.Reset {
		set, _ = sess.Dataset.Filters()
	}

	var err error
	for _, field := range sortedKeys(req.Selections) {
		if set, err = set.Select(field, req.Selections[field]); err != nil {
			writeError(w, err)
			return
		}
	}
	for _, field := range sortedKeys(req.Ranges) {
		rng := req.Ranges[field]
		start, perr := time.Parse(filter.DayLayout, rng.Start)
		if perr != nil {
			writeProblem(w, dashboard.Invalid(field, "start must be YYYY-MM-DD, got %q", rng.Start))
			return
		}
		end, perr := time.Parse(filter.DayLayout, rng.End)
		if perr != nil {
			writeProblem(w, dashboard.Invalid(field, "end must be YYYY-MM-DD, got %q", rng.End))
			return
		}
		if set, err = set.Range(field, start, end); err != nil {
			writeError(w, err)
			return
		}
	}

	sess, err = h.Sessions.SetFilters(sess.ID, set)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filterResponse(sess))
}

func filterResponse(s state.Session) models.FilterResponse {
	return models.FilterResponse{
		Rows:    s.Dataset.Apply(s.Filters).Len(),
		Filters: s.Filters.Controls(),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ============================================================================
// Aggregates
// ============================================================================

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	opts, err := reportOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Dataset.Evaluate(sess.Filters, opts))
}

func reportOptions(r *http.Request) (dashboard.Options, error) {
	opts := dashboard.DefaultOptions
	var err error
	if opts.TopN, err = intParam(r, "top_n", opts.TopN); err != nil {
		return opts, err
	}
	if opts.Bins, err = intParam(r, "bins", opts.Bins); err != nil {
		return opts, err
	}
	return opts, nil
}

func (h *Handler) CountBy(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	field := r.URL.Query().Get("field")
	if !sess.Dataset.Has(field) {
		writeProblem(w, unknownField(field))
		return
	}
	writeJSON(w, http.StatusOK, aggregate.CountBy(sess.Dataset.Apply(sess.Filters), field))
}

func (h *Handler) CountByPair(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" && b == "" {
		a, b = schema.Responsible, schema.Stage
	}
	for _, f := range []string{a, b} {
		if !sess.Dataset.Has(f) {
			writeProblem(w, unknownField(f))
			return
		}
	}
	writeJSON(w, http.StatusOK, aggregate.CountByPair(sess.Dataset.Apply(sess.Filters), a, b))
}

func (h *Handler) TopN(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	field := r.URL.Query().Get("field")
	if field == "" {
		field = schema.Company
	}
	if !sess.Dataset.Has(field) {
		writeProblem(w, unknownField(field))
		return
	}
	n, err := intParam(r, "n", dashboard.DefaultOptions.TopN)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := aggregate.TopN(sess.Dataset.Apply(sess.Filters), field, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DailySeries(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	series := aggregate.DailySeries(sess.Dataset.Apply(sess.Filters), schema.CreatedAt)
	if series == nil {
		series = []aggregate.DayCount{}
	}
	writeJSON(w, http.StatusOK, series)
}

type elapsedResponse struct {
	Summary   aggregate.Summary `json:"summary"`
	Histogram []aggregate.Bin   `json:"histogram"`
}

func (h *Handler) Elapsed(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	for _, f := range []string{schema.CreatedAt, schema.ModifiedAt} {
		if !sess.Dataset.Has(f) {
			writeProblem(w, unknownField(f))
			return
		}
	}
	bins, err := intParam(r, "bins", dashboard.DefaultOptions.Bins)
	if err != nil {
		writeError(w, err)
		return
	}

	e := aggregate.ElapsedDays(sess.Dataset.Apply(sess.Filters), schema.CreatedAt, schema.ModifiedAt)
	hist, err := aggregate.Histogram(e.Floats(), bins)
	if err != nil {
		writeError(w, err)
		return
	}
	if hist == nil {
		hist = []aggregate.Bin{}
	}
	writeJSON(w, http.StatusOK, elapsedResponse{Summary: e.Summary(), Histogram: hist})
}

func unknownField(field string) dashboard.Problem {
	return dashboard.Invalid("field", "unknown field %q", field)
}

// ============================================================================
// Rows and column analysis
// ============================================================================

func (h *Handler) GetRows(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(r, "limit", DefaultRowLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if offset < 0 || limit <= 0 || limit > MaxRowLimit {
		writeProblem(w, dashboard.Invalid("limit", "offset must be >= 0 and limit in 1..%d", MaxRowLimit))
		return
	}

	view := sess.Dataset.Apply(sess.Filters)
	resp := models.RowsResponse{
		Total:   view.Len(),
		Columns: view.Columns(),
		Data:    []map[string]any{},
	}
	for i := offset; i < view.Len() && i < offset+limit; i++ {
		resp.Data = append(resp.Data, view.Record(i).Map())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetColumnTypes(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Analyzer.AnalyzeTable(sess.Dataset.Table()))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.ProfileTable(sess.Dataset.Apply(sess.Filters)))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	column := r.URL.Query().Get("column")
	view := sess.Dataset.Apply(sess.Filters)
	if !view.Has(column) {
		writeProblem(w, dashboard.Invalid("column", "unknown column %q", column))
		return
	}
	stats, err := analysis.CalculateStats(view, column)
	if err != nil {
		writeProblem(w, dashboard.Invalid("column", "%v", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ============================================================================
// Downloads
// ============================================================================

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "leads.csv", export.ContentTypeCSV, export.WriteCSV)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "leads.xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, name, contentType string, write func(io.Writer, *table.Table) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, sess.Dataset.Apply(sess.Filters)); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("[API] write %s: %v", name, err)
	}
}

func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	opts, err := reportOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := chi.URLParam(r, "chart")
	report := sess.Dataset.Evaluate(sess.Filters, opts)

	var buf bytes.Buffer
	err = render.Chart(&buf, name, report)
	switch {
	case errors.Is(err, render.ErrUnknownChart):
		writeProblem(w, dashboard.Problem{Code: CodeNotFound, Message: err.Error()})
		return
	case errors.Is(err, render.ErrNoData):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
