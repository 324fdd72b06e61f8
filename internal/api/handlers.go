package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"dashboard-go/internal/analysis"
	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/datasource"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/models"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/state"
	"dashboard-go/internal/table"
)

const (
	MaxFileSize   = 100 * 1024 * 1024 // 100MB
	SourceTimeout = 60 * time.Second
)

type Handler struct {
	Engine         *dashboard.Engine
	Sessions       *state.Store
	Sources        *datasource.Registry
	Remote         *datasource.Cache // nil when no shared dataset is configured
	Analyzer       *analysis.Analyzer
	MaxUploadBytes int64
	// SourcesEnabled turns on /sessions/source and /sources/tables
	SourcesEnabled bool
}

func NewHandler(engine *dashboard.Engine, sessions *state.Store, sources *datasource.Registry, remote *datasource.Cache) *Handler {
	return &Handler{
		Engine:         engine,
		Sessions:       sessions,
		Sources:        sources,
		Remote:         remote,
		Analyzer:       analysis.NewAnalyzer(),
		MaxUploadBytes: MaxFileSize,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	// Loading
	r.Post("/upload", h.Upload)
	r.Post("/sessions/remote", h.LoadRemote)
	r.Post("/sessions/source", h.LoadSource)
	r.Get("/sources", h.ListSourceTypes)
	r.Post("/sources/tables", h.ListTables)

	r.Get("/sessions", h.ListSessions)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)

		r.Get("/filters", h.GetFilters)
		r.Put("/filters", h.UpdateFilters)

		r.Get("/dashboard", h.GetDashboard)
		r.Get("/count", h.CountBy)
		r.Get("/pairs", h.CountByPair)
		r.Get("/top", h.TopN)
		r.Get("/daily", h.DailySeries)
		r.Get("/elapsed", h.Elapsed)

		r.Get("/rows", h.GetRows)
		r.Get("/column-types", h.GetColumnTypes)
		r.Get("/profile", h.GetProfile)
		r.Get("/stats", h.GetStats)

		r.Get("/export.csv", h.ExportCSV)
		r.Get("/export.xlsx", h.ExportXLSX)
		r.Get("/charts/{chart}.png", h.GetChart)
	})
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.Sessions.Len(),
	})
}

// ============================================================================
// Loading datasets into sessions
// ============================================================================

// Upload accepts a multipart CSV or XLSX file under the "file" field
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		writeProblem(w, dashboard.Invalid("file", "upload rejected: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, dashboard.Invalid("file", "no file uploaded"))
		return
	}
	defer file.Close()

	format := datasource.DetectFormat(header.Filename, header.Header.Get("Content-Type"))
	t, err := datasource.Decode(file, format)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("[API] upload %s (%s): %d rows, %d columns", header.Filename, format, t.Len(), t.Width())
	h.startSession(w, r, "upload:"+filepath.Base(header.Filename), t)
}

// LoadRemote opens a session on the configured shared dataset
func (h *Handler) LoadRemote(w http.ResponseWriter, r *http.Request) {
	if h.Remote == nil {
		writeProblem(w, dashboard.Invalid("source", "no remote dataset configured"))
		return
	}
	t, err := h.Remote.Get(r.Context())
	if err != nil {
		log.Printf("[API] remote dataset failed: %v", err)
		writeError(w, err)
		return
	}
	h.startSession(w, r, h.Remote.Source().Name(), t)
}

// LoadSource opens a session on an ad-hoc source described in the body
func (h *Handler) LoadSource(w http.ResponseWriter, r *http.Request) {
	src, ok := h.openSource(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), SourceTimeout)
	defer cancel()

	t, err := src.Load(ctx)
	if err != nil {
		log.Printf("[API] %s: %v", src.Name(), err)
		writeError(w, err)
		return
	}
	h.startSession(w, r, src.Name(), t)
}

func (h *Handler) ListSourceTypes(w http.ResponseWriter, r *http.Request) {
	types := []string{}
	if h.SourcesEnabled {
		types = h.Sources.Types()
	}
	writeJSON(w, http.StatusOK, models.SourceTypesResponse{Types: types})
}

type tableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

// ListTables lists the tables reachable through a database source
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	src, ok := h.openSource(w, r)
	if !ok {
		return
	}
	lister, ok := src.(tableLister)
	if !ok {
		writeProblem(w, dashboard.Invalid("type", "source %s cannot list tables", src.Name()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), SourceTimeout)
	defer cancel()

	tables, err := lister.Tables(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TablesResponse{Tables: tables})
}

func (h *Handler) openSource(w http.ResponseWriter, r *http.Request) (datasource.Source, bool) {
	if !h.SourcesEnabled {
		writeProblem(w, dashboard.Problem{Code: CodeForbidden, Message: "ad-hoc sources are disabled (set SOURCES_ENABLED)"})
		return nil, false
	}
	var req models.SourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, dashboard.Invalid("body", "invalid JSON: %v", err))
		return nil, false
	}
	src, err := h.Sources.Open(req.Type, datasource.Config(req.Config))
	if err != nil {
		writeProblem(w, dashboard.Invalid("config", "%v", err))
		return nil, false
	}
	return src, true
}

// startSession runs the load pipeline on t and registers the result.
// The query parameters "mode" and "nulls" override the engine defaults.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, source string, t *table.Table) {
	engine, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ds, err := engine.Load(t)
	if err != nil {
		writeError(w, err)
		return
	}

	sess := h.Sessions.Create(source, ds)
	_, warnings := ds.Filters()
	log.Printf("[API] session %s created from %s", sess.ID, source)

	resp := models.SessionResponse{
		SessionID:   sess.ID,
		Source:      source,
		Rows:        ds.Table().Len(),
		Columns:     ds.Table().Width(),
		ColumnNames: ds.Table().Columns(),
		Mapping:     ds.Mapping(),
		Filters:     sess.Filters.Controls(),
	}
	for _, warn := range warnings {
		resp.Warnings = append(resp.Warnings, dashboard.Describe(warn))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) engineFor(r *http.Request) (*dashboard.Engine, error) {
	e := *h.Engine
	if v := r.URL.Query().Get("mode"); v != "" {
		mode, err := schema.ParseMode(v)
		if err != nil {
			return nil, dashboard.Invalid("mode", "%v", err)
		}
		e.Mode = mode
	}
	if v := r.URL.Query().Get("nulls"); v != "" {
		nulls, err := filter.ParseNullPolicy(v)
		if err != nil {
			return nil, dashboard.Invalid("nulls", "%v", err)
		}
		e.NullPolicy = nulls
	}
	return &e, nil
}

// ============================================================================
// Session lookup
// ============================================================================

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.Sessions.List()
	out := make([]models.SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, status(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, status(sess))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.Sessions.Delete(sess.ID)
	log.Printf("[API] session %s deleted", sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (state.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := h.Sessions.Get(id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			writeProblem(w, dashboard.Problem{Code: CodeNotFound, Message: fmt.Sprintf("session %q not found", id)})
			return state.Session{}, false
		}
		writeError(w, err)
		return state.Session{}, false
	}
	return sess, true
}

func status(s state.Session) models.SessionStatus {
	return models.SessionStatus{
		SessionID:  s.ID,
		Source:     s.Source,
		Rows:       s.Dataset.Table().Len(),
		Filtered:   s.Dataset.Apply(s.Filters).Len(),
		Columns:    s.Dataset.Table().Width(),
		LoadedAt:   s.Dataset.LoadedAt(),
		LastAccess: s.LastAccess,
		Filters:    s.Filters.Controls(),
	}
}
