package models

import (
	"time"

	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
)

// SessionResponse is returned after a dataset is loaded into a new session
type SessionResponse struct {
	SessionID   string              `json:"session_id"`
	Source      string              `json:"source"`
	Rows        int                 `json:"rows"`
	Columns     int                 `json:"columns"`
	ColumnNames []string            `json:"column_names"`
	Mapping     schema.Mapping      `json:"mapping"`
	Filters     []filter.Control    `json:"filters"`
	Warnings    []dashboard.Problem `json:"warnings,omitempty"`
}

// SessionStatus describes a live session
type SessionStatus struct {
	SessionID  string           `json:"session_id"`
	Source     string           `json:"source"`
	Rows       int              `json:"rows"`
	Filtered   int              `json:"filtered"`
	Columns    int              `json:"columns"`
	LoadedAt   time.Time        `json:"loaded_at"`
	LastAccess time.Time        `json:"last_access"`
	Filters    []filter.Control `json:"filters"`
}

// DateRange is an inclusive day interval, "2006-01-02" on the wire
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FilterRequest for PUT /sessions/{id}/filters. Fields left out keep their
// current selection; Reset starts from the defaults.
type FilterRequest struct {
	Reset      bool                 `json:"reset,omitempty"`
	Selections map[string][]string  `json:"selections,omitempty"`
	Ranges     map[string]DateRange `json:"ranges,omitempty"`
}

// FilterResponse for the filter endpoints
type FilterResponse struct {
	Rows    int              `json:"rows"`
	Filters []filter.Control `json:"filters"`
}

// RowsResponse for GET /sessions/{id}/rows
type RowsResponse struct {
	Total   int              `json:"total"`
	Columns []string         `json:"columns"`
	Data    []map[string]any `json:"data"`
}

// SourceRequest for POST /sessions/source and /sources/tables
type SourceRequest struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// SourceTypesResponse for GET /sources
type SourceTypesResponse struct {
	Types []string `json:"types"`
}

// TablesResponse for POST /sources/tables
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// ErrorResponse wraps a Problem for non-2xx replies
type ErrorResponse struct {
	Error dashboard.Problem `json:"error"`
}

// DataAnalysisResult summarises the inferred shape of a table
type DataAnalysisResult struct {
	NumRows          int               `json:"rows"`
	NumColumns       int               `json:"columns"`
	ColumnNames      []string          `json:"column_names"`
	ColumnTypes      map[string]string `json:"column_types"`
	HasDates         bool              `json:"has_dates"`
	HasNumeric       bool              `json:"has_numeric"`
	HasText          bool              `json:"has_text"`
	PotentialIDs     []string          `json:"potential_ids"`
	PotentialDates   []string          `json:"potential_dates"`
	PotentialAmounts []string          `json:"potential_amounts"`
}
