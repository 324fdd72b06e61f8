package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/models"
)

const (
	// CodeNotFound marks requests for sessions or charts that do not exist.
	CodeNotFound = dashboard.CodeNotFound
	// CodeForbidden marks features switched off by configuration.
	CodeForbidden dashboard.Code = "forbidden"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

// writeError describes err as a Problem and writes it
func writeError(w http.ResponseWriter, err error) {
	writeProblem(w, dashboard.Describe(err))
}

func writeProblem(w http.ResponseWriter, p dashboard.Problem) {
	code := statusFor(p.Code)
	if code >= http.StatusInternalServerError {
		log.Printf("[API] internal error: %s", p.Message)
	}
	writeJSON(w, code, models.ErrorResponse{Error: p})
}

func statusFor(c dashboard.Code) int {
	switch c {
	case dashboard.CodeEmptyInput, dashboard.CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case dashboard.CodeSchemaResolution, dashboard.CodeDateParse:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// intParam reads an optional integer query parameter
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, dashboard.Invalid(name, "%s must be an integer, got %q", name, v)
	}
	return n, nil
}
