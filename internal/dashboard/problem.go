package dashboard

import (
	"errors"
	"fmt"

	"dashboard-go/internal/aggregate"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

// Code classifies a Problem.
type Code string

const (
	CodeSchemaResolution Code = "schema_resolution"
	CodeEmptyInput       Code = "empty_input"
	CodeInvalidArgument  Code = "invalid_argument"
	CodeDateParse        Code = "date_parse"
	CodeNotFound         Code = "not_found"
	CodeInternal         Code = "internal"
)

// Problem is the structured form of every failure that reaches the caller.
type Problem struct {
	Code    Code     `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	// Suggestions maps a missing field to near-miss headers.
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}

func (p Problem) Error() string { return p.Message }

// Fatal reports whether the problem stops a load.
func (p Problem) Fatal() bool {
	return p.Code == CodeSchemaResolution || p.Code == CodeEmptyInput
}

// Describe converts an error from any stage of the pipeline into a Problem.
func Describe(err error) Problem {
	var (
		p    Problem
		rerr *schema.ResolutionError
		warn filter.DateParseWarning
		arg  *aggregate.InvalidArgumentError
	)
	switch {
	case errors.As(err, &p):
		return p
	case errors.As(err, &rerr):
		return Problem{
			Code:        CodeSchemaResolution,
			Message:     rerr.Error(),
			Fields:      append([]string(nil), rerr.Missing...),
			Suggestions: rerr.Suggestions,
		}
	case errors.Is(err, table.ErrEmptyInput):
		return Problem{Code: CodeEmptyInput, Message: err.Error() + "; upload a file or load the remote dataset"}
	case errors.As(err, &warn):
		return Problem{Code: CodeDateParse, Message: warn.Error(), Fields: []string{warn.Field}}
	case errors.As(err, &arg):
		return Problem{Code: CodeInvalidArgument, Message: arg.Error(), Fields: []string{arg.Param}}
	case errors.Is(err, aggregate.ErrInvalidArgument),
		errors.Is(err, filter.ErrUnknownField),
		errors.Is(err, filter.ErrInvalidRange),
		errors.Is(err, filter.ErrNoValues):
		return Problem{Code: CodeInvalidArgument, Message: err.Error()}
	}
	return Problem{Code: CodeInternal, Message: err.Error()}
}

// Invalid builds an invalid_argument problem for a caller-supplied value.
func Invalid(field, format string, args ...any) Problem {
	return Problem{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...), Fields: []string{field}}
}
