package schema

import (
	"errors"
	"fmt"
	"strings"

	"dashboard-go/internal/table"
)

// Mode selects how headers are bound when aliases are not enough.
type Mode int

const (
	// ModeAlias binds by alias only; a missing required field is an error.
	ModeAlias Mode = iota
	// ModeFallback tries aliases first and falls back to positional binding.
	ModeFallback
	// ModePositional always pads or truncates and binds by position.
	ModePositional
)

// ParseMode maps "alias", "fallback" and "positional" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "alias":
		return ModeAlias, nil
	case "fallback":
		return ModeFallback, nil
	case "positional", "strict":
		return ModePositional, nil
	}
	return ModeAlias, fmt.Errorf("unknown schema mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeFallback:
		return "fallback"
	case ModePositional:
		return "positional"
	default:
		return "alias"
	}
}

// placeholderPrefix names the empty columns synthesised by padding.
const placeholderPrefix = "_placeholder_"

// Mapping binds logical field names to the physical header found in a table.
type Mapping struct {
	Fields     map[string]string `json:"fields"`
	Order      []string          `json:"order"`
	Padded     []string          `json:"padded,omitempty"`
	Dropped    []string          `json:"dropped,omitempty"`
	Positional bool              `json:"positional"`
}

// Column returns the physical column bound to a logical field.
func (m Mapping) Column(logical string) (string, bool) {
	c, ok := m.Fields[logical]
	return c, ok
}

// Has reports whether the logical field is bound.
func (m Mapping) Has(logical string) bool {
	_, ok := m.Fields[logical]
	return ok
}

// ErrResolution is matched by every ResolutionError.
var ErrResolution = errors.New("schema resolution failed")

// ResolutionError lists the required fields no header could be bound to.
type ResolutionError struct {
	Missing     []string            `json:"missing"`
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", ErrResolution, strings.Join(e.Missing, ", "))
}

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// Resolve binds each field to the first of its candidates present in
// columns. Matching is exact and case-sensitive.
func Resolve(columns []string, fields []Field) (Mapping, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	m := Mapping{Fields: make(map[string]string, len(fields))}
	var missing []string
	for _, f := range fields {
		bound := false
		for _, cand := range f.Candidates() {
			if present[cand] {
				m.Fields[f.Name] = cand
				m.Order = append(m.Order, f.Name)
				bound = true
				break
			}
		}
		if !bound && f.Required {
			missing = append(missing, f.Name)
		}
	}

	if len(missing) > 0 {
		err := &ResolutionError{Missing: missing, Suggestions: map[string][]string{}}
		for _, name := range missing {
			f, _ := Lookup(fields, name)
			if s := suggest(columns, f, m); len(s) > 0 {
				err.Suggestions[name] = s
			}
		}
		return m, err
	}
	return m, nil
}

// Conform resolves t against fields and returns a table whose bound columns
// carry the logical names. The input table is not modified.
func Conform(t *table.Table, fields []Field, mode Mode) (*table.Table, Mapping, error) {
	if mode == ModePositional {
		out, m := positional(t, fields)
		return out, m, nil
	}

	m, err := Resolve(t.Columns(), fields)
	if err != nil {
		if mode == ModeFallback {
			out, pm := positional(t, fields)
			return out, pm, nil
		}
		return nil, m, err
	}

	rename := make(map[string]string, len(m.Order))
	for _, name := range m.Order {
		if phys := m.Fields[name]; phys != name {
			rename[phys] = name
		}
	}
	return t.Rename(rename), m, nil
}

// positional pads missing trailing columns with empty placeholders,
// truncates extra trailing columns, then names columns by position.
func positional(t *table.Table, fields []Field) (*table.Table, Mapping) {
	cols := t.Columns()
	m := Mapping{Fields: make(map[string]string, len(fields)), Positional: true}
	out := t

	if len(cols) < len(fields) {
		names := make([]string, 0, len(fields)-len(cols))
		for i := len(cols); i < len(fields); i++ {
			names = append(names, fmt.Sprintf("%s%d", placeholderPrefix, i+1))
			m.Padded = append(m.Padded, fields[i].Name)
		}
		out = out.Pad(names...)
	}
	if len(cols) > len(fields) {
		m.Dropped = append(m.Dropped, cols[len(fields):]...)
		out = out.Truncate(len(fields))
	}

	current := out.Columns()
	rename := make(map[string]string, len(fields))
	for i, f := range fields {
		rename[current[i]] = f.Name
		if i < len(cols) {
			m.Fields[f.Name] = cols[i]
		} else {
			m.Fields[f.Name] = current[i]
		}
		m.Order = append(m.Order, f.Name)
	}
	return out.Rename(rename), m
}
