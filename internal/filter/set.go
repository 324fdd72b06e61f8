package filter

import (
	"errors"
	"fmt"
	"time"

	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

// ============================================================================
// FILTER SET: One predicate per logical field, AND-combined
// ============================================================================
// A Set is never modified in place. Select and Range return a copy, so a
// Set can be handed to concurrent readers of the same session.
// ============================================================================

// DayLayout is the wire format for date-range bounds.
const DayLayout = "2006-01-02"

var (
	ErrUnknownField = errors.New("no filter for field")
	ErrInvalidRange = errors.New("invalid date range")
	ErrNoValues     = errors.New("field has no values to select")
)

// DateParseWarning is raised when a date column has no parseable values.
// The date filter for that field is disabled rather than failing the load.
type DateParseWarning struct {
	Field string `json:"field"`
}

func (w DateParseWarning) Error() string {
	return fmt.Sprintf("column %q has no parseable dates; date filtering disabled", w.Field)
}

// Set holds the active predicate for each filtered field.
type Set struct {
	preds []Predicate
}

// Option tunes Initialize.
type Option func(*options)

type options struct {
	nulls NullPolicy
}

// WithNullPolicy sets how missing values are treated by every predicate.
func WithNullPolicy(p NullPolicy) Option {
	return func(o *options) { o.nulls = p }
}

// Initialize builds the default Set for t: every observed value allowed for
// categorical fields and [min, max] for date fields. Fields absent from t
// or marked Unfiltered get no predicate, and fields with no values get a
// disabled one. t must already carry logical column names.
func Initialize(t *table.Table, fields []schema.Field, opts ...Option) (*Set, []DateParseWarning) {
	o := options{nulls: NullStrict}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Set{}
	var warnings []DateParseWarning
	for _, f := range fields {
		if f.Unfiltered || !t.Has(f.Name) {
			continue
		}
		switch f.Kind {
		case schema.KindCategorical:
			var observed []string
			for _, v := range t.Distinct(f.Name) {
				observed = append(observed, v.Text())
			}
			c := newCategorical(f.Name, observed, observed, o.nulls)
			c.disabled = len(observed) == 0
			s.preds = append(s.preds, c)

		case schema.KindDate:
			d := &DateRange{field: f.Name, nulls: o.nulls}
			lo, hi, ok := t.TimeBounds(f.Name)
			if !ok {
				d.disabled = true
				warnings = append(warnings, DateParseWarning{Field: f.Name})
			} else {
				d.min, d.max = table.Day(lo), table.Day(hi)
				d.start, d.end = d.min, d.max
			}
			s.preds = append(s.preds, d)
		}
	}
	return s, warnings
}

// Predicates returns the predicates in declaration order.
func (s *Set) Predicates() []Predicate {
	return append([]Predicate(nil), s.preds...)
}

// Get returns the predicate for field.
func (s *Set) Get(field string) (Predicate, bool) {
	for _, p := range s.preds {
		if p.Field() == field {
			return p, true
		}
	}
	return nil, false
}

// Select returns a copy of s with the allowed values of a categorical field
// replaced. An empty selection matches no rows.
func (s *Set) Select(field string, values []string) (*Set, error) {
	for i, p := range s.preds {
		c, ok := p.(*Categorical)
		if !ok || c.field != field {
			continue
		}
		if c.disabled {
			return nil, fmt.Errorf("%w: %q", ErrNoValues, field)
		}
		out := s.clone()
		out.preds[i] = newCategorical(c.field, c.options, values, c.nulls)
		return out, nil
	}
	return nil, fmt.Errorf("%w: categorical %q", ErrUnknownField, field)
}

// Range returns a copy of s with the selected interval of a date field
// replaced. Bounds are truncated to calendar days.
func (s *Set) Range(field string, start, end time.Time) (*Set, error) {
	start, end = table.Day(start), table.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start.Format(DayLayout), end.Format(DayLayout))
	}
	for i, p := range s.preds {
		d, ok := p.(*DateRange)
		if !ok || d.field != field {
			continue
		}
		if d.disabled {
			return nil, DateParseWarning{Field: field}
		}
		out := s.clone()
		next := *d
		next.start, next.end = start, end
		out.preds[i] = &next
		return out, nil
	}
	return nil, fmt.Errorf("%w: date %q", ErrUnknownField, field)
}

func (s *Set) clone() *Set {
	return &Set{preds: append([]Predicate(nil), s.preds...)}
}

// Apply returns the rows of t that satisfy every predicate whose field is
// present in t. t is not modified; applying the same Set twice is a no-op.
func Apply(t *table.Table, s *Set) *table.Table {
	if s == nil || len(s.preds) == 0 {
		return t.Where(func(int) bool { return true })
	}
	active := make([]Predicate, 0, len(s.preds))
	for _, p := range s.preds {
		if t.Has(p.Field()) {
			active = append(active, p)
		}
	}
	return t.Where(func(i int) bool {
		for _, p := range active {
			if !p.Match(t.Value(i, p.Field())) {
				return false
			}
		}
		return true
	})
}

// Control describes one filter widget for the presentation layer.
type Control struct {
	Field    string   `json:"field"`
	Kind     string   `json:"kind"`
	Options  []string `json:"options,omitempty"`
	Selected []string `json:"selected,omitempty"`
	Min      string   `json:"min,omitempty"`
	Max      string   `json:"max,omitempty"`
	Start    string   `json:"start,omitempty"`
	End      string   `json:"end,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
}

// Controls lists the filter widgets in declaration order.
func (s *Set) Controls() []Control {
	out := make([]Control, 0, len(s.preds))
	for _, p := range s.preds {
		switch x := p.(type) {
		case *Categorical:
			out = append(out, Control{
				Field:    x.field,
				Kind:     "multiselect",
				Options:  x.Options(),
				Selected: x.Allowed(),
				Disabled: x.disabled,
			})
		case *DateRange:
			c := Control{Field: x.field, Kind: "date_range", Disabled: x.disabled}
			if !x.disabled {
				c.Min, c.Max = x.min.Format(DayLayout), x.max.Format(DayLayout)
				c.Start, c.End = x.start.Format(DayLayout), x.end.Format(DayLayout)
			}
			out = append(out, c)
		}
	}
	return out
}
