package filter

import (
	"fmt"
	"strings"
	"time"

	"dashboard-go/internal/table"
)

// NullPolicy decides whether a missing value satisfies a predicate.
type NullPolicy int

const (
	// NullStrict excludes rows whose value is missing.
	NullStrict NullPolicy = iota
	// NullPassthrough lets rows with a missing value through.
	NullPassthrough
)

// ParseNullPolicy maps "strict" / "passthrough" to a NullPolicy.
func ParseNullPolicy(s string) (NullPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return NullStrict, nil
	case "passthrough", "pass":
		return NullPassthrough, nil
	}
	return NullStrict, fmt.Errorf("unknown null policy %q", s)
}

func (p NullPolicy) String() string {
	if p == NullPassthrough {
		return "passthrough"
	}
	return "strict"
}

// Predicate tests one logical field of a row.
type Predicate interface {
	Field() string
	Match(v table.Value) bool
}

// Categorical passes rows whose value is in the allowed set. A field with
// no observed values, such as a padded placeholder column, is disabled and
// passes everything.
type Categorical struct {
	field    string
	options  []string
	allowed  []string
	set      map[string]bool
	nulls    NullPolicy
	disabled bool
}

func newCategorical(field string, options, allowed []string, nulls NullPolicy) *Categorical {
	c := &Categorical{
		field:   field,
		options: options,
		nulls:   nulls,
		set:     make(map[string]bool, len(allowed)),
	}
	for _, v := range allowed {
		if c.set[v] {
			continue
		}
		c.set[v] = true
		c.allowed = append(c.allowed, v)
	}
	return c
}

func (c *Categorical) Field() string { return c.field }

// Options are the values observed when the set was initialized.
func (c *Categorical) Options() []string { return append([]string(nil), c.options...) }

// Allowed are the currently selected values.
func (c *Categorical) Allowed() []string { return append([]string(nil), c.allowed...) }

// Disabled reports whether the column had no values to choose from.
func (c *Categorical) Disabled() bool { return c.disabled }

func (c *Categorical) Match(v table.Value) bool {
	if c.disabled {
		return true
	}
	if v.IsNull() {
		return c.nulls == NullPassthrough
	}
	return c.set[v.Text()]
}

// DateRange passes rows whose date falls in [Start, End], compared by
// calendar day. A disabled range passes everything.
type DateRange struct {
	field      string
	min, max   time.Time
	start, end time.Time
	disabled   bool
	nulls      NullPolicy
}

func (d *DateRange) Field() string { return d.field }

// Bounds are the earliest and latest observed days.
func (d *DateRange) Bounds() (time.Time, time.Time) { return d.min, d.max }

// Range is the selected interval.
func (d *DateRange) Range() (time.Time, time.Time) { return d.start, d.end }

// Disabled reports whether the column had no parseable dates.
func (d *DateRange) Disabled() bool { return d.disabled }

func (d *DateRange) Match(v table.Value) bool {
	if d.disabled {
		return true
	}
	ts, ok := v.TimeValue()
	if !ok {
		return d.nulls == NullPassthrough
	}
	day := table.Day(ts)
	return !day.Before(d.start) && !day.After(d.end)
}
