package table

import (
	"strings"
	"time"
)

// DateOrder decides how ambiguous numeric dates such as 03/04/2024 are read.
type DateOrder int

const (
	DayFirst DateOrder = iota
	MonthFirst
)

// ParseDateOrder maps "day" / "month" (case-insensitive) to a DateOrder.
// Anything else is day-first.
func ParseDateOrder(s string) DateOrder {
	if strings.EqualFold(strings.TrimSpace(s), "month") {
		return MonthFirst
	}
	return DayFirst
}

// DateParser turns date-like cells into times using an ordered layout list.
type DateParser struct {
	layouts []string
}

// NewDateParser creates a parser for the given order. CRM exports use
// dotted day-first stamps, so those are tried first.
func NewDateParser(order DateOrder) *DateParser {
	dayMonth := []string{
		"02.01.2006 15:04:05",
		"02.01.2006 15:04",
		"02.01.2006",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"02/01/2006",
		"02-01-2006",
	}
	if order == MonthFirst {
		dayMonth = []string{
			"01/02/2006 15:04:05",
			"01/02/2006 15:04",
			"01/02/2006",
			"01-02-2006",
			"01.02.2006 15:04:05",
			"01.02.2006",
		}
	}

	layouts := append([]string{
		time.RFC3339,          // 2024-01-15T10:00:00Z
		"2006-01-02T15:04:05", // ISO without zone
		"2006-01-02 15:04:05", // SQL datetime
		"2006-01-02 15:04",
		"2006-01-02", // ISO date
		"2006/01/02",
	}, dayMonth...)
	layouts = append(layouts,
		"02-Jan-2006", // 15-Jan-2024
		"2 Jan 2006",
		"Jan 2, 2006",
		"January 2, 2006", // full text
	)

	return &DateParser{layouts: layouts}
}

// Parse tries every layout in order.
func (p *DateParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Value converts a cell to a time. Time cells pass through, strings are
// parsed, everything else is unparseable.
func (p *DateParser) Value(v Value) (time.Time, bool) {
	switch v.Kind() {
	case KindTime:
		return v.TimeValue()
	case KindString:
		return p.Parse(v.Text())
	}
	return time.Time{}, false
}
