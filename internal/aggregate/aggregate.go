package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dashboard-go/internal/table"
)

// ErrInvalidArgument reports a malformed reducer parameter.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError names the offending parameter.
type InvalidArgumentError struct {
	Param  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidArgument, e.Param, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// Entry is one group key with its row count. Key has one part per grouped
// field.
type Entry struct {
	Key   []string `json:"key"`
	Count int      `json:"count"`
}

// Label joins the key parts for display.
func (e Entry) Label() string { return strings.Join(e.Key, " / ") }

// Result is an ordered list of counts: descending by count, ties in the
// order the key was first seen.
type Result struct {
	Fields  []string `json:"fields"`
	Entries []Entry  `json:"entries"`
}

// Total sums every count.
func (r Result) Total() int {
	n := 0
	for _, e := range r.Entries {
		n += e.Count
	}
	return n
}

// Len is the number of groups.
func (r Result) Len() int { return len(r.Entries) }

// Counts returns the counts keyed by label.
func (r Result) Counts() map[string]int {
	m := make(map[string]int, len(r.Entries))
	for _, e := range r.Entries {
		m[e.Label()] = e.Count
	}
	return m
}

// CrossTab pivots a two-field Result into a matrix. Row and column labels
// keep the order they appear in r.
func (r Result) CrossTab() (rows, cols []string, counts [][]int) {
	rowIdx := map[string]int{}
	colIdx := map[string]int{}
	for _, e := range r.Entries {
		if len(e.Key) != 2 {
			continue
		}
		if _, ok := rowIdx[e.Key[0]]; !ok {
			rowIdx[e.Key[0]] = len(rows)
			rows = append(rows, e.Key[0])
		}
		if _, ok := colIdx[e.Key[1]]; !ok {
			colIdx[e.Key[1]] = len(cols)
			cols = append(cols, e.Key[1])
		}
	}
	counts = make([][]int, len(rows))
	for i := range counts {
		counts[i] = make([]int, len(cols))
	}
	for _, e := range r.Entries {
		if len(e.Key) != 2 {
			continue
		}
		counts[rowIdx[e.Key[0]]][colIdx[e.Key[1]]] += e.Count
	}
	return rows, cols, counts
}

// group counts rows by the key returned from keyOf. Rows for which keyOf
// reports false are skipped.
func group(t *table.Table, fields []string, keyOf func(i int) ([]string, bool)) Result {
	index := make(map[string]int)
	var entries []Entry
	for i := 0; i < t.Len(); i++ {
		key, ok := keyOf(i)
		if !ok {
			continue
		}
		k := strings.Join(key, "\x00")
		if j, seen := index[k]; seen {
			entries[j].Count++
			continue
		}
		index[k] = len(entries)
		entries = append(entries, Entry{Key: key, Count: 1})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	return Result{Fields: fields, Entries: entries}
}

// CountBy counts rows per distinct non-null value of field.
func CountBy(t *table.Table, field string) Result {
	return group(t, []string{field}, func(i int) ([]string, bool) {
		v := t.Value(i, field)
		if v.IsNull() {
			return nil, false
		}
		return []string{v.Text()}, true
	})
}

// CountByPair counts rows per distinct (a, b) combination. Rows missing
// either value are skipped.
func CountByPair(t *table.Table, a, b string) Result {
	return group(t, []string{a, b}, func(i int) ([]string, bool) {
		va, vb := t.Value(i, a), t.Value(i, b)
		if va.IsNull() || vb.IsNull() {
			return nil, false
		}
		return []string{va.Text(), vb.Text()}, true
	})
}

// TopN returns the n largest groups of CountBy. It is always a prefix of
// the full ordering.
func TopN(t *table.Table, field string, n int) (Result, error) {
	if n <= 0 {
		return Result{}, &InvalidArgumentError{Param: "n", Reason: fmt.Sprintf("must be positive, got %d", n)}
	}
	r := CountBy(t, field)
	if len(r.Entries) > n {
		r.Entries = r.Entries[:n]
	}
	return r, nil
}

// Distinct counts the distinct non-null values of field.
func Distinct(t *table.Table, field string) int {
	return len(t.Distinct(field))
}

// DayCount is the number of rows on one calendar day.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// DailySeries buckets rows by calendar day of field over every day from the
// first to the last observed date. Days without rows have a zero count.
func DailySeries(t *table.Table, field string) []DayCount {
	counts := make(map[time.Time]int)
	var first, last time.Time
	for i := 0; i < t.Len(); i++ {
		ts, ok := t.Value(i, field).TimeValue()
		if !ok {
			continue
		}
		day := table.Day(ts)
		if len(counts) == 0 || day.Before(first) {
			first = day
		}
		if len(counts) == 0 || day.After(last) {
			last = day
		}
		counts[day]++
	}
	if len(counts) == 0 {
		return nil
	}

	var series []DayCount
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		series = append(series, DayCount{Day: d, Count: counts[d]})
	}
	return series
}
