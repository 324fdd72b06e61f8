package table

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// TABLE: Immutable rows sharing one ordered column set
// ============================================================================
// Every transform returns a new Table. Row slices are never written after
// construction, so filtered tables may share them with their parent.
// ============================================================================

// ErrEmptyInput reports a load that produced no columns or no rows.
var ErrEmptyInput = errors.New("empty input")

// EmptyInputError carries the reason a load had nothing to work with.
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	if e.Reason == "" {
		return ErrEmptyInput.Error()
	}
	return fmt.Sprintf("%s: %s", ErrEmptyInput, e.Reason)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// ColumnType is the lazily inferred type of a column.
type ColumnType string

const (
	Categorical ColumnType = "categorical"
	Numeric     ColumnType = "numeric"
	DateTime    ColumnType = "datetime"
)

// Table is an ordered sequence of records over a common column set.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a Table. Rows shorter than the header are padded with Null,
// longer rows are cut. Duplicate header names get a ".N" suffix.
func New(columns []string, rows [][]Value) *Table {
	cols := uniqueColumns(columns)
	out := make([][]Value, len(rows))
	for i, row := range rows {
		r := make([]Value, len(cols))
		copy(r, row)
		out[i] = r
	}
	return build(cols, out)
}

// Headers cleans a raw header row: BOM and surrounding whitespace are
// dropped and duplicates get a ".N" suffix.
func Headers(raw []string) []string {
	cols := make([]string, len(raw))
	for i, h := range raw {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return uniqueColumns(cols)
}

// FromStrings builds a Table from raw text cells, e.g. a parsed CSV.
func FromStrings(headers []string, rows [][]string) *Table {
	cols := Headers(headers)

	out := make([][]Value, len(rows))
	for i, row := range rows {
		r := make([]Value, len(cols))
		for j := range cols {
			if j < len(row) {
				r[j] = FromText(row[j])
			}
		}
		out[i] = r
	}
	return build(cols, out)
}

func build(cols []string, rows [][]Value) *Table {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	return &Table{columns: cols, index: idx, rows: rows}
}

func uniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		name := c
		if n, ok := seen[c]; ok {
			for {
				n++
				name = fmt.Sprintf("%s.%d", c, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[c] = n
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

// CheckNotEmpty returns an EmptyInputError when t has no columns or rows.
func CheckNotEmpty(t *Table) error {
	switch {
	case t == nil:
		return &EmptyInputError{Reason: "no table provided"}
	case len(t.columns) == 0:
		return &EmptyInputError{Reason: "table has no columns"}
	case len(t.rows) == 0:
		return &EmptyInputError{Reason: "table has no rows"}
	}
	return nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) Len() int   { return len(t.rows) }
func (t *Table) Width() int { return len(t.columns) }

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Value returns the cell at row i, column col. Unknown columns read as Null.
func (t *Table) Value(i int, col string) Value {
	j, ok := t.index[col]
	if !ok {
		return Null()
	}
	return t.rows[i][j]
}

// Column returns a copy of every value in col.
func (t *Table) Column(col string) []Value {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out
}

// Record is one row viewed as an ordered column -> value mapping.
type Record struct {
	columns []string
	values  []Value
}

func (r Record) Columns() []string { return r.columns }
func (r Record) Values() []Value   { return r.values }

// Get returns the value for col, or Null.
func (r Record) Get(col string) Value {
	for i, c := range r.columns {
		if c == col {
			return r.values[i]
		}
	}
	return Null()
}

// Map returns the record as plain values keyed by column.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i].Any()
	}
	return m
}

// Record returns row i. The returned record must not be modified.
func (t *Table) Record(i int) Record {
	return Record{columns: t.columns, values: t.rows[i]}
}

// Where returns the rows for which keep reports true, in order.
func (t *Table) Where(keep func(i int) bool) *Table {
	rows := make([][]Value, 0, len(t.rows))
	for i, row := range t.rows {
		if keep(i) {
			rows = append(rows, row)
		}
	}
	return &Table{columns: t.columns, index: t.index, rows: rows}
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.rows) {
		n = len(t.rows)
	}
	return &Table{columns: t.columns, index: t.index, rows: t.rows[:n:n]}
}

// Rename returns a table with columns renamed by mapping old -> new.
func (t *Table) Rename(mapping map[string]string) *Table {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if n, ok := mapping[c]; ok {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	return build(uniqueColumns(cols), t.rows)
}

// Truncate keeps the first n columns.
func (t *Table) Truncate(n int) *Table {
	if n >= len(t.columns) {
		return t
	}
	if n < 0 {
		n = 0
	}
	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		rows[i] = row[:n:n]
	}
	return build(t.columns[:n:n], rows)
}

// Pad appends empty columns with the given names after the existing ones.
func (t *Table) Pad(names ...string) *Table {
	if len(names) == 0 {
		return t
	}
	cols := append(t.Columns(), names...)
	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(cols))
		copy(r, row)
		rows[i] = r
	}
	return build(uniqueColumns(cols), rows)
}

// WithColumn replaces col with vals, or appends it when absent.
// vals must have one entry per row.
func (t *Table) WithColumn(col string, vals []Value) (*Table, error) {
	if len(vals) != len(t.rows) {
		return nil, fmt.Errorf("column %q: %d values for %d rows", col, len(vals), len(t.rows))
	}
	j, ok := t.index[col]
	cols := t.columns
	if !ok {
		cols = append(t.Columns(), col)
		j = len(cols) - 1
	}
	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(cols))
		copy(r, row)
		r[j] = vals[i]
		rows[i] = r
	}
	return build(cols, rows), nil
}

// ParseTimes converts col to time values with p. Unparseable cells become
// Null. It returns the new table and the number of cells that parsed.
func (t *Table) ParseTimes(col string, p *DateParser) (*Table, int, error) {
	j, ok := t.index[col]
	if !ok {
		return nil, 0, fmt.Errorf("unknown column %q", col)
	}
	vals := make([]Value, len(t.rows))
	parsed := 0
	for i, row := range t.rows {
		if ts, ok := p.Value(row[j]); ok {
			vals[i] = Time(ts)
			parsed++
		}
	}
	out, err := t.WithColumn(col, vals)
	if err != nil {
		return nil, 0, err
	}
	return out, parsed, nil
}

// Distinct returns the non-null values of col in first-seen order.
func (t *Table) Distinct(col string) []Value {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []Value
	for _, row := range t.rows {
		v := row[j]
		if v.IsNull() {
			continue
		}
		k := v.Text()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// TimeBounds returns the earliest and latest time in col.
func (t *Table) TimeBounds(col string) (min, max time.Time, ok bool) {
	j, found := t.index[col]
	if !found {
		return
	}
	for _, row := range t.rows {
		ts, isTime := row[j].TimeValue()
		if !isTime {
			continue
		}
		if !ok || ts.Before(min) {
			min = ts
		}
		if !ok || ts.After(max) {
			max = ts
		}
		ok = true
	}
	return
}

// ColumnType infers the column type from its observed non-null values.
// A column is numeric or datetime only when every observed value is.
func (t *Table) ColumnType(col string) ColumnType {
	j, ok := t.index[col]
	if !ok {
		return Categorical
	}
	parser := defaultParser
	isNumeric, isDate, seen := true, true, false
	for _, row := range t.rows {
		v := row[j]
		if v.IsNull() {
			continue
		}
		seen = true
		if _, ok := v.Float(); !ok {
			isNumeric = false
		}
		if _, ok := parser.Value(v); !ok {
			isDate = false
		}
		if !isNumeric && !isDate {
			return Categorical
		}
	}
	switch {
	case !seen:
		return Categorical
	case isNumeric:
		return Numeric
	case isDate:
		return DateTime
	}
	return Categorical
}

var defaultParser = NewDateParser(DayFirst)
