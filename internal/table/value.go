package table

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which scalar a Value carries.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// TimeLayout is the textual form used for time values in keys and exports.
const TimeLayout = "2006-01-02 15:04:05"

// Value is a single cell. The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	t    time.Time
}

// Null returns the missing value.
func Null() Value { return Value{} }

// String wraps a text cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric cell. NaN is stored as Null.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Time wraps a date-time cell. The zero time is stored as Null.
func Time(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindTime, t: t}
}

// nullMarkers are the spellings treated as missing when loading text.
var nullMarkers = map[string]bool{
	"":     true,
	"null": true,
	"NULL": true,
	"None": true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"NaT":  true,
}

// FromText converts a raw text cell into a Value. Surrounding whitespace is
// trimmed and the usual null spellings become Null. The text is kept as a
// string; typing happens lazily when a column is inspected.
func FromText(s string) Value {
	s = strings.TrimSpace(s)
	if nullMarkers[s] {
		return Null()
	}
	return String(s)
}

// FromAny converts a driver value (database/sql, BSON) into a Value.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return FromText(x)
	case []byte:
		return FromText(string(x))
	case time.Time:
		return Time(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Time(*x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case bool:
		return String(strconv.FormatBool(x))
	default:
		return FromText(fmt.Sprint(x))
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// thousands matches numbers grouped with commas, e.g. 1,250 or 12,000.50.
var thousands = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Float returns the numeric content. Strings that parse as numbers count.
// Commas are accepted only as thousands separators; a decimal comma such
// as "1,5" is not a number.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		s := v.str
		if strings.Contains(s, ",") {
			if !thousands.MatchString(s) {
				return 0, false
			}
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// TimeValue returns the time content of a KindTime value.
func (v Value) TimeValue() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

// Text is the canonical textual form of the value. It is the key used for
// grouping and categorical membership. Null renders as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindTime:
		return v.t.Format(TimeLayout)
	default:
		return ""
	}
}

func (v Value) String() string { return v.Text() }

// Any returns the value as a plain Go value for JSON encoding.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindTime:
		return v.t.Format(TimeLayout)
	default:
		return nil
	}
}

// Day truncates t to its calendar date, keeping the wall-clock date of t.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
