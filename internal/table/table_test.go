package table_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-go/internal/table"
)

func leads() *table.Table {
	return table.FromStrings(
		[]string{"Stage", "Source", "Date of creation"},
		[][]string{
			{"New", "Web", "01.01.2024 10:00:00"},
			{"Won", "", "03.01.2024"},
			{"New", "Call", "garbage"},
		},
	)
}

func TestFromStrings_NullsAndPadding(t *testing.T) {
	tbl := table.FromStrings([]string{"A", "B", "C"}, [][]string{{"x", " N/A "}})

	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "x", tbl.Value(0, "A").Text())
	assert.True(t, tbl.Value(0, "B").IsNull())
	assert.True(t, tbl.Value(0, "C").IsNull(), "short rows pad with null")
	assert.True(t, tbl.Value(0, "missing").IsNull())
}

func TestFromStrings_DuplicateHeaders(t *testing.T) {
	tbl := table.FromStrings([]string{"\ufeffName", "Name", "Name"}, nil)
	assert.Equal(t, []string{"Name", "Name.1", "Name.2"}, tbl.Columns())
}

func TestCheckNotEmpty(t *testing.T) {
	tests := []struct {
		name    string
		tbl     *table.Table
		wantErr bool
	}{
		{name: "nil", tbl: nil, wantErr: true},
		{name: "no columns", tbl: table.FromStrings(nil, nil), wantErr: true},
		{name: "no rows", tbl: table.FromStrings([]string{"A"}, nil), wantErr: true},
		{name: "ok", tbl: leads(), wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.CheckNotEmpty(tt.tbl)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, table.ErrEmptyInput))
			var empty *table.EmptyInputError
			assert.True(t, errors.As(err, &empty))
		})
	}
}

func TestWhere_DoesNotMutate(t *testing.T) {
	tbl := leads()
	out := tbl.Where(func(i int) bool { return tbl.Value(i, "Stage").Text() == "New" })

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "Call", out.Value(1, "Source").Text())
}

func TestParseTimes(t *testing.T) {
	tbl := leads()
	out, parsed, err := tbl.ParseTimes("Date of creation", table.NewDateParser(table.DayFirst))
	require.NoError(t, err)

	assert.Equal(t, 2, parsed)
	ts, ok := out.Value(1, "Date of creation").TimeValue()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), ts)
	assert.True(t, out.Value(2, "Date of creation").IsNull())

	// input untouched
	assert.Equal(t, table.KindString, tbl.Value(1, "Date of creation").Kind())

	min, max, ok := out.TimeBounds("Date of creation")
	require.True(t, ok)
	assert.Equal(t, 1, min.Day())
	assert.Equal(t, 3, max.Day())

	_, _, err = tbl.ParseTimes("nope", table.NewDateParser(table.DayFirst))
	assert.Error(t, err)
}

func TestDateParser_Order(t *testing.T) {
	day := table.NewDateParser(table.DayFirst)
	month := table.NewDateParser(table.MonthFirst)

	d, ok := day.Parse("03/04/2024")
	require.True(t, ok)
	assert.Equal(t, time.April, d.Month())

	m, ok := month.Parse("03/04/2024")
	require.True(t, ok)
	assert.Equal(t, time.March, m.Month())

	iso, ok := day.Parse("2024-01-15")
	require.True(t, ok)
	assert.Equal(t, 15, iso.Day())

	_, ok = day.Parse("not a date")
	assert.False(t, ok)

	assert.Equal(t, table.MonthFirst, table.ParseDateOrder("Month"))
	assert.Equal(t, table.DayFirst, table.ParseDateOrder(""))
}

func TestColumnType(t *testing.T) {
	tbl := table.FromStrings(
		[]string{"n", "d", "c", "empty"},
		[][]string{
			{"1", "2024-01-01", "a", ""},
			{"2.5", "02.01.2024", "b", ""},
			{"", "", "3", ""},
		},
	)
	assert.Equal(t, table.Numeric, tbl.ColumnType("n"))
	assert.Equal(t, table.DateTime, tbl.ColumnType("d"))
	assert.Equal(t, table.Categorical, tbl.ColumnType("c"))
	assert.Equal(t, table.Categorical, tbl.ColumnType("empty"))
}

func TestDistinct_FirstSeen(t *testing.T) {
	tbl := table.FromStrings([]string{"S"}, [][]string{{"B"}, {"A"}, {""}, {"B"}, {"C"}})
	var got []string
	for _, v := range tbl.Distinct("S") {
		got = append(got, v.Text())
	}
	assert.Equal(t, []string{"B", "A", "C"}, got)
}

func TestRenamePadTruncate(t *testing.T) {
	tbl := leads()

	renamed := tbl.Rename(map[string]string{"Stage": "Status"})
	assert.Equal(t, []string{"Status", "Source", "Date of creation"}, renamed.Columns())
	assert.Equal(t, "New", renamed.Value(0, "Status").Text())

	padded := tbl.Pad("extra")
	assert.Equal(t, 4, padded.Width())
	assert.True(t, padded.Value(0, "extra").IsNull())
	assert.Equal(t, 3, tbl.Width())

	cut := tbl.Truncate(1)
	assert.Equal(t, []string{"Stage"}, cut.Columns())
	assert.Equal(t, "Won", cut.Value(1, "Stage").Text())
}

func TestFromAny(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, table.KindNumber, table.FromAny(int64(3)).Kind())
	assert.Equal(t, "3", table.FromAny(int64(3)).Text())
	assert.Equal(t, table.KindTime, table.FromAny(now).Kind())
	assert.Equal(t, "abc", table.FromAny([]byte("abc")).Text())
	assert.True(t, table.FromAny(nil).IsNull())
	assert.True(t, table.FromAny("NULL").IsNull())
}

func TestValue_Float(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"-3.5", -3.5, true},
		{"1,250", 1250, true},
		{"12,000.50", 12000.5, true},
		{"1,5", 0, false},
		{"12,34", 0, false},
		{"1,000,0", 0, false},
		{"Acme", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := table.String(tt.in).Float()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
