package dashboard_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-go/internal/aggregate"
	"dashboard-go/internal/dashboard"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

func leads() *table.Table {
	return table.FromStrings(
		[]string{"stage_name", "Source", "Manager", "Company", "Created", "Modified", "Amount"},
		[][]string{
			{"New", "Web", "Ann", "Acme", "01.01.2024 10:00", "05.01.2024 10:00", "100"},
			{"Won", "Call", "Bob", "Beta", "01.01.2024 12:00", "", "250"},
			{"New", "Web", "Ann", "Acme", "03.01.2024", "04.01.2024", "80"},
			{"Lost", "", "Bob", "Gamma", "04.01.2024", "10.01.2024", "0"},
		},
	)
}

func TestLoad_ResolvesAliasesAndDates(t *testing.T) {
	ds, err := dashboard.NewEngine().Load(leads())
	require.NoError(t, err)

	assert.Equal(t, "stage_name", ds.Mapping().Fields[schema.Stage])
	assert.Equal(t, "Manager", ds.Mapping().Fields[schema.Responsible])
	assert.True(t, ds.Has(schema.CreatedAt))
	assert.True(t, ds.Has("Amount"), "unmapped columns are kept")

	v := ds.Table().Value(0, schema.CreatedAt)
	assert.Equal(t, table.KindTime, v.Kind())

	set, warnings := ds.Filters()
	assert.Empty(t, warnings)
	assert.Len(t, set.Controls(), 4, "Date modified is not filtered")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   *table.Table
		code dashboard.Code
	}{
		{name: "nil table", in: nil, code: dashboard.CodeEmptyInput},
		{name: "header only", in: table.FromStrings([]string{"Stage"}, nil), code: dashboard.CodeEmptyInput},
		{
			name: "missing fields",
			in:   table.FromStrings([]string{"Stage", "Sourc"}, [][]string{{"New", "Web"}}),
			code: dashboard.CodeSchemaResolution,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := dashboard.NewEngine().Load(tt.in)
			require.Error(t, err)
			assert.Nil(t, ds)

			p := dashboard.Describe(err)
			assert.Equal(t, tt.code, p.Code)
			assert.True(t, p.Fatal())
		})
	}
}

func TestLoad_ResolutionProblemNamesFields(t *testing.T) {
	in := table.FromStrings([]string{"Stage", "Sourc"}, [][]string{{"New", "Web"}})
	_, err := dashboard.NewEngine().Load(in)

	p := dashboard.Describe(err)
	assert.Equal(t, []string{schema.Source, schema.Responsible, schema.CreatedAt}, p.Fields)
	assert.Equal(t, []string{"Sourc"}, p.Suggestions[schema.Source])
}

func TestLoad_PositionalMode(t *testing.T) {
	e := dashboard.NewEngine()
	e.Mode = schema.ModePositional
	in := table.FromStrings([]string{"a", "b", "c"}, [][]string{{"New", "Web", "Ann"}})

	ds, err := e.Load(in)
	require.NoError(t, err)
	assert.Equal(t, schema.Names(schema.LeadFields), ds.Table().Columns())

	_, warnings := ds.Filters()
	require.Len(t, warnings, 1, "padded creation date has no dates")
	assert.Equal(t, schema.CreatedAt, warnings[0].Field)
}

func TestEvaluate_PaddedColumnsKeepRows(t *testing.T) {
	e := dashboard.NewEngine()
	e.Mode = schema.ModePositional
	in := table.FromStrings([]string{"a", "b"}, [][]string{{"New", "Web"}, {"Won", "Call"}})

	ds, err := e.Load(in)
	require.NoError(t, err)

	r := ds.Evaluate(nil, dashboard.DefaultOptions)
	assert.Equal(t, 2, r.Rows)
	assert.Equal(t, map[string]int{"New": 1, "Won": 1}, r.Stages.Counts())

	set, _ := ds.Filters()
	var responsible filter.Control
	for _, c := range set.Controls() {
		if c.Field == schema.Responsible {
			responsible = c
		}
	}
	assert.True(t, responsible.Disabled)
	assert.Empty(t, responsible.Options)

	_, err = set.Select(schema.Responsible, []string{"Ann"})
	require.ErrorIs(t, err, filter.ErrNoValues)
	assert.Equal(t, dashboard.CodeInvalidArgument, dashboard.Describe(err).Code)
}

func TestEvaluate_DefaultFilters(t *testing.T) {
	ds, err := dashboard.NewEngine().Load(leads())
	require.NoError(t, err)

	r := ds.Evaluate(nil, dashboard.DefaultOptions)
	assert.Empty(t, r.Problems)

	// the row with an empty Source is dropped by the strict default
	assert.Equal(t, 3, r.Rows)
	assert.Equal(t, dashboard.KPIs{Leads: 3, Companies: 2, Managers: 2, Sources: 2}, r.KPIs)
	assert.Equal(t, map[string]int{"New": 2, "Won": 1}, r.Stages.Counts())
	assert.Equal(t, []string{"New"}, r.Stages.Entries[0].Key)
	assert.Equal(t, 3, r.ManagerStages.Total())

	require.Len(t, r.Daily, 3)
	assert.Equal(t, []int{2, 0, 1}, []int{r.Daily[0].Count, r.Daily[1].Count, r.Daily[2].Count})

	require.NotNil(t, r.Elapsed)
	assert.Equal(t, 2, r.Elapsed.Count)
	assert.Equal(t, 1, r.Elapsed.Unmeasurable)
	assert.Len(t, r.ElapsedHistogram, 10)

	require.Len(t, r.TopCompanies.Entries, 2)
	assert.Equal(t, []string{"Acme"}, r.TopCompanies.Entries[0].Key)
}

func TestEvaluate_Selection(t *testing.T) {
	ds, err := dashboard.NewEngine().Load(leads())
	require.NoError(t, err)

	set, _ := ds.Filters()
	set, err = set.Select(schema.Stage, []string{"Won"})
	require.NoError(t, err)

	r := ds.Evaluate(set, dashboard.DefaultOptions)
	assert.Equal(t, 1, r.Rows)
	assert.Equal(t, 1, r.KPIs.Managers)

	again := ds.Evaluate(set, dashboard.DefaultOptions)
	assert.Equal(t, r, again)
}

func TestEvaluate_InvalidTopN(t *testing.T) {
	ds, err := dashboard.NewEngine().Load(leads())
	require.NoError(t, err)

	r := ds.Evaluate(nil, dashboard.Options{TopN: 0, Bins: 5})
	require.Len(t, r.Problems, 1)
	assert.Equal(t, dashboard.CodeInvalidArgument, r.Problems[0].Code)
	assert.Equal(t, []string{"n"}, r.Problems[0].Fields)
	assert.NotEmpty(t, r.Stages.Entries, "other reducers still run")
}

func TestEvaluate_DateWarningSurfaced(t *testing.T) {
	in := table.FromStrings(
		[]string{"Stage", "Source", "Responsible", "Date of creation"},
		[][]string{{"New", "Web", "Ann", "someday"}},
	)
	ds, err := dashboard.NewEngine().Load(in)
	require.NoError(t, err)

	r := ds.Evaluate(nil, dashboard.DefaultOptions)
	assert.Equal(t, 1, r.Rows)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, dashboard.CodeDateParse, r.Warnings[0].Code)
	assert.Empty(t, r.Daily)
	assert.Nil(t, r.Elapsed)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dashboard.Code
	}{
		{"empty", &table.EmptyInputError{Reason: "no rows"}, dashboard.CodeEmptyInput},
		{"wrapped resolution", fmt.Errorf("load: %w", &schema.ResolutionError{Missing: []string{"Stage"}}), dashboard.CodeSchemaResolution},
		{"date warning", filter.DateParseWarning{Field: "Date of creation"}, dashboard.CodeDateParse},
		{"invalid n", &aggregate.InvalidArgumentError{Param: "n", Reason: "must be positive"}, dashboard.CodeInvalidArgument},
		{"invalid range", fmt.Errorf("x: %w", filter.ErrInvalidRange), dashboard.CodeInvalidArgument},
		{"problem passes through", dashboard.Problem{Code: dashboard.CodeDateParse}, dashboard.CodeDateParse},
		{"other", errors.New("boom"), dashboard.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dashboard.Describe(tt.err).Code)
		})
	}
}
