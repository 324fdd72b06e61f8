package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-go/internal/analysis"
	"dashboard-go/internal/table"
)

func sample() *table.Table {
	return table.FromStrings(
		[]string{"Lead ID", "Stage", "Created", "Budget", "Comment"},
		[][]string{
			{"1", "New", "01.02.2024", "100", "call back"},
			{"2", "Won", "02.02.2024", "250.5", ""},
			{"3", "New", "03.02.2024", "", "urgent"},
			{"4", "Lost", "05.02.2024", "50", ""},
		},
	)
}

func TestAnalyzeTable(t *testing.T) {
	res := analysis.NewAnalyzer().AnalyzeTable(sample())

	assert.Equal(t, 4, res.NumRows)
	assert.Equal(t, 5, res.NumColumns)
	assert.Equal(t, map[string]string{
		"Lead ID": "numeric",
		"Stage":   "categorical",
		"Created": "datetime",
		"Budget":  "numeric",
		"Comment": "categorical",
	}, res.ColumnTypes)
	assert.True(t, res.HasNumeric)
	assert.True(t, res.HasDates)
	assert.True(t, res.HasText)
	assert.Equal(t, []string{"Lead ID"}, res.PotentialIDs)
	assert.Equal(t, []string{"Created"}, res.PotentialDates)
	assert.Equal(t, []string{"Budget"}, res.PotentialAmounts)
}

func TestCalculateStats(t *testing.T) {
	stats, err := analysis.CalculateStats(sample(), "Budget")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 50.0, stats.Min)
	assert.Equal(t, 250.5, stats.Max)
	assert.InDelta(t, 133.5, stats.Mean, 1e-9)
	assert.Equal(t, 100.0, stats.Median)

	_, err = analysis.CalculateStats(sample(), "Stage")
	assert.Error(t, err)
}

func TestProfileColumn(t *testing.T) {
	tbl := sample()

	id := analysis.ProfileColumn(tbl, "Lead ID")
	assert.Equal(t, 4, id.NonNullRows)
	assert.Equal(t, 4, id.DistinctCount)
	assert.Equal(t, 1.0, id.UniquenessRatio)
	assert.InDelta(t, 2.0, id.Entropy, 1e-9)
	assert.True(t, id.IsPrimaryKey)

	comment := analysis.ProfileColumn(tbl, "Comment")
	assert.Equal(t, 0.5, comment.NullRate)
	assert.False(t, comment.IsPrimaryKey)
	assert.Less(t, comment.QualityScore, id.QualityScore)

	stage := analysis.ProfileColumn(tbl, "Stage")
	assert.Equal(t, 3, stage.DistinctCount)
	assert.InDelta(t, 1.5, stage.Entropy, 1e-9)
}

func TestProfileTable(t *testing.T) {
	profiles := analysis.ProfileTable(sample())
	require.Len(t, profiles, 5)
	for _, p := range profiles {
		assert.GreaterOrEqual(t, p.QualityScore, 0.0)
		assert.LessOrEqual(t, p.QualityScore, 1.0)
	}
	assert.Equal(t, "Created", profiles[2].ColumnName)
	assert.Equal(t, "datetime", profiles[2].Type)
}

func TestProfileColumn_Empty(t *testing.T) {
	p := analysis.ProfileColumn(table.FromStrings([]string{"a"}, nil), "a")
	assert.Zero(t, p.TotalRows)
	assert.Zero(t, p.Entropy)
	assert.False(t, p.IsPrimaryKey)
}
