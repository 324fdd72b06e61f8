package analysis

import (
	"fmt"
	"sort"
	"strings"

	"dashboard-go/internal/models"
	"dashboard-go/internal/table"
)

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// AnalyzeTable infers column types and flags columns that look like ids,
// dates or amounts
func (s *Analyzer) AnalyzeTable(t *table.Table) models.DataAnalysisResult {
	columns := t.Columns()
	result := models.DataAnalysisResult{
		ColumnNames:      columns,
		ColumnTypes:      make(map[string]string, len(columns)),
		PotentialIDs:     []string{},
		PotentialDates:   []string{},
		PotentialAmounts: []string{},
		NumRows:          t.Len(),
		NumColumns:       len(columns),
	}

	for _, colName := range columns {
		colType := t.ColumnType(colName)
		result.ColumnTypes[colName] = string(colType)
		colLower := strings.ToLower(colName)

		switch colType {
		case table.Numeric:
			result.HasNumeric = true
			if containsAny(colLower, []string{"id", "number", "code", "key"}) {
				result.PotentialIDs = append(result.PotentialIDs, colName)
			}
			if containsAny(colLower, []string{"amount", "price", "cost", "revenue", "budget", "sum"}) {
				result.PotentialAmounts = append(result.PotentialAmounts, colName)
			}
		case table.DateTime:
			result.HasDates = true
			result.PotentialDates = append(result.PotentialDates, colName)
		default:
			result.HasText = true
			// Name implies a date even if the values did not parse
			if containsAny(colLower, []string{"date", "time", "created", "modified"}) {
				result.PotentialDates = append(result.PotentialDates, colName)
				result.HasDates = true
			}
		}
	}

	return result
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NumericStats are the basic statistics of a numeric column
type NumericStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// CalculateStats computes basic stats for a numeric column
func CalculateStats(t *table.Table, col string) (NumericStats, error) {
	values := []float64{}
	for _, v := range t.Column(col) {
		if f, ok := v.Float(); ok {
			values = append(values, f)
		}
	}

	if len(values) == 0 {
		return NumericStats{}, fmt.Errorf("column %q has no numeric values", col)
	}

	sort.Float64s(values)
	stats := NumericStats{
		Count: len(values),
		Min:   values[0],
		Max:   values[len(values)-1],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	stats.Mean = sum / float64(len(values))

	if len(values)%2 == 0 {
		stats.Median = (values[len(values)/2-1] + values[len(values)/2]) / 2
	} else {
		stats.Median = values[len(values)/2]
	}

	return stats, nil
}
