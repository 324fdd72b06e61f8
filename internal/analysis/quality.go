package analysis

import (
	"math"

	"dashboard-go/internal/table"
)

// ColumnProfile holds quality metrics for a column
type ColumnProfile struct {
	ColumnName      string  `json:"column_name"`
	Type            string  `json:"type"`
	TotalRows       int     `json:"total_rows"`
	NonNullRows     int     `json:"non_null_rows"`
	NullRate        float64 `json:"null_rate"`
	DistinctCount   int     `json:"distinct_count"`
	UniquenessRatio float64 `json:"uniqueness_ratio"`
	Entropy         float64 `json:"entropy"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	QualityScore    float64 `json:"quality_score"` // 0-1
}

// ProfileColumn analyzes quality metrics for a single column
func ProfileColumn(t *table.Table, col string) ColumnProfile {
	profile := ColumnProfile{
		ColumnName: col,
		Type:       string(t.ColumnType(col)),
		TotalRows:  t.Len(),
	}

	// Track unique values and null count
	uniqueValues := make(map[string]int)
	nonNullCount := 0
	for _, v := range t.Column(col) {
		if v.IsNull() {
			continue
		}
		nonNullCount++
		uniqueValues[v.Text()]++
	}

	profile.NonNullRows = nonNullCount
	profile.DistinctCount = len(uniqueValues)

	if profile.TotalRows > 0 {
		profile.NullRate = float64(profile.TotalRows-nonNullCount) / float64(profile.TotalRows)
	}
	if nonNullCount > 0 {
		profile.UniquenessRatio = float64(profile.DistinctCount) / float64(nonNullCount)
	}

	profile.Entropy = entropy(uniqueValues, nonNullCount)

	// High uniqueness (>95%) and low null rate (<5%)
	profile.IsPrimaryKey = profile.UniquenessRatio > 0.95 && profile.NullRate < 0.05

	profile.QualityScore = qualityScore(profile)
	return profile
}

// ProfileTable profiles every column in order
func ProfileTable(t *table.Table) []ColumnProfile {
	columns := t.Columns()
	profiles := make([]ColumnProfile, len(columns))
	for i, col := range columns {
		profiles[i] = ProfileColumn(t, col)
	}
	return profiles
}

// entropy computes Shannon entropy in bits
func entropy(valueCounts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, count := range valueCounts {
		if count > 0 {
			p := float64(count) / float64(total)
			h -= p * math.Log2(p)
		}
	}
	return h
}

// qualityScore penalises missing values and extreme entropy
func qualityScore(profile ColumnProfile) float64 {
	score := 1.0 - profile.NullRate

	// Ideal entropy is around 3-5 bits
	idealEntropy := 4.0
	entropyPenalty := math.Abs(profile.Entropy-idealEntropy) / 10.0
	score *= math.Max(0.5, 1.0-entropyPenalty)

	return math.Max(0, math.Min(1, score))
}
