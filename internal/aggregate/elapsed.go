package aggregate

import (
	"fmt"
	"math"
	"sort"

	"dashboard-go/internal/table"
)

// Elapsed holds the whole-day differences end - start for every measurable
// row, in row order, plus the number of rows that could not be measured.
type Elapsed struct {
	Days         []int `json:"days"`
	Unmeasurable int   `json:"unmeasurable"`
}

// ElapsedDays measures end - start per row in whole days, rounding down.
// A row with a missing or unparsed value on either side is counted in
// Unmeasurable instead.
func ElapsedDays(t *table.Table, start, end string) Elapsed {
	var out Elapsed
	for i := 0; i < t.Len(); i++ {
		from, ok1 := t.Value(i, start).TimeValue()
		to, ok2 := t.Value(i, end).TimeValue()
		if !ok1 || !ok2 {
			out.Unmeasurable++
			continue
		}
		days := int(math.Floor(to.Sub(from).Hours() / 24))
		out.Days = append(out.Days, days)
	}
	return out
}

// Summary describes the distribution of measured durations.
type Summary struct {
	Count        int     `json:"count"`
	Unmeasurable int     `json:"unmeasurable"`
	Min          int     `json:"min"`
	Max          int     `json:"max"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
}

func (e Elapsed) Summary() Summary {
	s := Summary{Count: len(e.Days), Unmeasurable: e.Unmeasurable}
	if len(e.Days) == 0 {
		return s
	}
	sorted := append([]int(nil), e.Days...)
	sort.Ints(sorted)

	sum := 0
	for _, d := range sorted {
		sum += d
	}
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	s.Mean = float64(sum) / float64(len(sorted))

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		s.Median = float64(sorted[mid-1]+sorted[mid]) / 2
	} else {
		s.Median = float64(sorted[mid])
	}
	return s
}

// Floats converts the measured days for Histogram.
func (e Elapsed) Floats() []float64 {
	out := make([]float64, len(e.Days))
	for i, d := range e.Days {
		out[i] = float64(d)
	}
	return out
}

// Bin is one equal-width histogram bucket covering [Lower, Upper).
// The last bin also includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram splits values into the given number of equal-width bins
// between their min and max.
func Histogram(values []float64, bins int) ([]Bin, error) {
	if bins <= 0 {
		return nil, &InvalidArgumentError{Param: "bins", Reason: fmt.Sprintf("must be positive, got %d", bins)}
	}
	if len(values) == 0 {
		return nil, nil
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	width := (maxVal - minVal) / float64(bins)
	if width == 0 {
		width = 1
	}

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = minVal + float64(i)*width
		out[i].Upper = minVal + float64(i+1)*width
	}
	for _, v := range values {
		b := int((v - minVal) / width)
		if b >= bins {
			b = bins - 1
		}
		out[b].Count++
	}
	return out, nil
}
