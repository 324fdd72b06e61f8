package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"dashboard-go/internal/aggregate"
	"dashboard-go/internal/dashboard"
)

// ============================================================================
// RENDER: PNG charts for a dashboard report
// ============================================================================

// ErrNoData is returned when a chart would have nothing to draw.
var ErrNoData = errors.New("no data to chart")

// ErrUnknownChart is returned by Chart for an unsupported name.
var ErrUnknownChart = errors.New("unknown chart")

const (
	Width  = 900
	Height = 500
)

// Charts lists the names accepted by Chart.
var Charts = []string{"stages", "sources", "managers", "daily", "companies", "elapsed"}

// Chart renders one of the dashboard charts of r.
func Chart(w io.Writer, name string, r dashboard.Report) error {
	switch name {
	case "stages":
		return Pie(w, "Leads by stage", r.Stages)
	case "sources":
		return Bar(w, "Leads by source", r.Sources)
	case "managers":
		return StackedBar(w, "Stages per manager", r.ManagerStages)
	case "daily":
		return Line(w, "Leads created per day", r.Daily)
	case "companies":
		return Bar(w, "Top companies", r.TopCompanies)
	case "elapsed":
		return Histogram(w, "Days from creation to last change", r.ElapsedHistogram)
	}
	return fmt.Errorf("%w: %q", ErrUnknownChart, name)
}

// Pie draws each entry as a slice.
func Pie(w io.Writer, title string, res aggregate.Result) error {
	if res.Total() == 0 {
		return ErrNoData
	}
	values := make([]chart.Value, 0, res.Len())
	for _, e := range res.Entries {
		values = append(values, chart.Value{Value: float64(e.Count), Label: fmt.Sprintf("%s (%d)", e.Label(), e.Count)})
	}
	pie := chart.PieChart{
		Title:  title,
		Width:  Height,
		Height: Height,
		Values: values,
	}
	return pie.Render(chart.PNG, w)
}

// Bar draws one bar per entry in result order.
func Bar(w io.Writer, title string, res aggregate.Result) error {
	if res.Len() == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, 0, res.Len())
	top := 0
	for _, e := range res.Entries {
		bars = append(bars, chart.Value{Value: float64(e.Count), Label: e.Label()})
		top = max(top, e.Count)
	}
	return barChart(w, title, bars, top)
}

// Histogram draws one bar per bin labelled with its range.
func Histogram(w io.Writer, title string, bins []aggregate.Bin) error {
	if len(bins) == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, 0, len(bins))
	top := 0
	for _, b := range bins {
		bars = append(bars, chart.Value{
			Value: float64(b.Count),
			Label: fmt.Sprintf("%.0f-%.0f", math.Floor(b.Lower), math.Ceil(b.Upper)),
		})
		top = max(top, b.Count)
	}
	return barChart(w, title, bars, top)
}

func barChart(w io.Writer, title string, bars []chart.Value, top int) error {
	bc := chart.BarChart{
		Title:    title,
		Width:    Width,
		Height:   Height,
		BarWidth: barWidth(len(bars)),
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Bottom: 20},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: yMax(top)},
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

// StackedBar draws one bar per first key part, stacked by the second.
func StackedBar(w io.Writer, title string, res aggregate.Result) error {
	rows, cols, counts := res.CrossTab()
	if len(rows) == 0 {
		return ErrNoData
	}
	bars := make([]chart.StackedBar, len(rows))
	for i, name := range rows {
		values := make([]chart.Value, 0, len(cols))
		for j, col := range cols {
			if counts[i][j] == 0 {
				continue
			}
			values = append(values, chart.Value{Value: float64(counts[i][j]), Label: col})
		}
		bars[i] = chart.StackedBar{Name: name, Values: values}
	}
	sbc := chart.StackedBarChart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		BarSpacing: 20,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: bars,
	}
	return sbc.Render(chart.PNG, w)
}

// Line draws the daily series as a time series.
func Line(w io.Writer, title string, series []aggregate.DayCount) error {
	if len(series) == 0 {
		return ErrNoData
	}
	xs := make([]time.Time, 0, len(series)+1)
	ys := make([]float64, 0, len(series)+1)
	top := 0
	for _, d := range series {
		xs = append(xs, d.Day)
		ys = append(ys, float64(d.Count))
		top = max(top, d.Count)
	}
	// A single point has no x range; extend it by a day.
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}

	ch := chart.Chart{
		Title:  title,
		Width:  Width,
		Height: Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 20},
		},
		XAxis: chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: yMax(top)}},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Leads", XValues: xs, YValues: ys},
		},
	}
	return ch.Render(chart.PNG, w)
}

func yMax(top int) float64 {
	if top <= 0 {
		return 1
	}
	return math.Ceil(float64(top) * 1.1)
}

func barWidth(n int) int {
	if n <= 0 {
		return 40
	}
	return max(10, min(60, (Width-100)/n-10))
}
