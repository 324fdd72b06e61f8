package dashboard

import (
	"fmt"
	"log"

	"dashboard-go/internal/aggregate"
	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
)

// Options tune Evaluate.
type Options struct {
	TopN int `json:"top_n"`
	Bins int `json:"bins"`
}

// DefaultOptions mirrors the stock dashboard: top 10 companies and a ten
// bin elapsed-days histogram.
var DefaultOptions = Options{TopN: 10, Bins: 10}

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	Leads     int `json:"leads"`
	Companies int `json:"companies"`
	Managers  int `json:"managers"`
	Sources   int `json:"sources"`
}

// Report is everything the dashboard shows for one filter selection.
type Report struct {
	Rows             int                  `json:"rows"`
	KPIs             KPIs                 `json:"kpis"`
	Stages           aggregate.Result     `json:"stages"`
	Sources          aggregate.Result     `json:"sources"`
	ManagerStages    aggregate.Result     `json:"manager_stages"`
	TopCompanies     aggregate.Result     `json:"top_companies"`
	Daily            []aggregate.DayCount `json:"daily"`
	Elapsed          *aggregate.Summary   `json:"elapsed,omitempty"`
	ElapsedHistogram []aggregate.Bin      `json:"elapsed_histogram,omitempty"`
	Warnings         []Problem            `json:"warnings,omitempty"`
	Problems         []Problem            `json:"problems,omitempty"`
}

// Evaluate filters the dataset with set and runs every reducer the fields
// allow. A reducer that fails or panics is reported in Problems and the
// others still run.
func (d *Dataset) Evaluate(set *filter.Set, opts Options) Report {
	var r Report
	for _, w := range d.warnings {
		r.Warnings = append(r.Warnings, Describe(w))
	}

	view := d.Apply(set)
	r.Rows = view.Len()

	d.section(&r, "kpis", func() error {
		r.KPIs = KPIs{
			Leads:     view.Len(),
			Companies: aggregate.Distinct(view, schema.Company),
			Managers:  aggregate.Distinct(view, schema.Responsible),
			Sources:   aggregate.Distinct(view, schema.Source),
		}
		return nil
	})
	d.section(&r, "stages", func() error {
		r.Stages = aggregate.CountBy(view, schema.Stage)
		return nil
	})
	d.section(&r, "sources", func() error {
		r.Sources = aggregate.CountBy(view, schema.Source)
		return nil
	})
	d.section(&r, "manager_stages", func() error {
		r.ManagerStages = aggregate.CountByPair(view, schema.Responsible, schema.Stage)
		return nil
	})
	if d.Has(schema.Company) {
		d.section(&r, "top_companies", func() error {
			var err error
			r.TopCompanies, err = aggregate.TopN(view, schema.Company, opts.TopN)
			return err
		})
	}
	d.section(&r, "daily", func() error {
		r.Daily = aggregate.DailySeries(view, schema.CreatedAt)
		return nil
	})
	if d.Has(schema.CreatedAt) && d.Has(schema.ModifiedAt) {
		d.section(&r, "elapsed", func() error {
			e := aggregate.ElapsedDays(view, schema.CreatedAt, schema.ModifiedAt)
			s := e.Summary()
			r.Elapsed = &s
			var err error
			r.ElapsedHistogram, err = aggregate.Histogram(e.Floats(), opts.Bins)
			return err
		})
	}
	return r
}

// section runs one reducer and turns its error or panic into a Problem.
func (d *Dataset) section(r *Report, name string, run func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Dashboard] recovered panic in %s: %v", name, rec)
			r.Problems = append(r.Problems, Problem{
				Code:    CodeInternal,
				Message: fmt.Sprintf("%s: %v", name, rec),
			})
		}
	}()
	if err := run(); err != nil {
		r.Problems = append(r.Problems, Describe(err))
	}
}
