package dashboard

import (
	"fmt"
	"log"
	"time"

	"dashboard-go/internal/filter"
	"dashboard-go/internal/schema"
	"dashboard-go/internal/table"
)

// ============================================================================
// DASHBOARD: Load once, filter and aggregate on every selection change
// ============================================================================
// Load runs schema resolution and date coercion. Evaluate never returns an
// error: everything that goes wrong while aggregating ends up in
// Report.Problems.
// ============================================================================

// Engine holds the load-time settings shared by every dataset it produces.
type Engine struct {
	Fields     []schema.Field
	Mode       schema.Mode
	Parser     *table.DateParser
	NullPolicy filter.NullPolicy
}

// NewEngine returns an engine for CRM lead exports with day-first dates,
// alias-only resolution and strict null handling.
func NewEngine() *Engine {
	return &Engine{
		Fields:     schema.LeadFields,
		Mode:       schema.ModeAlias,
		Parser:     table.NewDateParser(table.DayFirst),
		NullPolicy: filter.NullStrict,
	}
}

// Dataset is one loaded table with logical column names and parsed dates.
// It is read-only after Load.
type Dataset struct {
	table    *table.Table
	mapping  schema.Mapping
	fields   []schema.Field
	base     *filter.Set
	warnings []filter.DateParseWarning
	loaded   time.Time
}

// Load validates t and prepares it for filtering. It fails with an
// EmptyInputError or a ResolutionError before any aggregation happens.
func (e *Engine) Load(t *table.Table) (ds *Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dashboard] recovered panic during load: %v", r)
			ds, err = nil, Problem{Code: CodeInternal, Message: fmt.Sprintf("load failed: %v", r)}
		}
	}()

	if err := table.CheckNotEmpty(t); err != nil {
		return nil, err
	}

	conformed, mapping, err := schema.Conform(t, e.Fields, e.Mode)
	if err != nil {
		return nil, err
	}

	parser := e.Parser
	if parser == nil {
		parser = table.NewDateParser(table.DayFirst)
	}

	var present []schema.Field
	for _, f := range e.Fields {
		if !conformed.Has(f.Name) {
			continue
		}
		present = append(present, f)
		if f.Kind != schema.KindDate {
			continue
		}
		var parsed int
		conformed, parsed, err = conformed.ParseTimes(f.Name, parser)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		log.Printf("[Dashboard] %s: parsed %d of %d dates", f.Name, parsed, conformed.Len())
	}

	base, warnings := filter.Initialize(conformed, present, filter.WithNullPolicy(e.NullPolicy))
	for _, w := range warnings {
		log.Printf("[Dashboard] warning: %v", w)
	}

	return &Dataset{
		table:    conformed,
		mapping:  mapping,
		fields:   present,
		base:     base,
		warnings: warnings,
		loaded:   time.Now(),
	}, nil
}

// Table returns the conformed table.
func (d *Dataset) Table() *table.Table { return d.table }

// Mapping returns how logical fields were bound.
func (d *Dataset) Mapping() schema.Mapping { return d.mapping }

// Fields returns the logical fields present in the dataset.
func (d *Dataset) Fields() []schema.Field { return append([]schema.Field(nil), d.fields...) }

// LoadedAt is when the dataset was built.
func (d *Dataset) LoadedAt() time.Time { return d.loaded }

// Filters returns the default filter set and the date warnings raised while
// building it.
func (d *Dataset) Filters() (*filter.Set, []filter.DateParseWarning) {
	return d.base, append([]filter.DateParseWarning(nil), d.warnings...)
}

// Apply filters the dataset. A nil set means the defaults.
func (d *Dataset) Apply(set *filter.Set) *table.Table {
	if set == nil {
		set = d.base
	}
	return filter.Apply(d.table, set)
}

// Has reports whether a logical field is present.
func (d *Dataset) Has(field string) bool { return d.table.Has(field) }
