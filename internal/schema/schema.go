package schema

// ============================================================================
// SCHEMA: Logical fields and the alias table that binds them to headers
// ============================================================================
// A Field names a business column ("Stage") independent of the header text
// a given export uses. Aliases are tried in priority order.
// ============================================================================

// Kind tells downstream consumers how a logical field is used.
type Kind string

const (
	KindCategorical Kind = "categorical" // multi-select filter, count-by charts
	KindDate        Kind = "date"        // date-range filter, daily series
	KindText        Kind = "text"        // shown and counted, not filtered
)

// Field is one logical column with the header spellings that may carry it.
// Unfiltered fields are typed and aggregated but get no filter control.
type Field struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases"`
	Kind       Kind     `json:"kind"`
	Required   bool     `json:"required"`
	Unfiltered bool     `json:"unfiltered,omitempty"`
}

// Candidates returns the logical name followed by its aliases, deduplicated.
func (f Field) Candidates() []string {
	out := make([]string, 0, len(f.Aliases)+1)
	seen := map[string]bool{}
	for _, c := range append([]string{f.Name}, f.Aliases...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Logical field names of the leads dataset.
const (
	Stage       = "Stage"
	Source      = "Source"
	Responsible = "Responsible"
	Company     = "Company name"
	CreatedAt   = "Date of creation"
	ModifiedAt  = "Date modified"
)

// LeadFields is the alias table for CRM lead exports.
var LeadFields = []Field{
	{Name: Stage, Aliases: []string{"stage", "Lead stage", "Status", "status", "stage_name"}, Kind: KindCategorical, Required: true},
	{Name: Source, Aliases: []string{"source", "Lead source", "Source of lead", "source_name"}, Kind: KindCategorical, Required: true},
	{Name: Responsible, Aliases: []string{"responsible", "Responsible person", "Manager", "manager", "Assigned to"}, Kind: KindCategorical, Required: true},
	{Name: Company, Aliases: []string{"Company", "company", "company_name", "Company Name"}, Kind: KindText, Required: false},
	{Name: CreatedAt, Aliases: []string{"Created", "created", "Created at", "created_at", "Date created", "Creation date"}, Kind: KindDate, Required: true},
	{Name: ModifiedAt, Aliases: []string{"Modified", "modified", "Modified at", "modified_at", "Date of modification", "Last modified"}, Kind: KindDate, Unfiltered: true},
}

// Names returns the logical names of fields in order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// Lookup finds a field declaration by logical name.
func Lookup(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
