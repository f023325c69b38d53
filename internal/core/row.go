package core

// row.go defines the typed row record that flows through the pipeline.
//
// Rows are values. Every transformation (adding a failure reason, attaching a
// derived field) returns a new Row and leaves the receiver untouched, so a
// stage can never corrupt rows another stage is still reading.

import (
	"strings"
)

// ReasonKind classifies why a row failed.
type ReasonKind string

const (
	SchemaError         ReasonKind = "schema"
	FormatError         ReasonKind = "format"
	LookupViolation     ReasonKind = "lookup"
	UniquenessViolation ReasonKind = "uniqueness"
	SequenceViolation   ReasonKind = "sequence"
	CascadeFailure      ReasonKind = "cascade"
)

// ReasonSeparator joins multiple reasons into the failed-row reason string.
const ReasonSeparator = "; "

// Reason is a single human-readable failure attached to a row.
type Reason struct {
	Kind    ReasonKind `json:"kind"`
	Field   string     `json:"field,omitempty"`
	Message string     `json:"message"`
}

func (r Reason) String() string {
	if r.Field != "" {
		return r.Field + ": " + r.Message
	}
	return r.Message
}

// Schema is the resolved column layout of one source component.
// Columns holds resolved names (expected names where matched), Header the
// original header text in the same positions.
type Schema struct {
	Component string
	Columns   []string
	Header    []string
	index     map[string]int
}

// NewSchema builds a schema and its case-insensitive field index.
// If header is nil the resolved columns double as the header.
func NewSchema(component string, columns, header []string) *Schema {
	if header == nil {
		header = columns
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		key := strings.ToLower(c)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return &Schema{
		Component: component,
		Columns:   columns,
		Header:    header,
		index:     idx,
	}
}

// Index returns the position of a field, matched case-insensitively.
func (s *Schema) Index(field string) (int, bool) {
	if s == nil || field == "" {
		return 0, false
	}
	i, ok := s.index[strings.ToLower(field)]
	return i, ok
}

// Has reports whether the schema contains the field.
func (s *Schema) Has(field string) bool {
	_, ok := s.Index(field)
	return ok
}

// Row is one normalized input record.
type Row struct {
	Position int // position across the whole run, used for stable ordering
	Line     int // 1-based line in the component source (header is line 1)

	schema  *Schema
	values  []string
	reasons []Reason
	derived map[string]string
}

// NewRow creates a row. values must be aligned with schema.Columns.
func NewRow(schema *Schema, position, line int, values []string) Row {
	return Row{
		Position: position,
		Line:     line,
		schema:   schema,
		values:   values,
	}
}

// Component returns the originating source component name.
func (r Row) Component() string {
	if r.schema == nil {
		return ""
	}
	return r.schema.Component
}

// Schema returns the row's column layout.
func (r Row) Schema() *Schema {
	return r.schema
}

// Lookup returns the value of a field and whether the field exists.
func (r Row) Lookup(field string) (string, bool) {
	i, ok := r.schema.Index(field)
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Get returns the value of a field, or "" if absent.
func (r Row) Get(field string) string {
	v, _ := r.Lookup(field)
	return v
}

// Values returns a copy of the row's values in schema order.
func (r Row) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Map returns the row as resolved column name -> value.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	if r.schema == nil {
		return m
	}
	for i, c := range r.schema.Columns {
		if i < len(r.values) {
			m[c] = r.values[i]
		}
	}
	return m
}

// Reasons returns a copy of the accumulated failure reasons.
func (r Row) Reasons() []Reason {
	out := make([]Reason, len(r.reasons))
	copy(out, r.reasons)
	return out
}

// Failed reports whether the row carries any failure reason.
func (r Row) Failed() bool {
	return len(r.reasons) > 0
}

// HasReasonKind reports whether the row carries a reason of the given kind.
func (r Row) HasReasonKind(kind ReasonKind) bool {
	for _, reason := range r.reasons {
		if reason.Kind == kind {
			return true
		}
	}
	return false
}

// ReasonText joins all reasons into a single semicolon-separated string.
func (r Row) ReasonText() string {
	parts := make([]string, len(r.reasons))
	for i, reason := range r.reasons {
		parts[i] = reason.String()
	}
	return strings.Join(parts, ReasonSeparator)
}

// Derived returns a derived field value computed by the pipeline.
func (r Row) Derived(field string) (string, bool) {
	v, ok := r.derived[strings.ToLower(field)]
	return v, ok
}

// WithReason returns a copy of the row with reason appended.
func (r Row) WithReason(reason Reason) Row {
	reasons := make([]Reason, len(r.reasons), len(r.reasons)+1)
	copy(reasons, r.reasons)
	r.reasons = append(reasons, reason)
	return r
}

// WithDerived returns a copy of the row with a derived field set.
func (r Row) WithDerived(field, value string) Row {
	derived := make(map[string]string, len(r.derived)+1)
	for k, v := range r.derived {
		derived[k] = v
	}
	derived[strings.ToLower(field)] = value
	r.derived = derived
	return r
}

// OutputValue returns the value to export for a column: a derived value when
// one was computed, the input value otherwise.
func (r Row) OutputValue(i int) string {
	if r.schema != nil && i < len(r.schema.Columns) {
		if v, ok := r.Derived(r.schema.Columns[i]); ok {
			return v
		}
	}
	if i < len(r.values) {
		return r.values[i]
	}
	return ""
}
