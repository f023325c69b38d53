// Package core provides the validation engine for worker lifecycle records.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"fmt"
	"strings"
	"time"
)

// FieldType represents the expected data type for a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldFloat
	FieldBool
	FieldDate
)

// ParseFieldType converts a configured type name into a FieldType.
// Accepts the common spellings used in rule sheets ("int", "number", "datetime", ...).
func ParseFieldType(name string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "string", "varchar", "char":
		return FieldText, nil
	case "integer", "int", "whole number":
		return FieldInteger, nil
	case "float", "decimal", "number", "numeric":
		return FieldFloat, nil
	case "boolean", "bool":
		return FieldBool, nil
	case "date", "datetime", "timestamp":
		return FieldDate, nil
	default:
		return FieldText, fmt.Errorf("unknown data type %q", name)
	}
}

// String returns a human-readable name for a field type.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "boolean"
	case FieldDate:
		return "date"
	default:
		return "value"
	}
}

// ComponentInput is one source component (e.g. Worker, Assignment) as handed
// over by a parser: its original header line and the records beneath it.
type ComponentInput struct {
	Name    string     `json:"name"`
	Header  []string   `json:"header"`
	Records [][]string `json:"records"`
}

// Request describes a single validation run.
// Profile selects registered rules; Rules and Actions, when set, replace the
// profile's rules and action classification respectively.
type Request struct {
	Profile    string                `json:"profile,omitempty"`
	Rules      *RuleSet              `json:"rules,omitempty"`
	Actions    *ActionClassification `json:"actions,omitempty"`
	Components []ComponentInput      `json:"components"`
}

// TotalRecords returns the number of records across all components.
func (r Request) TotalRecords() int {
	n := 0
	for _, c := range r.Components {
		n += len(c.Records)
	}
	return n
}

// RunPhase indicates the pipeline stage a run is in.
type RunPhase string

const (
	PhaseNormalizing  RunPhase = "normalizing"
	PhaseFieldChecks  RunPhase = "field_checks"
	PhaseTimeline     RunPhase = "timeline"
	PhaseCascade      RunPhase = "cascade"
	PhasePartitioning RunPhase = "partitioning"
)

// Partition is one export bundle of passed rows.
type Partition struct {
	Key     string `json:"key"`
	Rows    int    `json:"rows"`
	Content string `json:"content"`
}

// Result is the outcome of one validation run. It is built fresh per run and
// never shared between runs.
type Result struct {
	RunID             string
	Profile           string
	IdentityField     string // column grouping rows into one person; may be empty
	Rows              []Row
	UnresolvedColumns map[string][]string // component -> raw header names left unresolved
	Partitions        []Partition
	StartedAt         time.Time
	Duration          time.Duration
}

// Passed returns the rows without any failure reason, in input order.
func (r *Result) Passed() []Row {
	var out []Row
	for _, row := range r.Rows {
		if !row.Failed() {
			out = append(out, row)
		}
	}
	return out
}

// Failed returns the rows carrying at least one failure reason, in input order.
func (r *Result) Failed() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Failed() {
			out = append(out, row)
		}
	}
	return out
}

// FailedCount returns the number of failed rows.
func (r *Result) FailedCount() int {
	n := 0
	for _, row := range r.Rows {
		if row.Failed() {
			n++
		}
	}
	return n
}

// PassedCount returns the number of passed rows.
func (r *Result) PassedCount() int {
	return len(r.Rows) - r.FailedCount()
}

// LegalEmployerReport is the outcome of a legal employer continuity check.
type LegalEmployerReport struct {
	RunID         string
	Profile       string
	IdentityField string
	Status        string // "passed" or "failed"
	TotalRows     int
	Inconsistent  []Row
	Duration      time.Duration
}
