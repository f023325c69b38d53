package core

// rules.go holds the rule set and action classification supplied per run.
//
// Both are plain configuration values (JSON/YAML friendly). Before a run they
// are compiled once into an immutable form; compilation is the only place a
// run can fail as a whole.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedRuleSet is returned when the rule set itself is unusable.
// It aborts the run before any row is inspected.
var ErrMalformedRuleSet = errors.New("malformed rule set")

// Defaults applied when a rule set leaves the field unset.
const (
	DefaultTerminationField = "ActualTerminationDate"
	DefaultDateLayout       = "2006/01/02"
	UniqueKeySeparator      = "|"
)

// TimelineColumns binds the timeline engine to input columns.
type TimelineColumns struct {
	Identity      string `json:"identity" yaml:"identity"`
	Action        string `json:"action" yaml:"action"`
	EffectiveDate string `json:"effectiveDate" yaml:"effectiveDate"`
	LegalEmployer string `json:"legalEmployer,omitempty" yaml:"legalEmployer"`
}

// Enabled reports whether timeline validation is configured.
func (c TimelineColumns) Enabled() bool {
	return c.Identity != "" || c.Action != "" || c.EffectiveDate != ""
}

// LookupTable lists the allowed values for one attribute. Values can be given
// directly or as records carrying ValueColumn, the way lookup sheets arrive.
type LookupTable struct {
	Attribute   string              `json:"attribute" yaml:"attribute"`
	ValueColumn string              `json:"valueColumn,omitempty" yaml:"valueColumn"`
	Values      []string            `json:"values,omitempty" yaml:"values"`
	Records     []map[string]string `json:"records,omitempty" yaml:"records"`
}

// RuleSet is the read-only rule configuration for a run.
type RuleSet struct {
	Columns          []string          `json:"columns,omitempty" yaml:"columns"`
	Required         []string          `json:"required,omitempty" yaml:"required"`
	Types            map[string]string `json:"types,omitempty" yaml:"types"`
	Lookups          []LookupTable     `json:"lookups,omitempty" yaml:"lookups"`
	Unique           [][]string        `json:"unique,omitempty" yaml:"unique"`
	Timeline         TimelineColumns   `json:"timeline" yaml:"timeline"`
	PartitionField   string            `json:"partitionField,omitempty" yaml:"partitionField"`
	TerminationField string            `json:"terminationField,omitempty" yaml:"terminationField"`
	DateLayout       string            `json:"dateLayout,omitempty" yaml:"dateLayout"`
}

// Validate checks the rule set and action classification without running anything.
func (rs RuleSet) Validate(actions ActionClassification) error {
	_, err := compileRules(rs, actions)
	return err
}

// ActionClassification groups action codes by lifecycle meaning.
// Codes may overlap; see ActionKind for precedence.
type ActionClassification struct {
	Hire                  []string `json:"hire" yaml:"hire"`
	Rehire                []string `json:"rehire" yaml:"rehire"`
	Termination           []string `json:"termination" yaml:"termination"`
	GlobalTransfer        []string `json:"globalTransfer" yaml:"globalTransfer"`
	AllowedEmployerChange []string `json:"allowedEmployerChange,omitempty" yaml:"allowedEmployerChange"`
}

// ActionKind is the lifecycle meaning of an action code.
type ActionKind int

const (
	ActionOther ActionKind = iota
	ActionHire
	ActionRehire
	ActionTermination
	ActionGlobalTransfer
	ActionAllowedChange
)

// actionSets is the compiled, immutable form of ActionClassification.
type actionSets struct {
	kinds map[string]ActionKind
	hires []string
}

// compile builds the lookup map. On overlap the first set listed wins:
// Termination, then Hire, Rehire, GlobalTransfer, AllowedEmployerChange.
func (c ActionClassification) compile() actionSets {
	sets := actionSets{kinds: make(map[string]ActionKind)}
	add := func(codes []string, kind ActionKind) {
		for _, code := range codes {
			key := normalizeCode(code)
			if key == "" {
				continue
			}
			if _, taken := sets.kinds[key]; !taken {
				sets.kinds[key] = kind
			}
		}
	}
	add(c.Termination, ActionTermination)
	add(c.Hire, ActionHire)
	add(c.Rehire, ActionRehire)
	add(c.GlobalTransfer, ActionGlobalTransfer)
	add(c.AllowedEmployerChange, ActionAllowedChange)

	for _, code := range c.Hire {
		if sets.kinds[normalizeCode(code)] == ActionHire {
			sets.hires = append(sets.hires, strings.TrimSpace(code))
		}
	}
	return sets
}

// Kind classifies an action code.
func (s actionSets) Kind(code string) ActionKind {
	return s.kinds[normalizeCode(code)]
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// compiledRules is the immutable form of a RuleSet used by the validators.
type compiledRules struct {
	set              RuleSet
	types            map[string]FieldType // lower-cased column -> type
	lookups          []compiledLookup
	actions          actionSets
	terminationField string
	dateLayout       string
}

type compiledLookup struct {
	attribute string
	allowed   map[string]struct{} // lower-cased, trimmed
	display   []string
}

func compileRules(rs RuleSet, actions ActionClassification) (*compiledRules, error) {
	c := &compiledRules{
		set:              rs,
		types:            make(map[string]FieldType, len(rs.Types)),
		actions:          actions.compile(),
		terminationField: rs.TerminationField,
		dateLayout:       rs.DateLayout,
	}
	if c.terminationField == "" {
		c.terminationField = DefaultTerminationField
	}
	if c.dateLayout == "" {
		c.dateLayout = DefaultDateLayout
	}

	var problems []string

	typeCols := make([]string, 0, len(rs.Types))
	for col := range rs.Types {
		typeCols = append(typeCols, col)
	}
	sort.Strings(typeCols)
	for _, col := range typeCols {
		ft, err := ParseFieldType(rs.Types[col])
		if err != nil {
			problems = append(problems, fmt.Sprintf("column %q: %v", col, err))
			continue
		}
		c.types[strings.ToLower(strings.TrimSpace(col))] = ft
	}

	for _, table := range rs.Lookups {
		lookup, err := compileLookup(table)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		c.lookups = append(c.lookups, lookup)
	}

	for i, group := range rs.Unique {
		if len(group) == 0 {
			problems = append(problems, fmt.Sprintf("uniqueness group %d has no columns", i+1))
		}
		for _, col := range group {
			if strings.TrimSpace(col) == "" {
				problems = append(problems, fmt.Sprintf("uniqueness group %d has an empty column name", i+1))
				break
			}
		}
	}

	if tl := rs.Timeline; tl.Enabled() {
		if tl.Identity == "" || tl.Action == "" || tl.EffectiveDate == "" {
			problems = append(problems, "timeline requires identity, action and effectiveDate columns")
		}
		if len(c.actions.hires) == 0 {
			problems = append(problems, "timeline requires at least one hire action code")
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRuleSet, strings.Join(problems, "; "))
	}
	return c, nil
}

// compileLookup collects the allowed values of a lookup table. A table with
// records but no usable value column is malformed; a table with no values at
// all compiles to an empty set and is skipped during validation.
func compileLookup(t LookupTable) (compiledLookup, error) {
	attr := strings.TrimSpace(t.Attribute)
	if attr == "" {
		return compiledLookup{}, fmt.Errorf("lookup table has no attribute")
	}

	l := compiledLookup{attribute: attr, allowed: make(map[string]struct{})}
	addValue := func(v string) {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			return
		}
		if _, seen := l.allowed[key]; !seen {
			l.allowed[key] = struct{}{}
			l.display = append(l.display, strings.TrimSpace(v))
		}
	}

	for _, v := range t.Values {
		addValue(v)
	}

	if len(t.Records) > 0 {
		if strings.TrimSpace(t.ValueColumn) == "" {
			return compiledLookup{}, fmt.Errorf("lookup table %q has records but no value column", attr)
		}
		for i, rec := range t.Records {
			v, ok := lookupRecordValue(rec, t.ValueColumn)
			if !ok {
				return compiledLookup{}, fmt.Errorf("lookup table %q: record %d has no %q column", attr, i+1, t.ValueColumn)
			}
			addValue(v)
		}
	}
	return l, nil
}

func lookupRecordValue(rec map[string]string, column string) (string, bool) {
	if v, ok := rec[column]; ok {
		return v, true
	}
	for k, v := range rec {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(column)) {
			return v, true
		}
	}
	return "", false
}

// typeOf returns the configured type for a column.
func (c *compiledRules) typeOf(column string) (FieldType, bool) {
	ft, ok := c.types[strings.ToLower(column)]
	return ft, ok
}
