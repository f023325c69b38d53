package core

// validation.go provides stateless per-row rule checks.
//
// Four rule types run independently over every row, each appending its own
// reasons, so a row can collect several failures in one pass:
//  1. Required: column present and value non-blank
//  2. Type: non-empty values parse as the configured type
//  3. Lookup: non-empty values belong to the attribute's allowed set
//  4. Uniqueness: composite keys are unique within a component

import (
	"fmt"
	"strings"
)

// FieldValidator applies the stateless rules of a compiled rule set.
type FieldValidator struct {
	rules *compiledRules
}

// NewFieldValidator compiles the rule set and returns a validator.
// Timeline bindings are ignored here; only the rule set itself can make this fail.
func NewFieldValidator(rs RuleSet) (*FieldValidator, error) {
	rs.Timeline = TimelineColumns{}
	rules, err := compileRules(rs, ActionClassification{})
	if err != nil {
		return nil, err
	}
	return &FieldValidator{rules: rules}, nil
}

// Validate returns a new slice with failure reasons appended.
// The input slice is not modified.
func (v *FieldValidator) Validate(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	v.checkRequired(out)
	v.checkTypes(out)
	v.checkLookups(out)
	v.checkUniqueness(out)
	return out
}

func (v *FieldValidator) checkRequired(rows []Row) {
	for i := range rows {
		for _, col := range v.rules.set.Required {
			val, ok := rows[i].Lookup(col)
			switch {
			case !ok:
				rows[i] = rows[i].WithReason(Reason{
					Kind:    SchemaError,
					Field:   col,
					Message: "missing required column",
				})
			case strings.TrimSpace(val) == "":
				rows[i] = rows[i].WithReason(Reason{
					Kind:    SchemaError,
					Field:   col,
					Message: "required field is empty",
				})
			}
		}
	}
}

func (v *FieldValidator) checkTypes(rows []Row) {
	for i := range rows {
		schema := rows[i].Schema()
		if schema == nil {
			continue
		}
		for pos, col := range schema.Columns {
			ft, ok := v.rules.typeOf(col)
			if !ok || ft == FieldText {
				continue
			}
			val := rows[i].values[pos]
			if msg := ValidateCell(val, ft); msg != "" {
				rows[i] = rows[i].WithReason(Reason{
					Kind:    FormatError,
					Field:   col,
					Message: fmt.Sprintf("%s: %q", msg, val),
				})
			}
		}
	}
}

func (v *FieldValidator) checkLookups(rows []Row) {
	for _, lookup := range v.rules.lookups {
		// An attribute without configured values means "no validation".
		if len(lookup.allowed) == 0 {
			continue
		}
		for i := range rows {
			val := strings.TrimSpace(rows[i].Get(lookup.attribute))
			if val == "" {
				continue
			}
			if _, ok := lookup.allowed[strings.ToLower(val)]; ok {
				continue
			}
			rows[i] = rows[i].WithReason(Reason{
				Kind:    LookupViolation,
				Field:   lookup.attribute,
				Message: fmt.Sprintf("value %q is not in the allowed list (%s)", val, summarizeValues(lookup.display, 10)),
			})
		}
	}
}

// checkUniqueness flags every row sharing a composite key, the first
// occurrence included. Keys are scoped to the row's component; rows whose key
// columns are all empty are left to the required check.
func (v *FieldValidator) checkUniqueness(rows []Row) {
	for _, group := range v.rules.set.Unique {
		seen := make(map[string][]int)
		var order []string

		for i := range rows {
			key, ok := compositeKey(rows[i], group)
			if !ok {
				continue
			}
			scoped := rows[i].Component() + "\x00" + key
			if _, exists := seen[scoped]; !exists {
				order = append(order, scoped)
			}
			seen[scoped] = append(seen[scoped], i)
		}

		label := strings.Join(group, UniqueKeySeparator)
		for _, scoped := range order {
			idxs := seen[scoped]
			if len(idxs) < 2 {
				continue
			}
			key := scoped[strings.IndexByte(scoped, 0)+1:]
			for _, i := range idxs {
				rows[i] = rows[i].WithReason(Reason{
					Kind:    UniquenessViolation,
					Field:   label,
					Message: fmt.Sprintf("duplicate key %q (appears %d times)", key, len(idxs)),
				})
			}
		}
	}
}

// compositeKey joins the group's values; ok is false when all are empty.
func compositeKey(row Row, group []string) (string, bool) {
	parts := make([]string, len(group))
	nonEmpty := false
	for j, col := range group {
		parts[j] = strings.TrimSpace(row.Get(col))
		if parts[j] != "" {
			nonEmpty = true
		}
	}
	return strings.Join(parts, UniqueKeySeparator), nonEmpty
}

// summarizeValues renders at most limit values for an error message.
func summarizeValues(values []string, limit int) string {
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s, ... %d more", strings.Join(values[:limit], ", "), len(values)-limit)
}
