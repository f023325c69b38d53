package core

// timeline.go validates each person's action history as a state machine.
//
// Rows are grouped by identity and walked in effective-date order (ties keep
// input order). The walk tracks whether the person is employed and which
// legal employer the current employment belongs to:
//
//	Inactive --Hire/Rehire--> Active --Termination--> Inactive
//	Active --GlobalTransfer--> Active (employer baseline moves silently)
//
// Violations never stop the walk, so one pass reports every problem of an
// identity. The walk also derives the actual termination date for each
// employment cycle.

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimelineValidator checks per-identity chronological consistency.
// By default an identity's timeline is scoped to one source component, since
// sibling components (Worker, Assignment) repeat the same actions.
type TimelineValidator struct {
	cols             TimelineColumns
	crossComponent   bool
	actions          actionSets
	terminationField string
	dateLayout       string
}

// NewTimelineValidator compiles the timeline part of a rule set.
func NewTimelineValidator(rs RuleSet, actions ActionClassification) (*TimelineValidator, error) {
	rules, err := compileRules(RuleSet{
		Timeline:         rs.Timeline,
		TerminationField: rs.TerminationField,
		DateLayout:       rs.DateLayout,
	}, actions)
	if err != nil {
		return nil, err
	}
	return newTimelineValidator(rules), nil
}

func newTimelineValidator(rules *compiledRules) *TimelineValidator {
	return &TimelineValidator{
		cols:             rules.set.Timeline,
		actions:          rules.actions,
		terminationField: rules.terminationField,
		dateLayout:       rules.dateLayout,
	}
}

// AcrossComponents returns a validator that merges an identity's rows from
// all components into one timeline.
func (v *TimelineValidator) AcrossComponents() *TimelineValidator {
	c := *v
	c.crossComponent = true
	return &c
}

// timelineEntry is one dated row in an identity's history.
type timelineEntry struct {
	idx  int
	date time.Time
}

// identityGroup is one person's rows: all of them, and the dated ones in order.
type identityGroup struct {
	key      string
	members  []int
	timeline []timelineEntry
}

// groupByIdentity builds identity groups in order of first appearance,
// optionally keeping each component's rows apart. Rows without an identity
// are skipped; rows with an unparsable date stay members but are excluded
// from the timeline.
func groupByIdentity(rows []Row, identityField, dateField string, perComponent bool) []*identityGroup {
	byKey := make(map[string]*identityGroup)
	var groups []*identityGroup

	for i, row := range rows {
		key := strings.TrimSpace(row.Get(identityField))
		if key == "" {
			continue
		}
		if perComponent {
			key = row.Component() + "\x00" + key
		}
		g, ok := byKey[key]
		if !ok {
			g = &identityGroup{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, i)
		if d, ok := ParseDate(row.Get(dateField)); ok {
			g.timeline = append(g.timeline, timelineEntry{idx: i, date: d})
		}
	}

	for _, g := range groups {
		sort.SliceStable(g.timeline, func(a, b int) bool {
			return g.timeline[a].date.Before(g.timeline[b].date)
		})
	}
	return groups
}

// Validate returns a new slice with sequence violations appended and
// termination dates derived. The input slice is not modified.
func (v *TimelineValidator) Validate(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	for _, g := range groupByIdentity(out, v.cols.Identity, v.cols.EffectiveDate, !v.crossComponent) {
		v.checkFirstAction(out, g)
		v.walk(out, g)
	}
	return out
}

// checkFirstAction fails every row of the identity when the earliest dated
// row is not a hire.
func (v *TimelineValidator) checkFirstAction(rows []Row, g *identityGroup) {
	if len(g.timeline) == 0 {
		return
	}
	first := rows[g.timeline[0].idx]
	code := strings.TrimSpace(first.Get(v.cols.Action))
	if v.actions.Kind(code) == ActionHire {
		return
	}

	reason := Reason{
		Kind:  SequenceViolation,
		Field: v.cols.Action,
		Message: fmt.Sprintf("first action %q on %s must be a hire action (one of: %s)",
			code, v.format(g.timeline[0].date), strings.Join(v.actions.hires, ", ")),
	}
	for _, i := range g.members {
		rows[i] = rows[i].WithReason(reason)
	}
}

// walk runs the employment state machine over the identity's dated rows.
func (v *TimelineValidator) walk(rows []Row, g *identityGroup) {
	var (
		active      bool
		hasBaseline bool
		baseline    string
		cycle       []int
	)

	for _, e := range g.timeline {
		row := rows[e.idx]
		code := strings.TrimSpace(row.Get(v.cols.Action))
		employer, known := v.employerOf(row)
		kind := v.actions.Kind(code)
		when := v.format(e.date)

		switch kind {
		case ActionHire, ActionRehire:
			// Termination always leaves the person inactive, so an active
			// state here means the previous action was not a termination.
			if active {
				rows[e.idx] = row.WithReason(v.sequence(v.cols.Action,
					"hire without termination: %q on %s while already employed", code, when))
			}
			if known {
				baseline, hasBaseline = employer, true
			}
			active = true
			cycle = append(cycle, e.idx)

		case ActionTermination:
			if !active {
				rows[e.idx] = row.WithReason(v.sequence(v.cols.Action,
					"termination without active employment: %q on %s", code, when))
			} else if known && hasBaseline && !sameEmployer(employer, baseline) {
				rows[e.idx] = row.WithReason(v.sequence(v.cols.LegalEmployer,
					"legal employer mismatch at termination: %q on %s, employment started under %q", employer, when, baseline))
			}

			end := v.format(e.date.AddDate(0, 0, -1))
			for _, i := range cycle {
				rows[i] = rows[i].WithDerived(v.terminationField, end)
			}
			cycle = nil
			baseline, hasBaseline = "", false
			active = false

		case ActionGlobalTransfer:
			if known {
				baseline, hasBaseline = employer, true
			}
			cycle = append(cycle, e.idx)

		default:
			switch {
			case !active:
				rows[e.idx] = row.WithReason(v.sequence(v.cols.Action,
					"action outside active employment: %q on %s", code, when))
			case known && !hasBaseline:
				baseline, hasBaseline = employer, true
			case known && !sameEmployer(employer, baseline):
				if kind != ActionAllowedChange {
					rows[e.idx] = row.WithReason(v.sequence(v.cols.LegalEmployer,
						"legal employer changed mid-employment without valid action: %q on %s changed %q to %q",
						code, when, baseline, employer))
				}
				baseline = employer
			}
		}
	}
}

// employerOf returns the row's legal employer. known is false when employer
// tracking is off or the row's component has no legal employer column; such
// rows neither set nor break the employer baseline.
func (v *TimelineValidator) employerOf(row Row) (employer string, known bool) {
	if v.cols.LegalEmployer == "" {
		return "", false
	}
	employer, known = row.Lookup(v.cols.LegalEmployer)
	return strings.TrimSpace(employer), known
}

func (v *TimelineValidator) sequence(field, format string, args ...any) Reason {
	return Reason{
		Kind:    SequenceViolation,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (v *TimelineValidator) format(t time.Time) string {
	return t.Format(v.dateLayout)
}

// sameEmployer compares legal employer names ignoring case and surrounding space.
func sameEmployer(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
