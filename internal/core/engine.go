package core

// engine.go runs the validation pipeline over one request's rows.
//
//	normalize -> field checks -> timeline -> cascade -> partition
//
// An Engine is built once per rule snapshot and holds no per-run state, so
// one Engine can serve concurrent runs. Each run is synchronous and
// single-threaded; everything it produces lives in the returned Result.

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/JonMunkholm/hdlcheck/internal/core"

// EngineOptions tunes the parts of a run that are not rules.
type EngineOptions struct {
	Matcher          ColumnMatcher
	MatchThreshold   float64
	PartitionPattern string
	PrimaryPartition string

	// Observe, if set, is called with the duration of each stage.
	Observe func(stage RunPhase, d time.Duration)
}

// Engine is a compiled validation pipeline.
type Engine struct {
	rules       *compiledRules
	normalizer  *Normalizer
	field       *FieldValidator
	timeline    *TimelineValidator
	cascade     CascadePropagator
	partitioner *Partitioner
	observe     func(RunPhase, time.Duration)
	tracer      trace.Tracer
}

// NewEngine compiles rules and actions. A malformed rule set is the only
// error; it is returned before any row is looked at.
func NewEngine(rs RuleSet, actions ActionClassification, opts EngineOptions) (*Engine, error) {
	rules, err := compileRules(rs, actions)
	if err != nil {
		return nil, err
	}

	partitioner, err := NewPartitioner(PartitionerConfig{
		SourceField:   rs.PartitionField,
		Pattern:       opts.PartitionPattern,
		PrimaryKey:    opts.PrimaryPartition,
		DerivedFields: derivedFields(rules),
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		rules:       rules,
		normalizer:  NewNormalizer(expectedColumns(rs), opts.Matcher, opts.MatchThreshold),
		field:       &FieldValidator{rules: rules},
		cascade:     NewCascadePropagator(rs.Timeline.Identity),
		partitioner: partitioner,
		observe:     opts.Observe,
		tracer:      otel.Tracer(tracerName),
	}
	if rs.Timeline.Enabled() {
		e.timeline = newTimelineValidator(rules)
	}
	return e, nil
}

func derivedFields(rules *compiledRules) []string {
	if !rules.set.Timeline.Enabled() {
		return nil
	}
	return []string{rules.terminationField}
}

// expectedColumns lists every column name the rule set refers to, in first
// mention order. These are the names raw headers are resolved against.
func expectedColumns(rs RuleSet) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(names ...string) {
		for _, n := range names {
			n = strings.TrimSpace(n)
			key := strings.ToLower(n)
			if n == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, n)
		}
	}

	add(rs.Columns...)
	add(rs.Required...)
	add(rs.Timeline.Identity, rs.Timeline.Action, rs.Timeline.EffectiveDate, rs.Timeline.LegalEmployer)
	add(rs.PartitionField)

	typed := make([]string, 0, len(rs.Types))
	for col := range rs.Types {
		typed = append(typed, col)
	}
	sort.Strings(typed)
	add(typed...)

	for _, l := range rs.Lookups {
		add(l.Attribute)
	}
	for _, group := range rs.Unique {
		add(group...)
	}
	return out
}

// Run validates all components and returns a fresh Result.
// Row failures never make Run fail.
func (e *Engine) Run(ctx context.Context, components []ComponentInput) *Result {
	result := &Result{
		StartedAt:         time.Now(),
		UnresolvedColumns: make(map[string][]string),
	}

	var rows []Row
	e.stage(ctx, PhaseNormalizing, func(ctx context.Context) {
		rows = e.normalize(components, result.UnresolvedColumns)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("rows", len(rows)))
	})

	e.stage(ctx, PhaseFieldChecks, func(context.Context) {
		rows = e.field.Validate(rows)
	})

	if e.timeline != nil {
		e.stage(ctx, PhaseTimeline, func(context.Context) {
			rows = e.timeline.Validate(rows)
		})
		e.stage(ctx, PhaseCascade, func(context.Context) {
			rows = e.cascade.Propagate(rows)
		})
	}

	e.stage(ctx, PhasePartitioning, func(ctx context.Context) {
		result.Partitions = e.partitioner.Partition(rows)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("partitions", len(result.Partitions)))
	})

	result.Rows = rows
	result.Duration = time.Since(result.StartedAt)
	return result
}

// CheckLegalEmployer runs only normalization and the timeline over the
// components and returns the rows with legal employer inconsistencies.
func (e *Engine) CheckLegalEmployer(ctx context.Context, components []ComponentInput) []Row {
	if e.timeline == nil {
		return nil
	}
	field := e.rules.set.Timeline.LegalEmployer

	var rows []Row
	e.stage(ctx, PhaseNormalizing, func(context.Context) {
		rows = e.normalize(components, nil)
	})
	e.stage(ctx, PhaseTimeline, func(context.Context) {
		rows = e.timeline.AcrossComponents().Validate(rows)
	})

	var out []Row
	for _, row := range rows {
		for _, r := range row.reasons {
			if r.Kind == SequenceViolation && strings.EqualFold(r.Field, field) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// LegalEmployerField returns the column the timeline treats as legal employer.
func (e *Engine) LegalEmployerField() string {
	return e.rules.set.Timeline.LegalEmployer
}

// IdentityField returns the column that groups rows into one person.
func (e *Engine) IdentityField() string {
	return e.rules.set.Timeline.Identity
}

func (e *Engine) normalize(components []ComponentInput, unresolved map[string][]string) []Row {
	var rows []Row
	for _, c := range components {
		part, res := e.normalizer.Normalize(c, len(rows))
		rows = append(rows, part...)
		if unresolved != nil && len(res.Unresolved) > 0 {
			unresolved[c.Name] = res.Unresolved
		}
	}
	return rows
}

func (e *Engine) stage(ctx context.Context, phase RunPhase, fn func(context.Context)) {
	ctx, span := e.tracer.Start(ctx, "validate."+string(phase))
	defer span.End()

	start := time.Now()
	fn(ctx)
	if e.observe != nil {
		e.observe(phase, time.Since(start))
	}
}
