package core

// partition.go bundles passed rows into loader files.
//
// Each row is routed by a token embedded in its source identifier field
// (e.g. "EMP(W2)001" goes to bundle W2). Within a bundle rows are grouped by
// source component, ordered by component name, and every group is written as
// its original header line followed by its records:
//
//	PersonNumber|ActionCode|EffectiveStartDate
//	1001|HIRE|2020/01/01
//
//	AssignmentNumber|PersonNumber
//	A1001|1001

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Partitioning defaults.
const (
	DefaultPartitionPattern = `[(\[]([A-Za-z][0-9]+)[)\]]`
	DefaultPrimaryPartition = "W1"
	FieldDelimiter          = "|"
)

// PartitionerConfig configures a Partitioner. Zero values use the defaults.
type PartitionerConfig struct {
	SourceField   string   // field holding the routing token; removed from output
	Pattern       string   // regexp; the first submatch (or whole match) is the key
	PrimaryKey    string   // key for rows without a token
	DerivedFields []string // appended to a component's header when absent from it
}

// Partitioner groups passed rows into deterministic export bundles.
type Partitioner struct {
	sourceField string
	pattern     *regexp.Regexp
	primary     string
	derived     []string
}

// NewPartitioner compiles the routing pattern.
func NewPartitioner(cfg PartitionerConfig) (*Partitioner, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPartitionPattern
	}
	if cfg.PrimaryKey == "" {
		cfg.PrimaryKey = DefaultPrimaryPartition
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: partition pattern: %v", ErrMalformedRuleSet, err)
	}
	return &Partitioner{
		sourceField: strings.TrimSpace(cfg.SourceField),
		pattern:     re,
		primary:     strings.ToUpper(cfg.PrimaryKey),
		derived:     cfg.DerivedFields,
	}, nil
}

// Key extracts the partition key from a source identifier value.
// No match, or a match equal to the primary key, yields the primary key.
func (p *Partitioner) Key(value string) string {
	m := p.pattern.FindStringSubmatch(value)
	if m == nil {
		return p.primary
	}
	token := m[0]
	if len(m) > 1 && m[1] != "" {
		token = m[1]
	}
	return strings.ToUpper(token)
}

// partitionGroup is the rows of one component layout inside one partition.
// Inputs sharing a component name but not a header stay separate groups.
type partitionGroup struct {
	component string
	schema    *Schema
	first     int // position of the group's first row
	rows      []Row
}

// Partition builds one bundle per key from the passed rows. Failed rows are
// ignored. Bundles are returned sorted by key.
func (p *Partitioner) Partition(rows []Row) []Partition {
	byKey := make(map[string]map[string]*partitionGroup)
	counts := make(map[string]int)

	for _, row := range rows {
		if row.Failed() {
			continue
		}
		key := p.primary
		if p.sourceField != "" {
			key = p.Key(row.Get(p.sourceField))
		}
		groups, ok := byKey[key]
		if !ok {
			groups = make(map[string]*partitionGroup)
			byKey[key] = groups
		}
		layout := layoutKey(row.Schema())
		g, ok := groups[layout]
		if !ok {
			g = &partitionGroup{component: row.Component(), schema: row.Schema(), first: row.Position}
			groups[layout] = g
		}
		g.rows = append(g.rows, row)
		counts[key]++
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Partition, 0, len(keys))
	for _, k := range keys {
		out = append(out, Partition{
			Key:     k,
			Rows:    counts[k],
			Content: p.render(byKey[k]),
		})
	}
	return out
}

// layoutKey identifies a component together with its resolved and original
// header, so rows are only ever written under the header they were read with.
func layoutKey(s *Schema) string {
	if s == nil {
		return ""
	}
	return s.Component + "\x00" + strings.Join(s.Columns, "\x1f") + "\x00" + strings.Join(s.Header, "\x1f")
}

// render writes groups ordered by component name, then by input order.
func (p *Partitioner) render(groups map[string]*partitionGroup) string {
	ordered := make([]*partitionGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].component != ordered[j].component {
			return ordered[i].component < ordered[j].component
		}
		return ordered[i].first < ordered[j].first
	})

	var b strings.Builder
	for i, g := range ordered {
		if i > 0 {
			b.WriteString("\n")
		}
		p.writeGroup(&b, g)
	}
	return b.String()
}

func (p *Partitioner) writeGroup(b *strings.Builder, g *partitionGroup) {
	skip := -1
	if i, ok := g.schema.Index(p.sourceField); ok && p.sourceField != "" {
		skip = i
	}

	var extra []string
	for _, f := range p.derived {
		if !g.schema.Has(f) {
			extra = append(extra, f)
		}
	}

	header := make([]string, 0, len(g.schema.Header)+len(extra))
	for i, h := range g.schema.Header {
		if i != skip {
			header = append(header, h)
		}
	}
	header = append(header, extra...)
	b.WriteString(strings.Join(header, FieldDelimiter))
	b.WriteString("\n")

	fields := make([]string, 0, len(header))
	for _, row := range g.rows {
		fields = fields[:0]
		for i := range g.schema.Columns {
			if i != skip {
				fields = append(fields, row.OutputValue(i))
			}
		}
		for _, f := range extra {
			v, _ := row.Derived(f)
			fields = append(fields, v)
		}
		b.WriteString(strings.Join(fields, FieldDelimiter))
		b.WriteString("\n")
	}
}
