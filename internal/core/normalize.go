package core

// normalize.go canonicalizes raw component rows into typed Rows.
//
// Header names in uploaded sheets rarely match the expected schema exactly
// ("Person Number", "person_number", "PersonNumber "). Each raw header is
// scored against every expected column by a ColumnMatcher; the best pairs
// above the threshold are claimed greedily, and anything left over keeps
// its raw name. A header is never forced onto a weak match.

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// DefaultMatchThreshold is the minimum score for a header to be resolved.
const DefaultMatchThreshold = 0.5

// substringScore is awarded when one normalized name contains the other.
const substringScore = 0.95

// minSubstringLen keeps short names like "id" from matching everything.
const minSubstringLen = 3

// ColumnMatcher scores how well a raw header matches an expected column name.
// Scores are in [0, 1]; 1 means the names are equivalent.
type ColumnMatcher interface {
	Score(expected, actual string) float64
}

// SimilarityMatcher matches exact normalized names first, then substrings,
// then a 50/50 blend of token Jaccard similarity and Levenshtein ratio.
type SimilarityMatcher struct{}

// Score implements ColumnMatcher.
func (SimilarityMatcher) Score(expected, actual string) float64 {
	a, b := normalizeName(expected), normalizeName(actual)
	if a == "" || b == "" {
		return 0
	}

	ca, cb := strings.ReplaceAll(a, " ", ""), strings.ReplaceAll(b, " ", "")
	if ca == cb {
		return 1
	}

	if len(ca) >= minSubstringLen && len(cb) >= minSubstringLen &&
		(strings.Contains(ca, cb) || strings.Contains(cb, ca)) {
		return substringScore
	}

	return 0.5*jaccard(a, b) + 0.5*levenshteinRatio(ca, cb)
}

// normalizeName lower-cases a header, splits camelCase, turns underscores and
// dashes into spaces, drops punctuation and collapses whitespace.
func normalizeName(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func jaccard(a, b string) float64 {
	setA := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, t := range strings.Fields(b) {
		setB[t] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func levenshteinRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// HeaderResolution is the outcome of resolving one component's header.
type HeaderResolution struct {
	Columns    []string // resolved name per position
	Header     []string // cleaned original header per position
	Unresolved []string // original names that matched no expected column
}

// Normalizer resolves headers against an expected schema and normalizes values.
type Normalizer struct {
	expected  []string
	matcher   ColumnMatcher
	threshold float64
}

// NewNormalizer creates a normalizer. A nil matcher uses SimilarityMatcher;
// a non-positive threshold uses DefaultMatchThreshold.
func NewNormalizer(expected []string, matcher ColumnMatcher, threshold float64) *Normalizer {
	if matcher == nil {
		matcher = SimilarityMatcher{}
	}
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Normalizer{
		expected:  expected,
		matcher:   matcher,
		threshold: threshold,
	}
}

type headerCandidate struct {
	raw, expected int
	score         float64
}

// ResolveHeader maps raw header names onto expected column names.
func (n *Normalizer) ResolveHeader(header []string) HeaderResolution {
	res := HeaderResolution{
		Columns: make([]string, len(header)),
		Header:  make([]string, len(header)),
	}
	for i, h := range header {
		res.Header[i] = CleanCell(h)
		res.Columns[i] = res.Header[i]
	}
	if len(n.expected) == 0 {
		return res
	}

	var candidates []headerCandidate
	for i, h := range res.Header {
		for j, e := range n.expected {
			score := n.matcher.Score(e, h)
			if score > 0 && score >= n.threshold {
				candidates = append(candidates, headerCandidate{raw: i, expected: j, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		if candidates[a].raw != candidates[b].raw {
			return candidates[a].raw < candidates[b].raw
		}
		return candidates[a].expected < candidates[b].expected
	})

	rawClaimed := make([]bool, len(header))
	expClaimed := make([]bool, len(n.expected))
	for _, c := range candidates {
		if rawClaimed[c.raw] || expClaimed[c.expected] {
			continue
		}
		rawClaimed[c.raw] = true
		expClaimed[c.expected] = true
		res.Columns[c.raw] = n.expected[c.expected]
	}

	for i, claimed := range rawClaimed {
		if !claimed && res.Header[i] != "" {
			res.Unresolved = append(res.Unresolved, res.Header[i])
		}
	}
	return res
}

// Normalize converts one component into Rows. Fully empty records are
// skipped; short records are padded. position is the run-wide index of the
// first row produced. Never fails.
func (n *Normalizer) Normalize(input ComponentInput, position int) ([]Row, HeaderResolution) {
	res := n.ResolveHeader(input.Header)
	schema := NewSchema(strings.TrimSpace(input.Name), res.Columns, res.Header)

	rows := make([]Row, 0, len(input.Records))
	for i, rec := range input.Records {
		if isEmptyRecord(rec) {
			continue
		}
		values := make([]string, len(res.Columns))
		for j := range values {
			if j < len(rec) {
				values[j] = NormalizeValue(rec[j])
			}
		}
		rows = append(rows, NewRow(schema, position, i+2, values))
		position++
	}
	return rows, res
}

// isEmptyRecord returns true if every cell is blank.
func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if NormalizeValue(v) != "" {
			return false
		}
	}
	return true
}
