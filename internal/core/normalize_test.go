package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityMatcher_Score(t *testing.T) {
	m := SimilarityMatcher{}

	tests := []struct {
		name     string
		expected string
		actual   string
		min      float64
		max      float64
	}{
		{"identical", "PersonNumber", "PersonNumber", 1, 1},
		{"spaced", "PersonNumber", "Person Number", 1, 1},
		{"snake case", "EffectiveStartDate", "effective_start_date", 1, 1},
		{"punctuation", "PersonNumber", "Person #Number", 1, 1},
		{"substring", "LegalEmployerName", "Legal Employer", substringScore, substringScore},
		{"unrelated", "PersonNumber", "Salary", 0, 0.4},
		{"empty actual", "PersonNumber", "", 0, 0},
		{"short names skip substring", "Id", "PersonId", 0, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Score(tt.expected, tt.actual)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PersonNumber", "person number"},
		{"  person_number  ", "person number"},
		{"Effective-Start Date", "effective start date"},
		{"Address2Line", "address2 line"},
		{"(Legal) Employer", "legal employer"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeName(tt.input))
		})
	}
}

func TestResolveHeader(t *testing.T) {
	n := NewNormalizer(workerHeader, nil, 0)

	res := n.ResolveHeader([]string{" Person Number ", "action_code", "Effective Start Date", "Favourite Colour"})

	assert.Equal(t, []string{"PersonNumber", "ActionCode", "EffectiveStartDate", "Favourite Colour"}, res.Columns)
	assert.Equal(t, []string{"Person Number", "action_code", "Effective Start Date", "Favourite Colour"}, res.Header)
	assert.Equal(t, []string{"Favourite Colour"}, res.Unresolved)
}

func TestResolveHeader_EachExpectedColumnClaimedOnce(t *testing.T) {
	n := NewNormalizer([]string{"PersonNumber"}, nil, 0)

	res := n.ResolveHeader([]string{"Person Number", "PersonNumber"})

	// Both score 1; the earlier raw column wins the tie.
	assert.Equal(t, []string{"PersonNumber", "PersonNumber"}, res.Columns)
	assert.Equal(t, []string{"PersonNumber"}, res.Unresolved)
}

func TestResolveHeader_Threshold(t *testing.T) {
	strict := NewNormalizer([]string{"LegalEmployerName"}, nil, 0.99)
	res := strict.ResolveHeader([]string{"Legal Employer"})
	assert.Equal(t, []string{"Legal Employer"}, res.Columns, "substring score is below a 0.99 threshold")

	loose := NewNormalizer([]string{"LegalEmployerName"}, nil, 0)
	res = loose.ResolveHeader([]string{"Legal Employer"})
	assert.Equal(t, []string{"LegalEmployerName"}, res.Columns)
}

type fixedMatcher map[string]float64

func (m fixedMatcher) Score(expected, actual string) float64 {
	return m[expected+"="+actual]
}

func TestResolveHeader_CustomMatcherPrefersBestScore(t *testing.T) {
	m := fixedMatcher{
		"A=x": 0.6,
		"A=y": 0.9,
		"B=x": 0.7,
	}
	n := NewNormalizer([]string{"A", "B"}, m, 0.5)

	res := n.ResolveHeader([]string{"x", "y"})

	assert.Equal(t, []string{"B", "A"}, res.Columns)
	assert.Empty(t, res.Unresolved)
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(workerHeader, nil, 0)

	input := ComponentInput{
		Name:   " Worker ",
		Header: []string{"Person Number", "Action Code", "Effective Start Date"},
		Records: [][]string{
			{` ="1001" `, "HIRE", "2020/01/01"},
			{"", "  ", ""},
			{"1002", "HIRE"},
			{"1003", "HIRE", "2020/01/01", "overflow"},
		},
	}

	rows, res := n.Normalize(input, 10)
	require.Len(t, rows, 3, "the blank record is skipped")
	assert.Empty(t, res.Unresolved)

	assert.Equal(t, "Worker", rows[0].Component())
	assert.Equal(t, "1001", rows[0].Get("PersonNumber"))
	assert.Equal(t, 10, rows[0].Position)
	assert.Equal(t, 2, rows[0].Line)

	assert.Equal(t, 11, rows[1].Position)
	assert.Equal(t, 4, rows[1].Line, "line numbers count the skipped record")
	v, ok := rows[1].Lookup("EffectiveStartDate")
	assert.True(t, ok, "short records are padded")
	assert.Empty(t, v)

	assert.Len(t, rows[2].Values(), 3, "extra cells are dropped")
	assert.False(t, rows[2].Failed(), "normalization never fails a row")
}

func TestIsEmptyRecord(t *testing.T) {
	assert.True(t, isEmptyRecord(nil))
	assert.True(t, isEmptyRecord([]string{"", " ", "NaN"}))
	assert.False(t, isEmptyRecord([]string{"", "x"}))
}
