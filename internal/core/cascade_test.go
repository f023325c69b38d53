package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCascadePropagator(t *testing.T) {
	rows := makeRows("Worker",
		[]string{"S", "1001", "HIRE"},
		[]string{"S", "1001", "TERMINATION"},
		[]string{"S", "1002", "HIRE"},
		[]string{"S", "", "HIRE"},
	)
	rows[1] = rows[1].WithReason(Reason{Kind: SequenceViolation, Field: "ActionCode", Message: "bad"})
	rows[3] = rows[3].WithReason(Reason{Kind: SchemaError, Field: "PersonNumber", Message: "required field is empty"})

	p := NewCascadePropagator("PersonNumber")
	out := p.Propagate(rows)

	assert.Equal(t, []string{
		CascadeMessage,
		"ActionCode: bad",
		"",
		"PersonNumber: required field is empty",
	}, reasonsOf(out))
	assert.True(t, out[0].HasReasonKind(CascadeFailure))
	assert.False(t, rows[0].Failed(), "input rows are not modified")
}

func TestCascadePropagator_SpansComponents(t *testing.T) {
	worker := makeRows("Worker", []string{"S", "1001", "HIRE"})
	assignment := makeRows("Assignment", []string{"S", "1001", "HIRE"})
	worker[0] = worker[0].WithReason(Reason{Kind: FormatError, Message: "bad date"})

	out := NewCascadePropagator("PersonNumber").Propagate(append(worker, assignment...))

	assert.Equal(t, []string{"bad date", CascadeMessage}, reasonsOf(out))
}

func TestCascadePropagator_Idempotent(t *testing.T) {
	rows := makeRows("Worker",
		[]string{"S", "1001", "HIRE"},
		[]string{"S", "1001", "TERMINATION"},
		[]string{"S", "1002", "HIRE"},
	)
	rows[0] = rows[0].WithReason(Reason{Kind: SequenceViolation, Message: "bad"})

	p := NewCascadePropagator("PersonNumber")
	once := p.Propagate(rows)
	twice := p.Propagate(once)

	assert.Equal(t, reasonsOf(once), reasonsOf(twice))
}

func TestCascadePropagator_NoIdentityField(t *testing.T) {
	rows := makeRows("Worker", []string{"S", "1001", "HIRE"}, []string{"S", "1001", "HIRE"})
	rows[0] = rows[0].WithReason(Reason{Message: "bad"})

	out := NewCascadePropagator("").Propagate(rows)

	assert.False(t, out[1].Failed())
}
