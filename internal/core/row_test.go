package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_Index(t *testing.T) {
	s := NewSchema("Worker", []string{"PersonNumber", "personnumber", "ActionCode"}, nil)

	i, ok := s.Index("PERSONNUMBER")
	assert.True(t, ok)
	assert.Equal(t, 0, i, "the first duplicate wins")
	assert.Equal(t, s.Columns, s.Header)

	assert.False(t, s.Has(""))
	assert.False(t, s.Has("Missing"))

	var nilSchema *Schema
	assert.False(t, nilSchema.Has("PersonNumber"))
}

func TestRow_CopyOnWrite(t *testing.T) {
	base := makeRows("Worker", []string{"S", "1001", "HIRE"})[0]

	failed := base.WithReason(Reason{Kind: SchemaError, Field: "ActionCode", Message: "bad"})
	twice := failed.WithReason(Reason{Kind: CascadeFailure, Message: CascadeMessage})
	derived := base.WithDerived("EndDate", "2021/01/01")

	assert.False(t, base.Failed())
	assert.Len(t, failed.Reasons(), 1)
	assert.Equal(t, "ActionCode: bad; "+CascadeMessage, twice.ReasonText())

	_, ok := base.Derived("EndDate")
	assert.False(t, ok)
	v, ok := derived.Derived("enddate")
	assert.True(t, ok)
	assert.Equal(t, "2021/01/01", v)

	values := base.Values()
	values[1] = "changed"
	assert.Equal(t, "1001", base.Get("PersonNumber"))
}

func TestRow_OutputValue(t *testing.T) {
	schema := NewSchema("Worker", []string{"PersonNumber", "EndDate"}, nil)
	row := NewRow(schema, 0, 2, []string{"1001", "2099/12/31"})

	assert.Equal(t, "2099/12/31", row.OutputValue(1))
	assert.Equal(t, "2021/06/29", row.WithDerived("EndDate", "2021/06/29").OutputValue(1))
	assert.Equal(t, "", row.OutputValue(5))
	assert.Equal(t, map[string]string{"PersonNumber": "1001", "EndDate": "2099/12/31"}, row.Map())
}
