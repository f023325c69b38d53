package core

import (
	"fmt"
	"testing"
)

// workerHeader is the header used by most pipeline tests.
var workerHeader = []string{"SourceSystemId", "PersonNumber", "ActionCode", "EffectiveStartDate", "LegalEmployerName"}

func testActions() ActionClassification {
	return ActionClassification{
		Hire:                  []string{"HIRE", "ADD_CWK"},
		Rehire:                []string{"REHIRE"},
		Termination:           []string{"TERMINATION", "RESIGNATION"},
		GlobalTransfer:        []string{"GLB_TRANSFER"},
		AllowedEmployerChange: []string{"LEGAL_EMPLOYER_CHANGE"},
	}
}

func testRules() RuleSet {
	return RuleSet{
		Columns:  workerHeader,
		Required: []string{"PersonNumber", "ActionCode", "EffectiveStartDate"},
		Types:    map[string]string{"EffectiveStartDate": "date"},
		Unique:   [][]string{{"PersonNumber", "ActionCode", "EffectiveStartDate"}},
		Timeline: TimelineColumns{
			Identity:      "PersonNumber",
			Action:        "ActionCode",
			EffectiveDate: "EffectiveStartDate",
			LegalEmployer: "LegalEmployerName",
		},
		PartitionField: "SourceSystemId",
	}
}

// makeRows builds rows of one component over workerHeader, in order.
func makeRows(component string, records ...[]string) []Row {
	schema := NewSchema(component, workerHeader, nil)
	rows := make([]Row, len(records))
	for i, rec := range records {
		values := make([]string, len(workerHeader))
		copy(values, rec)
		rows[i] = NewRow(schema, i, i+2, values)
	}
	return rows
}

// reasonsOf renders each row's reasons for compact assertions.
func reasonsOf(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ReasonText()
	}
	return out
}

func mustTimeline(t testing.TB, rs RuleSet) *TimelineValidator {
	t.Helper()
	v, err := NewTimelineValidator(rs, testActions())
	if err != nil {
		t.Fatalf("NewTimelineValidator: %v", err)
	}
	return v
}

// generateWorkerRecords builds n people with a hire and a termination each.
func generateWorkerRecords(n int) [][]string {
	records := make([][]string, 0, 2*n)
	for i := 0; i < n; i++ {
		person := fmt.Sprintf("%06d", i)
		src := fmt.Sprintf("EMP(W%d)%s", i%3+1, person)
		records = append(records,
			[]string{src, person, "HIRE", "2020/01/01", "Acme Ltd"},
			[]string{src, person, "TERMINATION", "2022/06/30", "Acme Ltd"},
		)
	}
	return records
}
