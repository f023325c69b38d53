package templates

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hdlcheck/internal/core"
)

func TestRunReportEscapesValues(t *testing.T) {
	run := core.RunSummary{
		ID:         "3f1c",
		Kind:       core.RunKindValidate,
		Profile:    "worker",
		Status:     core.RunStatusFailed,
		TotalRows:  2,
		PassedRows: 1,
		FailedRows: 1,
		StartedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	failed := []core.FailedRowRecord{{
		Component: "Worker",
		Line:      3,
		Identity:  "1001",
		Values:    map[string]string{"PersonNumber": "1001", "Note": "<script>"},
		Reason:    "ActionCode: hire without termination",
	}}

	var buf bytes.Buffer
	require.NoError(t, RunReport(run, failed).Render(context.Background(), &buf))

	html := buf.String()
	assert.Contains(t, html, "Validation run <code>3f1c</code>")
	assert.Contains(t, html, "hire without termination")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "/api/runs/3f1c/failed-rows")
}

func TestRunReportWithoutFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunReport(core.RunSummary{ID: "x", Status: core.RunStatusPassed}, nil).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No failed rows.")
}

func TestErrorPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorPage("Validation run not found", "Validate again", "RUN002").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Code: RUN002")
	assert.Contains(t, buf.String(), "Validate again")
}
