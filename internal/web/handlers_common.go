package web

// handlers_common.go holds response types and request helpers shared by handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/hdlcheck/internal/core"
)

// FailedRowResponse is one failed row in a run response.
type FailedRowResponse struct {
	Component string            `json:"component"`
	Line      int               `json:"line"`
	Identity  string            `json:"identity,omitempty"`
	Values    map[string]string `json:"values"`
	Reason    string            `json:"reason"`
	Reasons   []core.Reason     `json:"reasons"`
}

// ValidateResponse is the JSON body returned for a validation run.
type ValidateResponse struct {
	RunID             string                 `json:"runId"`
	Profile           string                 `json:"profile"`
	Status            string                 `json:"status"`
	TotalCount        int                    `json:"totalCount"`
	PassedCount       int                    `json:"passedCount"`
	FailedCount       int                    `json:"failedCount"`
	UnresolvedColumns map[string][]string    `json:"unresolvedColumns,omitempty"`
	Partitions        []core.Partition       `json:"partitions"`
	FailedRows        []FailedRowResponse    `json:"failedRows"`
	Duration          string                 `json:"duration"`
	LegalEmployer     *LegalEmployerResponse `json:"legalEmployer,omitempty"`
}

// LegalEmployerResponse is the JSON body returned for a legal employer check.
type LegalEmployerResponse struct {
	RunID        string              `json:"runId"`
	Profile      string              `json:"profile"`
	Status       string              `json:"status"`
	TotalCount   int                 `json:"totalCount"`
	Inconsistent []FailedRowResponse `json:"inconsistentRows"`
	Duration     string              `json:"duration"`
}

// toValidateResponse converts a Result to its JSON form.
func toValidateResponse(result *core.Result) ValidateResponse {
	failed := result.Failed()
	status := core.RunStatusPassed
	if len(failed) > 0 {
		status = core.RunStatusFailed
	}
	partitions := result.Partitions
	if partitions == nil {
		partitions = []core.Partition{}
	}
	return ValidateResponse{
		RunID:             result.RunID,
		Profile:           result.Profile,
		Status:            status,
		TotalCount:        len(result.Rows),
		PassedCount:       len(result.Rows) - len(failed),
		FailedCount:       len(failed),
		UnresolvedColumns: result.UnresolvedColumns,
		Partitions:        partitions,
		FailedRows:        toFailedRows(failed, result.IdentityField),
		Duration:          result.Duration.String(),
	}
}

// toLegalEmployerResponse converts a LegalEmployerReport to its JSON form.
func toLegalEmployerResponse(report *core.LegalEmployerReport) *LegalEmployerResponse {
	return &LegalEmployerResponse{
		RunID:        report.RunID,
		Profile:      report.Profile,
		Status:       report.Status,
		TotalCount:   report.TotalRows,
		Inconsistent: toFailedRows(report.Inconsistent, report.IdentityField),
		Duration:     report.Duration.String(),
	}
}

func toFailedRows(rows []core.Row, identityField string) []FailedRowResponse {
	out := make([]FailedRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, FailedRowResponse{
			Component: row.Component(),
			Line:      row.Line,
			Identity:  row.Get(identityField),
			Values:    row.Map(),
			Reason:    row.ReasonText(),
			Reasons:   row.Reasons(),
		})
	}
	return out
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Validation.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("request body too large: %w", err)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: invalid request body: empty", errInvalidInput)
		}
		return fmt.Errorf("%w: invalid request body: %v", errInvalidInput, err)
	}
	return nil
}

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseTimeParam parses an RFC 3339 timestamp or a YYYY-MM-DD date.
// Invalid or missing values yield the zero time.
func parseTimeParam(r *http.Request, name string) time.Time {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t
	}
	return time.Time{}
}
