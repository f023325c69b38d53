package web

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/hdlcheck/internal/core"
	"github.com/JonMunkholm/hdlcheck/internal/web/templates"
)

// maxRunListLimit caps the page size of run listings.
const maxRunListLimit = 500

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string                `json:"status"`
	History  bool                  `json:"history"`
	Profiles int                   `json:"profiles"`
	Runs     core.RunLimiterStatus `json:"runs"`
}

// handleHealth reports liveness and current run capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		History:  s.service.HistoryEnabled(),
		Profiles: core.ProfileCount(),
		Runs:     s.service.Limiter().Status(),
	})
}

// handleListProfiles returns all registered validation profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListProfiles())
}

// handleListRuns returns recorded runs, newest first.
// Query: profile, status, since (RFC 3339 or YYYY-MM-DD), limit, offset.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := core.RunListOptions{
		Profile: strings.TrimSpace(q.Get("profile")),
		Status:  strings.TrimSpace(q.Get("status")),
		Since:   parseTimeParam(r, "since"),
		Limit:   min(parseIntParam(r, "limit", core.DefaultHistoryLimit), maxRunListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	}

	runs, err := s.service.ListRuns(r.Context(), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one recorded run summary.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleExportFailedRows exports a run's failed rows as CSV.
// Columns: _line, _component, _identity, _error, then the union of all
// value columns in name order.
func (s *Server) handleExportFailedRows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	// Resolve the run first so unknown IDs are a 404, not an empty file
	if _, err := s.service.GetRun(r.Context(), runID); err != nil {
		s.respondError(w, r, err)
		return
	}

	failed, err := s.service.FailedRows(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	columns := failedRowColumns(failed)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="failed_rows_%s.csv"`, runID))

	csvWriter := csv.NewWriter(w)
	header := append([]string{"_line", "_component", "_identity", "_error"}, columns...)
	if err := csvWriter.Write(header); err != nil {
		slog.Error("write failed rows csv", "run_id", runID, "error", err)
		return
	}

	record := make([]string, len(header))
	for _, row := range failed {
		record = record[:0]
		record = append(record, strconv.Itoa(row.Line), row.Component, row.Identity, row.Reason)
		for _, c := range columns {
			record = append(record, row.Values[c])
		}
		if err := csvWriter.Write(record); err != nil {
			slog.Error("write failed rows csv", "run_id", runID, "error", err)
			return
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		slog.Error("flush failed rows csv", "run_id", runID, "error", err)
	}
}

// failedRowColumns returns the sorted union of value columns.
func failedRowColumns(rows []core.FailedRowRecord) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for c := range row.Values {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// handleRunReport renders the HTML report page for a recorded run.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	failed, err := s.service.FailedRows(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.RunReport(run, failed).Render(r.Context(), w); err != nil {
		slog.Error("render run report", "run_id", runID, "error", err)
	}
}
