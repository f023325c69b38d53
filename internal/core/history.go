package core

// history.go persists run summaries and failed rows to Postgres.
//
// Only failed rows are stored: passed rows end up in the exported bundles and
// are not needed to diagnose a run. Runs older than the retention window are
// pruned by the scheduler; failed rows go with them (ON DELETE CASCADE).

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned when a run ID has no recorded run.
var ErrRunNotFound = errors.New("run not found")

// ErrHistoryDisabled is returned by history queries when no store is configured.
var ErrHistoryDisabled = errors.New("run history disabled")

// DefaultHistoryLimit is the page size for run listings.
const DefaultHistoryLimit = 50

// RunStatus values.
const (
	RunStatusPassed = "passed"
	RunStatusFailed = "failed"
)

// RunSummary is the stored outcome of one run.
type RunSummary struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "validate" or "legal_employer"
	Profile    string    `json:"profile"`
	Status     string    `json:"status"`
	TotalRows  int       `json:"totalRows"`
	PassedRows int       `json:"passedRows"`
	FailedRows int       `json:"failedRows"`
	Partitions int       `json:"partitions"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

// FailedRowRecord is one stored failed row.
type FailedRowRecord struct {
	Component string            `json:"component"`
	Line      int               `json:"line"`
	Identity  string            `json:"identity,omitempty"`
	Values    map[string]string `json:"values"`
	Reason    string            `json:"reason"`
}

// RunRecord is everything written for one run.
type RunRecord struct {
	Summary RunSummary
	Failed  []FailedRowRecord
}

// RunListOptions filters a run listing.
type RunListOptions struct {
	Profile string
	Status  string
	Since   time.Time
	Limit   int
	Offset  int
}

// RunStore persists run history.
type RunStore interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, opts RunListOptions) ([]RunSummary, error)
	GetRun(ctx context.Context, id string) (RunSummary, error)
	FailedRows(ctx context.Context, id string) ([]FailedRowRecord, error)
	PruneRuns(ctx context.Context, olderThan time.Time) (int64, error)
}

// PgRunStore is a RunStore backed by a pgx connection pool.
type PgRunStore struct {
	pool *pgxpool.Pool
}

// NewPgRunStore creates a store on pool.
func NewPgRunStore(pool *pgxpool.Pool) *PgRunStore {
	return &PgRunStore{pool: pool}
}

const historySchema = `
CREATE TABLE IF NOT EXISTS validation_runs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	profile     TEXT NOT NULL,
	status      TEXT NOT NULL,
	total_rows  INTEGER NOT NULL,
	passed_rows INTEGER NOT NULL,
	failed_rows INTEGER NOT NULL,
	partitions  INTEGER NOT NULL,
	ip_address  TEXT,
	user_agent  TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS validation_runs_started_at_idx ON validation_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS validation_failed_rows (
	run_id    UUID NOT NULL REFERENCES validation_runs (id) ON DELETE CASCADE,
	component TEXT NOT NULL,
	line      INTEGER NOT NULL,
	identity  TEXT,
	row_data  JSONB NOT NULL,
	reason    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS validation_failed_rows_run_idx ON validation_failed_rows (run_id);
`

// EnsureSchema creates the history tables if they do not exist.
func (s *PgRunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// RecordRun writes a run summary and its failed rows in one transaction.
func (s *PgRunStore) RecordRun(ctx context.Context, rec RunRecord) error {
	id := ToPgUUID(rec.Summary.ID)
	if !id.Valid {
		return fmt.Errorf("record run: invalid run id %q", rec.Summary.ID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sum := rec.Summary
	_, err = tx.Exec(ctx, `INSERT INTO validation_runs
		(id, kind, profile, status, total_rows, passed_rows, failed_rows, partitions,
		 ip_address, user_agent, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, sum.Kind, sum.Profile, sum.Status, sum.TotalRows, sum.PassedRows, sum.FailedRows,
		sum.Partitions, toPgText(sum.IPAddress), toPgText(sum.UserAgent), sum.StartedAt, sum.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(rec.Failed) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"validation_failed_rows"},
			[]string{"run_id", "component", "line", "identity", "row_data", "reason"},
			pgx.CopyFromSlice(len(rec.Failed), func(i int) ([]any, error) {
				f := rec.Failed[i]
				return []any{id, f.Component, f.Line, toPgText(f.Identity), f.Values, f.Reason}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy failed rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, kind, profile, status, total_rows, passed_rows, failed_rows, partitions,
	ip_address, user_agent, started_at, duration_ms`

// ListRuns returns runs newest first.
func (s *PgRunStore) ListRuns(ctx context.Context, opts RunListOptions) ([]RunSummary, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultHistoryLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	wb := newWhereBuilder()
	wb.add("profile", opts.Profile)
	wb.add("status", opts.Status)
	if !opts.Since.IsZero() {
		wb.addSince("started_at", opts.Since)
	}
	where, args := wb.build()

	query := fmt.Sprintf("SELECT %s FROM validation_runs%s ORDER BY started_at DESC LIMIT $%d OFFSET $%d",
		runColumns, where, wb.next(), wb.next()+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		sum, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, sum)
	}
	return runs, rows.Err()
}

// GetRun returns one run summary.
func (s *PgRunStore) GetRun(ctx context.Context, id string) (RunSummary, error) {
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	row := s.pool.QueryRow(ctx, "SELECT "+runColumns+" FROM validation_runs WHERE id = $1", pgID)
	sum, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return sum, err
}

// FailedRows returns a run's failed rows in component and line order.
func (s *PgRunStore) FailedRows(ctx context.Context, id string) ([]FailedRowRecord, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT component, line, identity, row_data, reason
		FROM validation_failed_rows WHERE run_id = $1 ORDER BY component, line`, ToPgUUID(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]FailedRowRecord, 0)
	for rows.Next() {
		var (
			f        FailedRowRecord
			identity pgtype.Text
		)
		if err := rows.Scan(&f.Component, &f.Line, &identity, &f.Values, &f.Reason); err != nil {
			return nil, err
		}
		f.Identity = identity.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// PruneRuns deletes runs started before olderThan and returns how many were removed.
func (s *PgRunStore) PruneRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM validation_runs WHERE started_at < $1", olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (RunSummary, error) {
	var (
		sum       RunSummary
		id        pgtype.UUID
		ip, agent pgtype.Text
	)
	err := row.Scan(&id, &sum.Kind, &sum.Profile, &sum.Status, &sum.TotalRows, &sum.PassedRows,
		&sum.FailedRows, &sum.Partitions, &ip, &agent, &sum.StartedAt, &sum.DurationMs)
	if err != nil {
		return RunSummary{}, err
	}
	sum.ID = PgUUIDToString(id)
	sum.IPAddress = ip.String
	sum.UserAgent = agent.String
	return sum, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// whereBuilder assembles an AND-joined WHERE clause with numbered placeholders.
type whereBuilder struct {
	conds []string
	args  []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

// add appends "column = $n" when value is non-empty.
func (w *whereBuilder) add(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *whereBuilder) addSince(column string, t time.Time) {
	w.args = append(w.args, t)
	w.conds = append(w.conds, fmt.Sprintf("%s >= $%d", column, len(w.args)))
}

func (w *whereBuilder) next() int {
	return len(w.args) + 1
}

func (w *whereBuilder) build() (string, []any) {
	if len(w.conds) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}

type runContextKey int

const (
	runIPKey runContextKey = iota
	runUserAgentKey
)

// ContextWithIPAddress records the caller's address for the run's history entry.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, runIPKey, ip)
}

// ContextWithUserAgent records the caller's User-Agent for the run's history entry.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, runUserAgentKey, ua)
}

// GetIPAddressFromContext returns the address set by ContextWithIPAddress.
func GetIPAddressFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(runIPKey).(string)
	return ip
}

// GetUserAgentFromContext returns the User-Agent set by ContextWithUserAgent.
func GetUserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(runUserAgentKey).(string)
	return ua
}
