package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/hdlcheck/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is an in-memory RunStore.
type stubStore struct {
	mu        sync.Mutex
	runs      []RunRecord
	recordErr error
	pruned    []time.Time
}

func (s *stubStore) RecordRun(_ context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.runs = append(s.runs, rec)
	return nil
}

func (s *stubStore) ListRuns(_ context.Context, opts RunListOptions) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RunSummary
	for _, r := range s.runs {
		if opts.Profile == "" || r.Summary.Profile == opts.Profile {
			out = append(out, r.Summary)
		}
	}
	return out, nil
}

func (s *stubStore) GetRun(_ context.Context, id string) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Summary.ID == id {
			return r.Summary, nil
		}
	}
	return RunSummary{}, ErrRunNotFound
}

func (s *stubStore) FailedRows(ctx context.Context, id string) ([]FailedRowRecord, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Summary.ID == id {
			return r.Failed, nil
		}
	}
	return nil, nil
}

func (s *stubStore) PruneRuns(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, olderThan)
	return 0, nil
}

func newTestService(t *testing.T, store RunStore) *Service {
	t.Helper()
	resetRegistry(t)
	Register(testProfile("worker"))

	return NewService(ServiceConfig{
		Limiter: NewRunLimiter(2, 50*time.Millisecond),
		Store:   store,
	})
}

func TestService_Validate(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)

	ctx := ContextWithUserAgent(ContextWithIPAddress(context.Background(), "10.0.0.1"), "curl/8")
	result, err := svc.Validate(ctx, Request{
		Profile: "WORKER",
		Components: []ComponentInput{workerComponent(
			[]string{"EMP(W2)1", "1001", "HIRE", "2020/01/01", "Acme"},
			[]string{"EMP(W2)1", "1001", "TERMINATION", "2021/01/01", "Acme"},
			[]string{"EMP2", "1002", "TERMINATION", "2020/01/01", "Acme"},
		)},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "worker", result.Profile)
	assert.Equal(t, "PersonNumber", result.IdentityField)
	assert.Equal(t, 1, result.FailedCount())

	require.Len(t, store.runs, 1)
	rec := store.runs[0]
	assert.Equal(t, result.RunID, rec.Summary.ID)
	assert.Equal(t, RunKindValidate, rec.Summary.Kind)
	assert.Equal(t, RunStatusFailed, rec.Summary.Status)
	assert.Equal(t, 3, rec.Summary.TotalRows)
	assert.Equal(t, 2, rec.Summary.PassedRows)
	assert.Equal(t, 1, rec.Summary.FailedRows)
	assert.Equal(t, 1, rec.Summary.Partitions)
	assert.Equal(t, "10.0.0.1", rec.Summary.IPAddress)
	assert.Equal(t, "curl/8", rec.Summary.UserAgent)

	require.Len(t, rec.Failed, 1)
	assert.Equal(t, "Worker", rec.Failed[0].Component)
	assert.Equal(t, 4, rec.Failed[0].Line)
	assert.Equal(t, "1002", rec.Failed[0].Identity)
	assert.Equal(t, "TERMINATION", rec.Failed[0].Values["ActionCode"])

	assert.Equal(t, 0, svc.Limiter().ActiveCount(), "slot released")
}

func TestService_ValidateCustomRules(t *testing.T) {
	svc := newTestService(t, nil)
	rules := RuleSet{Required: []string{"PersonNumber"}}

	result, err := svc.Validate(context.Background(), Request{
		Rules:      &rules,
		Components: []ComponentInput{workerComponent([]string{"S", ""})},
	})
	require.NoError(t, err)

	assert.Equal(t, customProfile, result.Profile)
	assert.Equal(t, "PersonNumber: required field is empty", result.Rows[0].ReasonText())
}

func TestService_ValidateOverridesProfileActions(t *testing.T) {
	svc := newTestService(t, nil)
	actions := ActionClassification{Hire: []string{"ONBOARD"}, Termination: []string{"OFFBOARD"}}

	result, err := svc.Validate(context.Background(), Request{
		Profile: "worker",
		Actions: &actions,
		Components: []ComponentInput{workerComponent(
			[]string{"S", "1001", "ONBOARD", "2020/01/01", "Acme"},
			[]string{"S", "1001", "OFFBOARD", "2020/02/01", "Acme"},
		)},
	})
	require.NoError(t, err)

	assert.Equal(t, "worker", result.Profile)
	assert.Equal(t, 0, result.FailedCount())
}

func TestService_ValidateErrors(t *testing.T) {
	records := []ComponentInput{workerComponent([]string{"S", "1001", "HIRE", "2020/01/01"})}
	broken := RuleSet{Types: map[string]string{"A": "money"}}

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown profile", Request{Profile: "payroll", Components: records}, ErrUnknownProfile},
		{"no rules", Request{Components: records}, ErrMalformedRuleSet},
		{"malformed rules", Request{Rules: &broken, Components: records}, ErrMalformedRuleSet},
		{"no records", Request{Profile: "worker", Components: []ComponentInput{workerComponent()}}, ErrNoInput},
		{"no components", Request{Profile: "worker"}, ErrNoInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{}
			svc := newTestService(t, store)

			_, err := svc.Validate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.runs, "failed runs are not recorded")
		})
	}
}

func TestService_ValidateRejectsWhenBusy(t *testing.T) {
	resetRegistry(t)
	Register(testProfile("worker"))

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	limiter := NewRunLimiter(1, 10*time.Millisecond)
	svc := NewService(ServiceConfig{Limiter: limiter, Metrics: m})

	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	_, err := svc.Validate(context.Background(), Request{
		Profile:    "worker",
		Components: []ComponentInput{workerComponent([]string{"S", "1001", "HIRE", "2020/01/01"})},
	})
	assert.ErrorIs(t, err, ErrTooManyRuns)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("worker", "error")))
}

func TestService_HistoryFailureDoesNotFailRun(t *testing.T) {
	store := &stubStore{recordErr: errors.New("connection refused")}
	svc := newTestService(t, store)

	result, err := svc.Validate(context.Background(), Request{
		Profile:    "worker",
		Components: []ComponentInput{workerComponent([]string{"S", "1001", "HIRE", "2020/01/01"})},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FailedCount())
}

func TestService_CheckLegalEmployer(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)

	report, err := svc.CheckLegalEmployer(context.Background(), Request{
		Profile: "worker",
		Components: []ComponentInput{
			workerComponent([]string{"S", "1001", "HIRE", "2020/01/01", "Acme"}),
			{
				Name:    "Assignment",
				Header:  workerHeader,
				Records: [][]string{{"S", "1001", "ASSIGNMENT_CHANGE", "2020/06/01", "Beta"}},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, RunStatusFailed, report.Status)
	assert.Equal(t, 2, report.TotalRows)
	require.Len(t, report.Inconsistent, 1)

	require.Len(t, store.runs, 1)
	assert.Equal(t, RunKindLegalEmployer, store.runs[0].Summary.Kind)
	assert.Equal(t, 1, store.runs[0].Summary.FailedRows)
}

func TestService_CheckLegalEmployerNeedsEmployerColumn(t *testing.T) {
	svc := newTestService(t, nil)
	rules := testRules()
	rules.Timeline.LegalEmployer = ""

	_, err := svc.CheckLegalEmployer(context.Background(), Request{
		Rules:      &rules,
		Actions:    &ActionClassification{Hire: []string{"HIRE"}},
		Components: []ComponentInput{workerComponent([]string{"S", "1001", "HIRE", "2020/01/01"})},
	})
	assert.ErrorIs(t, err, ErrMalformedRuleSet)
}

func TestService_History(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)
	require.True(t, svc.HistoryEnabled())

	result, err := svc.Validate(context.Background(), Request{
		Profile:    "worker",
		Components: []ComponentInput{workerComponent([]string{"S", "1001", "REHIRE", "2020/01/01"})},
	})
	require.NoError(t, err)

	runs, err := svc.ListRuns(context.Background(), RunListOptions{Profile: "worker"})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	sum, err := svc.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, sum.Status)

	failed, err := svc.FailedRows(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Reason, "must be a hire action")

	_, err = svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestService_HistoryDisabled(t *testing.T) {
	svc := newTestService(t, nil)
	assert.False(t, svc.HistoryEnabled())

	_, err := svc.ListRuns(context.Background(), RunListOptions{})
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.GetRun(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.FailedRows(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestStartPruneScheduler(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := time.Now()
	svc.StartPruneScheduler(ctx, PruneConfig{RetentionDays: 7})

	require.Len(t, store.pruned, 1, "prunes once at start")
	cutoff := store.pruned[0]
	assert.WithinDuration(t, before.AddDate(0, 0, -7), cutoff, time.Minute)
}

func TestStartPruneScheduler_NoStore(t *testing.T) {
	svc := newTestService(t, nil)
	assert.NotPanics(t, func() {
		svc.StartPruneScheduler(context.Background(), PruneConfig{})
	})
}

func TestPruneConfigDefaults(t *testing.T) {
	cfg := PruneConfig{}.withDefaults()
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.CheckInterval)
}
