package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/hdlcheck/internal/logging"
	"github.com/JonMunkholm/hdlcheck/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HistoryTimeout bounds how long recording a run may take.
var HistoryTimeout = 10 * time.Second

// Run kinds stored in history.
const (
	RunKindValidate      = "validate"
	RunKindLegalEmployer = "legal_employer"
)

// customProfile names runs that carry their own rules.
const customProfile = "custom"

// ServiceConfig holds the collaborators and tuning of a Service.
// Store and Metrics may be nil.
type ServiceConfig struct {
	Limiter          *RunLimiter
	Store            RunStore
	Metrics          *metrics.Metrics
	Matcher          ColumnMatcher
	MatchThreshold   float64
	PartitionPattern string
	PrimaryPartition string
}

// Service runs validation requests.
type Service struct {
	limiter *RunLimiter
	store   RunStore
	metrics *metrics.Metrics
	opts    EngineOptions
	tracer  trace.Tracer
}

// NewService creates a new Service instance.
func NewService(cfg ServiceConfig) *Service {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRunLimiter(DefaultMaxConcurrentRuns, DefaultMaxWaitTime)
	}
	s := &Service{
		limiter: limiter,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(tracerName),
	}
	s.opts = EngineOptions{
		Matcher:          cfg.Matcher,
		MatchThreshold:   cfg.MatchThreshold,
		PartitionPattern: cfg.PartitionPattern,
		PrimaryPartition: cfg.PrimaryPartition,
		Observe: func(stage RunPhase, d time.Duration) {
			s.metrics.ObserveStageLatency(string(stage), d)
		},
	}
	return s
}

// Limiter returns the service's run limiter.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// HistoryEnabled reports whether runs are persisted.
func (s *Service) HistoryEnabled() bool {
	return s.store != nil
}

// ListProfiles returns all registered profiles.
func (s *Service) ListProfiles() []Profile {
	return All()
}

// engineFor resolves the request's profile and rule overrides and compiles them.
func (s *Service) engineFor(req Request) (*Engine, string, error) {
	var (
		rules   RuleSet
		actions ActionClassification
		name    string
	)

	if req.Profile != "" {
		p, ok := Get(req.Profile)
		if !ok {
			return nil, req.Profile, fmt.Errorf("%w: %s", ErrUnknownProfile, req.Profile)
		}
		rules, actions, name = p.Rules, p.Actions, p.Name
	}
	if req.Rules != nil {
		rules = *req.Rules
		if name == "" {
			name = customProfile
		}
	}
	if req.Actions != nil {
		actions = *req.Actions
	}
	if name == "" {
		return nil, "", fmt.Errorf("%w: request names no profile and carries no rules", ErrMalformedRuleSet)
	}

	engine, err := NewEngine(rules, actions, s.opts)
	if err != nil {
		return nil, name, err
	}
	return engine, name, nil
}

// Validate runs the full pipeline over the request.
// A malformed rule set, an unknown profile, empty input, or a full limiter
// fail the call; row-level problems are reported in the Result.
func (s *Service) Validate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "validate.run")
	defer span.End()

	engine, profile, err := s.engineFor(req)
	if err != nil {
		return nil, s.fail(span, profile, err)
	}
	if req.TotalRecords() == 0 {
		return nil, s.fail(span, profile, ErrNoInput)
	}

	if err := s.acquire(ctx); err != nil {
		return nil, s.fail(span, profile, err)
	}
	defer s.release()

	result := engine.Run(ctx, req.Components)
	result.RunID = uuid.New().String()
	result.Profile = profile
	result.IdentityField = engine.IdentityField()

	failed := result.FailedCount()
	status := RunStatusPassed
	if failed > 0 {
		status = RunStatusFailed
	}

	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("run.profile", profile),
		attribute.Int("run.rows", len(result.Rows)),
		attribute.Int("run.failed", failed),
	)
	s.metrics.IncrementRun(profile, status)
	s.metrics.ObserveRunLatency(profile, result.Duration)
	s.metrics.AddRows(len(result.Rows)-failed, failed)
	s.metrics.AddReasons(countReasons(result.Rows))

	logging.WithFields(ctx, "run_id", result.RunID, "profile", profile).Info("validation run completed",
		"rows", len(result.Rows),
		"passed", len(result.Rows)-failed,
		"failed", failed,
		"partitions", len(result.Partitions),
		"duration_ms", result.Duration.Milliseconds(),
	)

	s.record(ctx, RunRecord{
		Summary: RunSummary{
			ID:         result.RunID,
			Kind:       RunKindValidate,
			Profile:    profile,
			Status:     status,
			TotalRows:  len(result.Rows),
			PassedRows: len(result.Rows) - failed,
			FailedRows: failed,
			Partitions: len(result.Partitions),
			StartedAt:  result.StartedAt,
			DurationMs: result.Duration.Milliseconds(),
		},
		Failed: failedRecords(result.Failed(), engine.IdentityField()),
	})
	return result, nil
}

// CheckLegalEmployer checks legal employer continuity across all components
// without running the other rules. The rule set must bind the timeline
// columns including the legal employer.
func (s *Service) CheckLegalEmployer(ctx context.Context, req Request) (*LegalEmployerReport, error) {
	ctx, span := s.tracer.Start(ctx, "validate.legal_employer")
	defer span.End()

	engine, profile, err := s.engineFor(req)
	if err != nil {
		return nil, s.fail(span, profile, err)
	}
	if engine.timeline == nil || engine.LegalEmployerField() == "" {
		return nil, s.fail(span, profile, fmt.Errorf(
			"%w: legal employer check needs identity, action, effectiveDate and legalEmployer columns", ErrMalformedRuleSet))
	}
	if req.TotalRecords() == 0 {
		return nil, s.fail(span, profile, ErrNoInput)
	}

	if err := s.acquire(ctx); err != nil {
		return nil, s.fail(span, profile, err)
	}
	defer s.release()

	start := time.Now()
	inconsistent := engine.CheckLegalEmployer(ctx, req.Components)
	report := &LegalEmployerReport{
		RunID:         uuid.New().String(),
		Profile:       profile,
		IdentityField: engine.IdentityField(),
		Status:        RunStatusPassed,
		TotalRows:     req.TotalRecords(),
		Inconsistent:  inconsistent,
		Duration:      time.Since(start),
	}
	if len(inconsistent) > 0 {
		report.Status = RunStatusFailed
	}

	s.metrics.IncrementRun(profile, report.Status)
	logging.WithFields(ctx, "run_id", report.RunID, "profile", profile).Info("legal employer check completed",
		"rows", report.TotalRows,
		"inconsistent", len(inconsistent),
	)

	s.record(ctx, RunRecord{
		Summary: RunSummary{
			ID:         report.RunID,
			Kind:       RunKindLegalEmployer,
			Profile:    profile,
			Status:     report.Status,
			TotalRows:  report.TotalRows,
			PassedRows: report.TotalRows - len(inconsistent),
			FailedRows: len(inconsistent),
			StartedAt:  start,
			DurationMs: report.Duration.Milliseconds(),
		},
		Failed: failedRecords(inconsistent, engine.IdentityField()),
	})
	return report, nil
}

func (s *Service) acquire(ctx context.Context) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyRuns) {
			s.metrics.IncrementRejected()
		}
		return err
	}
	s.metrics.RunStarted()
	return nil
}

func (s *Service) release() {
	s.metrics.RunFinished()
	s.limiter.Release()
}

func (s *Service) fail(span trace.Span, profile string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if profile != "" {
		s.metrics.IncrementRun(profile, "error")
	}
	return err
}

// record stores a run. History is best effort: failures are logged and the
// run result is still returned to the caller.
func (s *Service) record(ctx context.Context, rec RunRecord) {
	if s.store == nil {
		return
	}
	rec.Summary.IPAddress = GetIPAddressFromContext(ctx)
	rec.Summary.UserAgent = GetUserAgentFromContext(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HistoryTimeout)
	defer cancel()

	if err := s.store.RecordRun(ctx, rec); err != nil {
		logging.WithFields(ctx, "run_id", rec.Summary.ID).Error("failed to record run history", "error", err)
	}
}

// ListRuns returns recorded runs, newest first.
func (s *Service) ListRuns(ctx context.Context, opts RunListOptions) ([]RunSummary, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.ListRuns(ctx, opts)
}

// GetRun returns a recorded run.
func (s *Service) GetRun(ctx context.Context, id string) (RunSummary, error) {
	if s.store == nil {
		return RunSummary{}, ErrHistoryDisabled
	}
	return s.store.GetRun(ctx, id)
}

// FailedRows returns the failed rows recorded for a run.
func (s *Service) FailedRows(ctx context.Context, id string) ([]FailedRowRecord, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.FailedRows(ctx, id)
}

func failedRecords(rows []Row, identityField string) []FailedRowRecord {
	out := make([]FailedRowRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, FailedRowRecord{
			Component: row.Component(),
			Line:      row.Line,
			Identity:  row.Get(identityField),
			Values:    row.Map(),
			Reason:    row.ReasonText(),
		})
	}
	return out
}

func countReasons(rows []Row) map[string]int {
	counts := make(map[string]int)
	for _, row := range rows {
		for _, r := range row.reasons {
			counts[string(r.Kind)]++
		}
	}
	return counts
}
