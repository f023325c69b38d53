// Package metrics exposes Prometheus collectors for validation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the validation engine.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	// Run outcomes by profile and status ("passed", "failed", "error")
	Runs *prometheus.CounterVec

	// Full run latency by profile
	RunLatency *prometheus.HistogramVec

	// Latency of each pipeline stage
	StageLatency *prometheus.HistogramVec

	// Rows processed by outcome ("passed", "failed")
	Rows *prometheus.CounterVec

	// Failure reasons by kind (schema, format, lookup, uniqueness, sequence, cascade)
	Reasons *prometheus.CounterVec

	// Runs currently holding a limiter slot
	InFlight prometheus.Gauge

	// Runs rejected because no slot freed up in time
	Rejected prometheus.Counter
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hdlcheck_runs_total",
			Help: "Total validation runs by profile and status",
		}, []string{"profile", "status"}),

		RunLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hdlcheck_run_duration_seconds",
			Help:    "Duration of a full validation run",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"profile"}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hdlcheck_stage_duration_seconds",
			Help:    "Duration of each validation pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"stage"}),

		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hdlcheck_rows_total",
			Help: "Rows validated by outcome",
		}, []string{"outcome"}),

		Reasons: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hdlcheck_failure_reasons_total",
			Help: "Row failure reasons by kind",
		}, []string{"kind"}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hdlcheck_runs_in_flight",
			Help: "Validation runs currently executing",
		}),

		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "hdlcheck_runs_rejected_total",
			Help: "Validation runs rejected because the concurrency limit was reached",
		}),
	}
}

// IncrementRun records a run outcome.
func (m *Metrics) IncrementRun(profile, status string) {
	if m != nil {
		m.Runs.WithLabelValues(profile, status).Inc()
	}
}

// ObserveRunLatency records the duration of a full run.
func (m *Metrics) ObserveRunLatency(profile string, d time.Duration) {
	if m != nil {
		m.RunLatency.WithLabelValues(profile).Observe(d.Seconds())
	}
}

// ObserveStageLatency records the duration of one pipeline stage.
func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// AddRows records passed and failed row counts.
func (m *Metrics) AddRows(passed, failed int) {
	if m != nil {
		m.Rows.WithLabelValues("passed").Add(float64(passed))
		m.Rows.WithLabelValues("failed").Add(float64(failed))
	}
}

// AddReasons records failure reason counts keyed by kind.
func (m *Metrics) AddReasons(byKind map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range byKind {
		m.Reasons.WithLabelValues(kind).Add(float64(n))
	}
}

// RunStarted increments the in-flight gauge.
func (m *Metrics) RunStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

// RunFinished decrements the in-flight gauge.
func (m *Metrics) RunFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

// IncrementRejected records a run rejected by the limiter.
func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}
