// Package metrics defines the Prometheus instruments of the server. All
// recording methods are safe on a nil *Metrics, which disables recording.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gemflux"

// Outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeNoSolution = "no_solution"
	OutcomeSkipped    = "skipped"
)

// Metrics holds the server's instruments.
type Metrics struct {
	// StageRuns counts pipeline stage executions.
	// Labels: stage (built, corrected, gapfilled), outcome
	StageRuns *prometheus.CounterVec

	// StageDuration measures collaborator time per stage.
	// Labels: stage
	StageDuration *prometheus.HistogramVec

	// CorrectionReuse counts refines that inherited a test condition set.
	CorrectionReuse prometheus.Counter

	// Analyses counts optimizations by solver status.
	// Labels: status (optimal, infeasible, unbounded, error)
	Analyses *prometheus.CounterVec

	// ToolCalls counts tool invocations.
	// Labels: tool, outcome (ok, error)
	ToolCalls *prometheus.CounterVec

	// SessionRecords tracks the number of stored records.
	// Labels: kind (model, media)
	SessionRecords *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers the instruments on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by stage and outcome",
		}, []string{"stage", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Collaborator time spent per pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		CorrectionReuse: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "correction_reuse_total",
			Help:      "Refines that reused an inherited test condition set",
		}),
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Flux balance analyses by solver status",
		}, []string{"status"}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		SessionRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "records",
			Help:      "Records currently stored in the session",
		}, []string{"kind"}),
		gatherer: reg,
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ReusedCorrection records a skipped correction stage.
func (m *Metrics) ReusedCorrection() {
	if m == nil {
		return
	}
	m.CorrectionReuse.Inc()
}

// ObserveAnalysis records one analysis outcome.
func (m *Metrics) ObserveAnalysis(status string) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(status).Inc()
}

// ObserveTool records one tool call.
func (m *Metrics) ObserveTool(tool string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

// SetRecords updates the session record gauges.
func (m *Metrics) SetRecords(models, media int) {
	if m == nil {
		return
	}
	m.SessionRecords.WithLabelValues("model").Set(float64(models))
	m.SessionRecords.WithLabelValues("media").Set(float64(media))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
