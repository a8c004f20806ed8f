package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
)

func TestObserveStage(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveStage("gapfilled", metrics.OutcomeOK, 2*time.Second)
	m.ObserveStage("gapfilled", metrics.OutcomeOK, time.Second)
	m.ObserveStage("corrected", metrics.OutcomeSkipped, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("gapfilled", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("corrected", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestObserveTool(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveTool("run_fba", nil)
	m.ObserveTool("run_fba", errors.New("x"))
	m.ObserveTool("run_fba", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("run_fba", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("run_fba", "error")))
}

func TestSetRecordsAndReuse(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.SetRecords(3, 5)
	m.ReusedCorrection()
	m.ObserveAnalysis("infeasible")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionRecords.WithLabelValues("model")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SessionRecords.WithLabelValues("media")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorrectionReuse))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("infeasible")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("built", metrics.OutcomeOK, time.Second)
		m.ReusedCorrection()
		m.ObserveAnalysis("optimal")
		m.ObserveTool("x", nil)
		m.SetRecords(1, 1)
	})
}

func TestHandler(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveTool("list_models", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gemflux_mcp_tool_calls_total{outcome="ok",tool="list_models"} 1`)
}
