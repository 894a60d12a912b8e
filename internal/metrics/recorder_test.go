package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveNodeDuration("a", time.Second)
	r.IncNodeResult("a", "Succeeded")
	r.ObserveRunDuration(time.Second)
	r.IncRunOutcome("Succeeded")
	r.IncFinalizerResult("None")
	r.SetRunningNodes(3)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveNodeDuration("build-a", 150*time.Millisecond)
	pr.IncNodeResult("build-a", "Succeeded")
	pr.IncNodeResult("build-b", "Failed")
	pr.IncNodeResult("build-b", "Failed")
	pr.ObserveRunDuration(2 * time.Second)
	pr.IncRunOutcome("Failed")
	pr.IncFinalizerResult("Succeeded")
	pr.SetRunningNodes(4)

	assert.Equal(t, float64(2), testutil.ToFloat64(pr.nodeResults.WithLabelValues("build-b", "Failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pr.runOutcomes.WithLabelValues("Failed")))
	assert.Equal(t, float64(4), testutil.ToFloat64(pr.runningNodes))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 6)
}

func TestNilPrometheusRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveNodeDuration("a", time.Second)
	pr.IncRunOutcome("Succeeded")
	pr.SetRunningNodes(1)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome("Succeeded")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pipegrid_run_outcomes_total{status="Succeeded"} 1`)
}
