package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pipegrid"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	nodeDuration     *prom.HistogramVec
	nodeResults      *prom.CounterVec
	runDuration      prom.Histogram
	runOutcomes      *prom.CounterVec
	finalizerResults *prom.CounterVec
	runningNodes     prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		nodeDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of individual node executions",
			Buckets:   prom.ExponentialBuckets(0.1, 2, 14),
		}, []string{"node"}),
		nodeResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "node_results_total",
			Help:      "Node terminal states",
		}, []string{"node", "state"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration, finalizer included",
			Buckets:   prom.ExponentialBuckets(1, 2, 14),
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"status"}),
		finalizerResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "finalizer_results_total",
			Help:      "Finalizer terminal states",
		}, []string{"state"}),
		runningNodes: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "running_nodes",
			Help:      "Nodes currently running",
		}),
	}
	reg.MustRegister(pr.nodeDuration, pr.nodeResults, pr.runDuration, pr.runOutcomes, pr.finalizerResults, pr.runningNodes)
	return pr
}

func (p *PrometheusRecorder) ObserveNodeDuration(node string, d time.Duration) {
	if p == nil {
		return
	}
	p.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncNodeResult(node, state string) {
	if p == nil {
		return
	}
	p.nodeResults.WithLabelValues(node, state).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(status string) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncFinalizerResult(state string) {
	if p == nil {
		return
	}
	p.finalizerResults.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) SetRunningNodes(n int) {
	if p == nil {
		return
	}
	p.runningNodes.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
