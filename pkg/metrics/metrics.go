// Package metrics exposes Prometheus instrumentation for the tree pipeline.
// One Pipeline instance is shared by the scheduler and the search client and
// served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "psychohistory"

// Pipeline collects build-time metrics. It satisfies the Metrics interfaces
// of the tree and search packages.
type Pipeline struct {
	inflightPipelines prometheus.Gauge
	nodesCompleted    prometheus.Counter
	nodesFailed       prometheus.Counter
	nodeDuration      prometheus.Histogram
	searchesIssued    *prometheus.CounterVec
	searchesRetried   *prometheus.CounterVec
}

// NewPipeline registers the pipeline metrics with the given registerer.
// A nil registerer uses the global default.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Pipeline{
		inflightPipelines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_pipelines",
			Help:      "Node pipelines currently executing",
		}),
		nodesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_completed_total",
			Help:      "Nodes whose pipeline produced children",
		}),
		nodesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_failed_total",
			Help:      "Nodes whose pipeline failed",
		}),
		nodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Wall-clock duration of one node pipeline",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		searchesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_issued_total",
			Help:      "Search queries sent to a provider",
		}, []string{"provider"}),
		searchesRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_retried_total",
			Help:      "Search retries after transient provider failures",
		}, []string{"provider"}),
	}
}

// PipelineStarted marks one node pipeline as in flight.
func (p *Pipeline) PipelineStarted() { p.inflightPipelines.Inc() }

// PipelineFinished marks one node pipeline as done.
func (p *Pipeline) PipelineFinished() { p.inflightPipelines.Dec() }

// NodeCompleted records a successful node pipeline.
func (p *Pipeline) NodeCompleted(d time.Duration) {
	p.nodesCompleted.Inc()
	p.nodeDuration.Observe(d.Seconds())
}

// NodeFailed records a failed node pipeline.
func (p *Pipeline) NodeFailed(d time.Duration) {
	p.nodesFailed.Inc()
	p.nodeDuration.Observe(d.Seconds())
}

// SearchIssued records one outbound search query.
func (p *Pipeline) SearchIssued(provider string) {
	p.searchesIssued.WithLabelValues(provider).Inc()
}

// SearchRetried records one search retry.
func (p *Pipeline) SearchRetried(provider string) {
	p.searchesRetried.WithLabelValues(provider).Inc()
}
