package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus-compatible counters and histograms for
// graph execution, namespaced "graphcore_". Attach via WithMetrics.
type Metrics struct {
	nodeLatency  *prometheus.HistogramVec
	nodeOutcomes *prometheus.CounterVec
	retries      *prometheus.CounterVec
	idempotency  *prometheus.CounterVec
	runOutcomes  *prometheus.CounterVec
}

// NewMetrics registers every metric with registry (use
// prometheus.DefaultRegisterer for the global registry).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphcore",
			Name:      "node_latency_ms",
			Help:      "Node dispatch duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"graph_id", "node_id", "status"}),
		nodeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcore",
			Name:      "node_outcomes_total",
			Help:      "Node dispatch outcomes by status.",
		}, []string{"graph_id", "node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcore",
			Name:      "retries_total",
			Help:      "Retry attempts by node and reason.",
		}, []string{"graph_id", "node_id"}),
		idempotency: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcore",
			Name:      "idempotency_total",
			Help:      "Idempotency cache hits and misses.",
		}, []string{"graph_id", "result"}),
		runOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcore",
			Name:      "run_outcomes_total",
			Help:      "Terminal run outcomes.",
		}, []string{"graph_id", "status"}),
	}
}

func (m *Metrics) observeNode(graphID, nodeID, status string, durationMs float64) {
	if m == nil {
		return
	}
	m.nodeLatency.WithLabelValues(graphID, nodeID, status).Observe(durationMs)
	m.nodeOutcomes.WithLabelValues(graphID, nodeID, status).Inc()
}

func (m *Metrics) observeRetry(graphID, nodeID string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(graphID, nodeID).Inc()
}

func (m *Metrics) observeIdempotency(graphID, result string) {
	if m == nil {
		return
	}
	m.idempotency.WithLabelValues(graphID, result).Inc()
}

func (m *Metrics) observeRunOutcome(graphID, status string) {
	if m == nil {
		return
	}
	m.runOutcomes.WithLabelValues(graphID, status).Inc()
}
