// Package metrics exposes Prometheus counters for vault synchronization runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaultgraph"

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// nodesMerged counts successful node merges.
	// Labels: label (Directory, Note, Tag)
	nodesMerged *prometheus.CounterVec

	// edgesMerged counts successful relationship merges.
	// Labels: type (CONTAINS, SIBLING_OF, HAS_TAG)
	edgesMerged *prometheus.CounterVec

	// writeErrors counts failed sink writes.
	// Labels: kind (node, edge)
	writeErrors *prometheus.CounterVec

	readErrors    prometheus.Counter
	historyMisses prometheus.Counter

	// runs counts finished synchronization runs.
	// Labels: status (success, error)
	runs *prometheus.CounterVec

	runDuration prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		nodesMerged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "nodes_merged_total",
			Help:      "Total nodes merged into the sink",
		}, []string{"label"}),
		edgesMerged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "relationships_merged_total",
			Help:      "Total relationships merged into the sink",
		}, []string{"type"}),
		writeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_errors_total",
			Help:      "Total failed sink writes",
		}, []string{"kind"}),
		readErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "read_errors_total",
			Help:      "Total notes whose content could not be read",
		}),
		historyMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "history_misses_total",
			Help:      "Total notes without revision timestamps",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total synchronization runs",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of synchronization runs",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// NodeMerged records a merged node.
func (m *Metrics) NodeMerged(label string) {
	if m == nil {
		return
	}
	m.nodesMerged.WithLabelValues(label).Inc()
}

// EdgeMerged records a merged relationship.
func (m *Metrics) EdgeMerged(relType string) {
	if m == nil {
		return
	}
	m.edgesMerged.WithLabelValues(relType).Inc()
}

// WriteError records a failed sink write of the given kind.
func (m *Metrics) WriteError(kind string) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(kind).Inc()
}

// ReadError records a note that could not be read.
func (m *Metrics) ReadError() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}

// HistoryMiss records a note without timestamps.
func (m *Metrics) HistoryMiss() {
	if m == nil {
		return
	}
	m.historyMisses.Inc()
}

// RunFinished records the outcome and duration of a run.
func (m *Metrics) RunFinished(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
