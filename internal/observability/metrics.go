package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vendortwin"

// Metrics holds the Prometheus collectors for one process. All methods are
// safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	simulations        *prometheus.CounterVec
	simulationDuration prometheus.Histogram
	overallScore       prometheus.Histogram
	loadEntries        *prometheus.CounterVec
	merged             *prometheus.CounterVec
	remainingGroups    *prometheus.GaugeVec
	events             *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// Labels: status (success, invalid_input, graph_unavailable, internal)
		simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "requests_total",
			Help:      "Total simulation requests by outcome",
		}, []string{"status"}),
		simulationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		overallScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "overall_score",
			Help:      "Distribution of overall impact scores",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		// Labels: kind (dependencies, compliance), result (loaded, skipped)
		loadEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "entries_total",
			Help:      "Document entries processed by the loader",
		}, []string{"kind", "result"}),
		merged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "merged_nodes_total",
			Help:      "Duplicate nodes folded into a canonical node",
		}, []string{"label"}),
		remainingGroups: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "remaining_duplicate_groups",
			Help:      "Duplicate groups left after the last verification",
		}, []string{"label"}),
		// Labels: type (event type), result (published, failed, dropped)
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "total",
			Help:      "Events handed to the publisher by outcome",
		}, []string{"type", "result"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordSimulation records a finished simulation.
func (m *Metrics) RecordSimulation(status string, duration time.Duration, overall float64) {
	if m == nil {
		return
	}
	m.simulations.WithLabelValues(status).Inc()
	m.simulationDuration.Observe(duration.Seconds())
	if status == "success" {
		m.overallScore.Observe(overall)
	}
}

// RecordLoad records loader entry counts.
func (m *Metrics) RecordLoad(kind string, loaded, skipped int) {
	if m == nil {
		return
	}
	m.loadEntries.WithLabelValues(kind, "loaded").Add(float64(loaded))
	m.loadEntries.WithLabelValues(kind, "skipped").Add(float64(skipped))
}

// RecordMerge records merged nodes for a label.
func (m *Metrics) RecordMerge(label string, nodes int) {
	if m == nil {
		return
	}
	m.merged.WithLabelValues(label).Add(float64(nodes))
}

// SetRemainingGroups records the verification outcome for a label.
func (m *Metrics) SetRemainingGroups(label string, groups int) {
	if m == nil {
		return
	}
	m.remainingGroups.WithLabelValues(label).Set(float64(groups))
}

// RecordEvent records a publisher outcome.
func (m *Metrics) RecordEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, result).Inc()
}
