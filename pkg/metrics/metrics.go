/*
Package metrics keeps the prometheus collectors of the system. Everything is
registered on Registry (not the global default one), which is what the API
serves on /metrics.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all collectors defined in this package.
var Registry = prometheus.NewRegistry()

// Observer is the system-wide metrics sink.
var Observer = &Metrics{prometheus: NewPrometheusMetrics()}

func init() {
	Registry.MustRegister(Observer.prometheus.collectors()...)
}

// Prometheus groups the raw collectors.
type Prometheus struct {
	Steps         *prometheus.CounterVec
	EmptyClusters *prometheus.CounterVec
	InvalidStarts *prometheus.CounterVec
	Observations  *prometheus.GaugeVec
	Boards        prometheus.Gauge
}

// NewPrometheusMetrics creates (but doesn't register) the collectors.
func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kmboard",
				Name:      "steps_total",
				Help:      "Refinement steps completed per board.",
			}, []string{"namespace"}),
		EmptyClusters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kmboard",
				Name:      "empty_clusters_total",
				Help:      "Centroid updates that found a cluster without members.",
			}, []string{"namespace"}),
		InvalidStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kmboard",
				Name:      "invalid_starts_total",
				Help:      "Start requests rejected as invalid configuration.",
			}, []string{"namespace"}),
		Observations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "kmboard",
				Name:      "observations",
				Help:      "Observations held by the session of a board.",
			}, []string{"namespace"}),
		Boards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kmboard",
				Name:      "boards",
				Help:      "Boards currently kept by the server.",
			}),
	}
}

func (p Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.Steps, p.EmptyClusters, p.InvalidStarts, p.Observations, p.Boards}
}

// Metrics wraps Prometheus with the operations the system reports. The
// collectors are safe for concurrent use, so Metrics is too.
type Metrics struct {
	prometheus Prometheus
}

// Step records one completed step of a board.
func (m *Metrics) Step(namespace string, observations, emptyClusters int) {
	m.prometheus.Steps.WithLabelValues(namespace).Inc()
	m.prometheus.Observations.WithLabelValues(namespace).Set(float64(observations))
	if emptyClusters > 0 {
		m.prometheus.EmptyClusters.WithLabelValues(namespace).Add(float64(emptyClusters))
	}
}

// Started records a (re)started session.
func (m *Metrics) Started(namespace string, observations int) {
	m.prometheus.Observations.WithLabelValues(namespace).Set(float64(observations))
}

// InvalidStart records a rejected start.
func (m *Metrics) InvalidStart(namespace string) {
	m.prometheus.InvalidStarts.WithLabelValues(namespace).Inc()
}

// Boards sets the current amount of boards.
func (m *Metrics) Boards(n int) {
	m.prometheus.Boards.Set(float64(n))
}

// Forget drops all series of a namespace (used when a board is reset).
func (m *Metrics) Forget(namespace string) {
	m.prometheus.Steps.DeleteLabelValues(namespace)
	m.prometheus.EmptyClusters.DeleteLabelValues(namespace)
	m.prometheus.InvalidStarts.DeleteLabelValues(namespace)
	m.prometheus.Observations.DeleteLabelValues(namespace)
}
