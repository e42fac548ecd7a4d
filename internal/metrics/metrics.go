// Package metrics exposes Prometheus collectors for the analysis pipeline,
// the model gateways and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/reckon/constants"
)

const namespace = "reckon"

// Metrics owns every collector. It satisfies pipeline.Observer and
// llm.GatewayObserver.
type Metrics struct {
	registry *prometheus.Registry

	// UnitsTotal counts finished analysis units.
	// Labels: flow (document, symptom), outcome (ok or an error kind)
	UnitsTotal *prometheus.CounterVec

	UnitDuration *prometheus.HistogramVec

	// GatewayDuration tracks model gateway latency.
	// Labels: provider, outcome
	GatewayDuration *prometheus.HistogramVec

	// HTTPRequests counts served requests.
	// Labels: method, route, status
	HTTPRequests *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		UnitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "units_total",
				Help:      "Total number of analysis units by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		UnitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "unit_duration_seconds",
				Help:      "Duration of a single analysis unit in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
			},
			[]string{"flow"},
		),
		GatewayDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Duration of model gateway calls in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"provider", "outcome"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) ObserveUnit(flow constants.Flow, outcome string, elapsed time.Duration) {
	m.UnitsTotal.WithLabelValues(string(flow), outcome).Inc()
	m.UnitDuration.WithLabelValues(string(flow)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveGatewayCall(provider, outcome string, elapsed time.Duration) {
	m.GatewayDuration.WithLabelValues(provider, outcome).Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request. route is the route
// pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
