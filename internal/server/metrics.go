package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the request metrics for the serve layer. Labels stay
// low-cardinality: route class rather than raw path.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	renderErrors    prometheus.Counter
}

// NewMetrics registers the serve metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slipway",
			Name:      "requests_total",
			Help:      "Total requests served, by route class and status",
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slipway",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		renderErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "slipway",
			Name:      "render_errors_total",
			Help:      "Total render function failures caught per request",
		}),
	}
}

// Route classes used as metric labels.
const (
	routeBuild  = "build"
	routePublic = "public"
	routeRender = "render"
)

func (m *Metrics) observe(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) renderError() {
	if m == nil {
		return
	}
	m.renderErrors.Inc()
}
