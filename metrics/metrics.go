// Package metrics exposes the agent's Prometheus instrumentation: buffer
// occupancy, active streaming observers, and per-route HTTP counters,
// served over the same mux the protocol handlers register on.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the agent reports, registered on a private
// prometheus.Registry rather than the global default so multiple agent
// instances in one process (as in tests) never collide.
type Registry struct {
	reg *prometheus.Registry

	BufferSequence  prometheus.Gauge
	BufferSize      prometheus.Gauge
	ObserversActive prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New builds and registers the agent's metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		BufferSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mtconnect_buffer_sequence",
			Help: "Next sequence number to be assigned in the observation buffer.",
		}),
		BufferSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mtconnect_buffer_size",
			Help: "Number of observations currently held in the circular buffer.",
		}),
		ObserversActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mtconnect_observers_active",
			Help: "Number of open streaming (sample/current interval) connections.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mtconnect_http_requests_total",
			Help: "Total HTTP requests handled, by route and response status.",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mtconnect_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns the HTTP handler to serve at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Observe records one completed HTTP request's route, status, and
// duration. route should be the registered pattern (e.g. "/sample"), not
// the raw path, so cardinality stays bounded.
func (r *Registry) Observe(route string, status int, d time.Duration) {
	statusLabel := statusBucket(status)
	r.HTTPRequests.WithLabelValues(route, statusLabel).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusBucket(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
