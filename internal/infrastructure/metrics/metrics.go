// Package metrics holds the prometheus collectors for the HTTP server, the
// revision walker and slip lookups.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics is a set of collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	walkDuration    *prometheus.HistogramVec
	walkCommits     *prometheus.HistogramVec
	slipLookups     *prometheus.CounterVec
	slipDuration    prometheus.Histogram
}

// New registers the collectors on reg. Passing prometheus.DefaultRegisterer
// exposes them next to the Go runtime collectors.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repograph_http_requests_total",
				Help: "HTTP requests served, by route and status code",
			},
			[]string{"route", "method", "code"}),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repograph_http_request_duration_seconds",
				Help:    "HTTP request durations",
				Buckets: durationBuckets,
			},
			[]string{"route", "code"}),
		walkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repograph_revwalk_duration_seconds",
				Help:    "time from walk start until the iterator was exhausted or closed",
				Buckets: durationBuckets,
			},
			[]string{"mode"}),
		walkCommits: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repograph_revwalk_commits",
				Help:    "commits emitted per walk",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"mode"}),
		slipLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repograph_slip_lookups_total",
				Help: "slip store lookups by result",
			},
			[]string{"result"}),
		slipDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "repograph_slip_lookup_duration_seconds",
				Help:    "slip store lookup durations",
				Buckets: durationBuckets,
			}),
	}
}

// NewDefault registers on the process-wide default registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	status := strconv.Itoa(code)
	m.requests.WithLabelValues(route, method, status).Inc()
	m.requestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}

// ObserveWalk records a finished revision walk.
func (m *Metrics) ObserveWalk(limited bool, emitted int, elapsed time.Duration) {
	mode := "lazy"
	if limited {
		mode = "limited"
	}
	m.walkDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.walkCommits.WithLabelValues(mode).Observe(float64(emitted))
}

// ObserveSlipLookup records one slip store query.
func (m *Metrics) ObserveSlipLookup(found bool, err error, elapsed time.Duration) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "found"
	}
	m.slipLookups.WithLabelValues(result).Inc()
	m.slipDuration.Observe(elapsed.Seconds())
}
