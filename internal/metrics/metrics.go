// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the application's metrics.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   prometheus.Histogram
	gateDecisions *prometheus.CounterVec
	logins        *prometheus.CounterVec
	feedEvents    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todohub_http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todohub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todohub_gate_decisions_total",
			Help: "Access gate outcomes by disposition.",
		}, []string{"disposition"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todohub_logins_total",
			Help: "Login attempts by outcome (success, bad_credentials, blocked, throttled).",
		}, []string{"outcome"}),
		feedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todohub_feed_events_published_total",
			Help: "Change events published to the in-process feed.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.gateDecisions,
		c.logins,
		c.feedEvents,
	)

	return c
}

// RecordHTTPRequest records one finished HTTP request.
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordGateDecision records one access-gate evaluation outcome.
func (c *Collector) RecordGateDecision(disposition string) {
	c.gateDecisions.WithLabelValues(disposition).Inc()
}

// RecordLogin records one login attempt outcome.
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordFeedEvent records one published change event.
func (c *Collector) RecordFeedEvent() {
	c.feedEvents.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
