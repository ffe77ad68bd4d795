// Package metrics exposes Prometheus collectors for the inventory service.
//
// Each Metrics value owns its registry, so tests and multiple servers in
// one process do not collide on registration.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inventory"

// Metrics holds the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	deviceEvents  *prometheus.CounterVec
	droppedEvents prometheus.Counter
	devices       *prometheus.GaugeVec
	authAttempts  *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including the process and
// Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),

		deviceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "events_total",
			Help:      "Device lifecycle events by type.",
		}, []string{"event"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "events_dropped_total",
			Help:      "Device events dropped because the dispatch queue was full.",
		}),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "count",
			Help:      "Devices in the inventory by status.",
		}, []string{"status"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Login and registration attempts by outcome.",
		}, []string{"action", "outcome"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.deviceEvents,
		m.droppedEvents,
		m.devices,
		m.authAttempts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted marks a request in flight. Call the returned func when
// the request completes.
func (m *Metrics) RequestStarted() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveRequest records one completed HTTP request. route should be the
// router pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// DeviceEvent counts a lifecycle event.
func (m *Metrics) DeviceEvent(eventType string) {
	m.deviceEvents.WithLabelValues(eventType).Inc()
}

// EventDropped counts an event the dispatcher could not queue.
func (m *Metrics) EventDropped() {
	m.droppedEvents.Inc()
}

// SetInventory publishes the current device counts.
func (m *Metrics) SetInventory(total, available, issued int) {
	m.devices.WithLabelValues("all").Set(float64(total))
	m.devices.WithLabelValues("available").Set(float64(available))
	m.devices.WithLabelValues("issued").Set(float64(issued))
}

// AuthAttempt counts a login or registration by outcome, such as
// "success", "invalid" or "throttled".
func (m *Metrics) AuthAttempt(action, outcome string) {
	m.authAttempts.WithLabelValues(action, outcome).Inc()
}
