package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the roon web server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	sessionsActive     prometheus.Gauge
	sessionsRegistered prometheus.Counter
	eventsPublished    *prometheus.CounterVec
	zones              prometheus.Gauge
	upstreamState      *prometheus.GaugeVec
	commandsTotal      *prometheus.CounterVec
	queueStartFailures prometheus.Counter
	subscribersDropped prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roon_web_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roon_web_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roon_web_sessions_active",
			Help: "Number of registered viewer sessions",
		}),
		sessionsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roon_web_sessions_registered_total",
			Help: "Total number of viewer sessions registered",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roon_web_events_published_total",
			Help: "Events published on the shared broadcast, by event type",
		}, []string{"event"}),
		zones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roon_web_zones",
			Help: "Number of zones in the zone table",
		}),
		upstreamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roon_web_upstream_state",
			Help: "1 for the current global state of the synchronization engine, 0 otherwise",
		}, []string{"state"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roon_web_commands_total",
			Help: "Commands executed against the upstream core, by result",
		}, []string{"result"}),
		queueStartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roon_web_queue_start_failures_total",
			Help: "Queue sub-manager start failures",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roon_web_subscribers_dropped_total",
			Help: "Feeds closed because the viewer fell behind",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessionsActive,
		m.sessionsRegistered,
		m.eventsPublished,
		m.zones,
		m.upstreamState,
		m.commandsTotal,
		m.queueStartFailures,
		m.subscribersDropped,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// SessionRegistered records a new session and the resulting active count.
func (m *Metrics) SessionRegistered(active int) {
	if m == nil {
		return
	}
	m.sessionsRegistered.Inc()
	m.sessionsActive.Set(float64(active))
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// IncEventsPublished counts one event of the given type.
func (m *Metrics) IncEventsPublished(event string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(event).Inc()
}

// SetZones sets the zone count gauge.
func (m *Metrics) SetZones(n int) {
	if m == nil {
		return
	}
	m.zones.Set(float64(n))
}

// SetUpstreamState marks current as the active state among all.
func (m *Metrics) SetUpstreamState(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.upstreamState.WithLabelValues(s).Set(v)
	}
}

// IncCommands counts a command result ("success" or "failed").
func (m *Metrics) IncCommands(result string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(result).Inc()
}

// IncQueueStartFailures increments the queue start failure counter.
func (m *Metrics) IncQueueStartFailures() {
	if m == nil {
		return
	}
	m.queueStartFailures.Inc()
}

// IncSubscribersDropped increments the dropped subscriber counter.
func (m *Metrics) IncSubscribersDropped() {
	if m == nil {
		return
	}
	m.subscribersDropped.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
