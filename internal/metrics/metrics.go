package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flort"

// Metrics groups every collector of the service. It is registered on its own registry so that
// several containers (tests) never collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	eventsPublished     *prometheus.CounterVec
	listenerFailures    *prometheus.CounterVec
	locationTransitions *prometheus.CounterVec
	persistFailures     prometheus.Counter
	pendingEscalations  prometheus.Gauge
	analyticsEvents     *prometheus.CounterVec
	timestampFallbacks  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published on the in-process bus, by topic.",
		}, []string{"topic"}),
		listenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Listener errors and panics isolated during publish, by topic.",
		}, []string{"topic"}),
		locationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_transitions_total",
			Help:      "Effective conversation location changes.",
		}, []string{"from", "to"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_persist_failures_total",
			Help:      "Location writes that could not be persisted.",
		}),
		pendingEscalations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_escalations",
			Help:      "Live chat conversations waiting for an operator.",
		}),
		analyticsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_total",
			Help:      "Tracked analytics events, by name.",
		}, []string{"event"}),
		timestampFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_fallbacks_total",
			Help:      "Messages whose display time could not be parsed and sorted as oldest.",
		}),
	}

	m.registry.MustRegister(
		m.eventsPublished,
		m.listenerFailures,
		m.locationTransitions,
		m.persistFailures,
		m.pendingEscalations,
		m.analyticsEvents,
		m.timestampFallbacks,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventPublished(topic string) {
	m.eventsPublished.WithLabelValues(topic).Inc()
}

func (m *Metrics) ListenerFailed(topic string) {
	m.listenerFailures.WithLabelValues(topic).Inc()
}

func (m *Metrics) LocationTransition(from, to string) {
	m.locationTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) PersistFailed() {
	m.persistFailures.Inc()
}

func (m *Metrics) SetPendingEscalations(n int) {
	m.pendingEscalations.Set(float64(n))
}

func (m *Metrics) AnalyticsEvent(name string) {
	m.analyticsEvents.WithLabelValues(name).Inc()
}

func (m *Metrics) TimestampFallback(n int) {
	m.timestampFallbacks.Add(float64(n))
}
