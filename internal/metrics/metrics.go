// Package metrics exposes Prometheus counters for session and stream
// activity. A nil *Metrics disables recording, which keeps tests quiet.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	streamsStarted  prometheus.Counter
	streamsStopped  prometheus.Counter
	streamsAborted  prometheus.Counter
	eventsPublished *prometheus.CounterVec
	observers       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castforge_sessions_created_total",
		Help: "Broadcast sessions created.",
	})
	m.streamsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castforge_streams_started_total",
		Help: "Encoder processes launched.",
	})
	m.streamsStopped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castforge_streams_stopped_total",
		Help: "Encoder processes stopped on request.",
	})
	m.streamsAborted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castforge_streams_aborted_total",
		Help: "Encoder processes that exited unexpectedly.",
	})
	m.eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castforge_events_published_total",
		Help: "Realtime events published, by topic.",
	}, []string{"topic"})
	m.observers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "castforge_observers_connected",
		Help: "Currently connected realtime observers.",
	})

	m.registry.MustRegister(
		m.sessionsCreated,
		m.streamsStarted,
		m.streamsStopped,
		m.streamsAborted,
		m.eventsPublished,
		m.observers,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncSessionsCreated() {
	if m != nil {
		m.sessionsCreated.Inc()
	}
}

func (m *Metrics) IncStreamsStarted() {
	if m != nil {
		m.streamsStarted.Inc()
	}
}

func (m *Metrics) IncStreamsStopped() {
	if m != nil {
		m.streamsStopped.Inc()
	}
}

func (m *Metrics) IncStreamsAborted() {
	if m != nil {
		m.streamsAborted.Inc()
	}
}

func (m *Metrics) IncEventsPublished(topic string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) ObserverConnected() {
	if m != nil {
		m.observers.Inc()
	}
}

func (m *Metrics) ObserverDisconnected() {
	if m != nil {
		m.observers.Dec()
	}
}
