// Package msgroutermetrics exposes the router's counters and gauges as
// Prometheus metrics.
package msgroutermetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

const (
	namespace = "gomsgrouter"
	subsystem = "router"
)

const labelReason = "reason"

// Collector adapts router.MetricsReporter to a set of Prometheus metrics.
// It holds no router-specific state of its own; every call is translated
// directly into a metric update.
type Collector struct {
	// HubCount tracks the number of currently registered hubs.
	HubCount prometheus.Gauge

	// SessionCount tracks the number of currently open or pending sessions.
	SessionCount prometheus.Gauge

	// MessagesRouted counts messages successfully delivered to a
	// recipient's OnMessageReceived.
	MessagesRouted prometheus.Counter

	// MessagesDropped counts messages whose recipient rejected delivery.
	MessagesDropped prometheus.Counter

	// SessionsOpened counts sessions that transitioned to active.
	SessionsOpened prometheus.Counter

	// SessionsClosed counts sessions closed, labeled by Reason.
	SessionsClosed *prometheus.CounterVec
}

var _ router.MetricsReporter = (*Collector)(nil)

// NewCollector creates a Collector with all metrics registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.HubCount,
		c.SessionCount,
		c.MessagesRouted,
		c.MessagesDropped,
		c.SessionsOpened,
		c.SessionsClosed,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		HubCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hubs",
			Help:      "Number of message hubs currently registered with the router.",
		}),
		SessionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of sessions currently tracked by the router, pending or active.",
		}),
		MessagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_routed_total",
			Help:      "Total messages successfully delivered to a recipient.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_dropped_total",
			Help:      "Total messages a recipient refused, closing the session.",
		}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_opened_total",
			Help:      "Total sessions acknowledged and transitioned to active.",
		}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_closed_total",
			Help:      "Total sessions closed, labeled by reason.",
		}, []string{labelReason}),
	}
}

// SetHubCount implements router.MetricsReporter.
func (c *Collector) SetHubCount(n int) {
	c.HubCount.Set(float64(n))
}

// SetSessionCount implements router.MetricsReporter.
func (c *Collector) SetSessionCount(n int) {
	c.SessionCount.Set(float64(n))
}

// IncMessagesRouted implements router.MetricsReporter.
func (c *Collector) IncMessagesRouted() {
	c.MessagesRouted.Inc()
}

// IncMessagesDropped implements router.MetricsReporter.
func (c *Collector) IncMessagesDropped() {
	c.MessagesDropped.Inc()
}

// IncSessionOpened implements router.MetricsReporter.
func (c *Collector) IncSessionOpened() {
	c.SessionsOpened.Inc()
}

// IncSessionClosed implements router.MetricsReporter.
func (c *Collector) IncSessionClosed(reason router.Reason) {
	c.SessionsClosed.WithLabelValues(reason.String()).Inc()
}
