// Package metrics exposes Prometheus instrumentation for the bridge.
//
// Every collector is registered on a private registry, so tests can build
// as many instances as they like without colliding on the default one.
// All recording methods are safe on a nil *Metrics, which lets components
// run uninstrumented.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "estufa"

// Drop reasons for inbound messages.
const (
	DropMalformedTopic = "malformed_topic"
	DropUnknownTopic   = "unknown_topic"
	DropDecode         = "decode"
	DropPersist        = "persist"
)

// Command publish results.
const (
	ResultOK        = "ok"
	ResultBusy      = "busy"
	ResultTransport = "transport"
	ResultAudit     = "audit"
)

// Metrics holds the bridge collectors.
type Metrics struct {
	reg *prometheus.Registry

	messagesReceived *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	connectAttempts  prometheus.Counter
	connectFailures  prometheus.Counter
	linkConnected    prometheus.Gauge
	commands         *prometheus.CounterVec
	breakerOpen      prometheus.Gauge
	wsClients        prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		messagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_received_total",
			Help:      "Inbound MQTT messages handled, by route.",
		}, []string{"route"}),
		messagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_dropped_total",
			Help:      "Inbound MQTT messages dropped, by reason.",
		}, []string{"reason"}),
		connectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_connect_attempts_total",
			Help:      "Broker connection attempts made by the supervisor.",
		}),
		connectFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_connect_failures_total",
			Help:      "Broker connection attempts that failed.",
		}),
		linkConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "Broker link state (1 connected, 0 otherwise).",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Manual device commands, by device class and result.",
		}, []string{"device_class", "result"}),
		breakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_breaker_open",
			Help:      "Command publish circuit breaker (1 open or half-open, 0 closed).",
		}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) MessageReceived(route string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(route).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(reason).Inc()
}

// ConnectAttempt records one supervisor attempt and its outcome.
func (m *Metrics) ConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
	if !ok {
		m.connectFailures.Inc()
	}
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	m.linkConnected.Set(boolToFloat(connected))
}

func (m *Metrics) CommandResult(deviceClass, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(deviceClass, result).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	m.breakerOpen.Set(boolToFloat(open))
}

func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
