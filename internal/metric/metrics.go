// Package metric holds the gateway's Prometheus instruments.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Metrics groups every gateway counter, gauge and histogram.
type Metrics struct {
	Registry *prometheus.Registry

	CommandsTotal      *prometheus.CounterVec
	RepliesTotal       *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	MalformedPayloads  prometheus.Counter
	DroppedMessages    *prometheus.CounterVec
	ConnectionsTotal   *prometheus.CounterVec
	ConnectionState    prometheus.Gauge
	DeviceCallDuration *prometheus.HistogramVec
}

// New creates the metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound commands by method and result",
		}, []string{"method", "result"}),

		RepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies sent by reply method",
		}, []string{"method"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent by event family",
		}, []string{"method"}),

		MalformedPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_payloads_total",
			Help:      "Inbound frames that could not be decoded",
		}),

		DroppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Outbound messages not delivered",
		}, []string{"reason"}), // reason: encode, closed, write

		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connection attempts by outcome",
		}, []string{"outcome"}), // outcome: accepted, busy, upgrade_failed

		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected, 1=connecting, 2=open, 3=closing)",
		}),

		DeviceCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_call_duration_seconds",
			Help:      "Device interface call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CommandsTotal,
		m.RepliesTotal,
		m.NotificationsTotal,
		m.MalformedPayloads,
		m.DroppedMessages,
		m.ConnectionsTotal,
		m.ConnectionState,
		m.DeviceCallDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordCommand counts one dispatched command.
func (m *Metrics) RecordCommand(method, result string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(method, result).Inc()
}

func (m *Metrics) RecordReply(method string) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordNotification(method string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.MalformedPayloads.Inc()
}

func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedMessages.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordConnection(outcome string) {
	if m == nil {
		return
	}
	m.ConnectionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// ObserveDeviceCall records how long a device call took since start.
func (m *Metrics) ObserveDeviceCall(method string, start time.Time) {
	if m == nil {
		return
	}
	m.DeviceCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
