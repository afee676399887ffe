// Package metrics exposes the signaling server's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "multiview"

type Metrics struct {
	connections *prometheus.GaugeVec
	events      *prometheus.CounterVec
	admissions  *prometheus.CounterVec
	edges       prometheus.Gauge
	streams     prometheus.Gauge
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Connections currently joined, by role.",
		}, []string{"role"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Dispatched events by name and outcome.",
		}, []string{"event", "outcome"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Connection attempts by result.",
		}, []string{"result"}),
		edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Observer/broadcaster links in the connection graph.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available_streams",
			Help:      "Broadcasters currently announcing a stream.",
		}),
	}
	reg.MustRegister(m.connections, m.events, m.admissions, m.edges, m.streams)
	return m
}

func (m *Metrics) SetConnections(role string, n int) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Set(float64(n))
}

// Event counts one dispatched event. outcome is "ok" or the error kind.
func (m *Metrics) Event(name, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name, outcome).Inc()
}

// Admission counts one connection attempt. result is "admitted" or a close reason.
func (m *Metrics) Admission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}

func (m *Metrics) SetEdges(n int) {
	if m == nil {
		return
	}
	m.edges.Set(float64(n))
}

func (m *Metrics) SetStreams(n int) {
	if m == nil {
		return
	}
	m.streams.Set(float64(n))
}
