// Package metrics exposes poll outcomes and device state as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"printer_monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnreachable = "unreachable"
	OutcomeProtocol    = "protocol_error"
)

const namespace = "printer_monitor"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	polls        *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	reachable    *prometheus.GaugeVec
	active       *prometheus.GaugeVec
	consumable   *prometheus.GaugeVec
	activations  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Printer status queries by outcome.",
		}, []string{"device", "outcome"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of printer status queries.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"device"}),
		reachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "printer_reachable",
			Help:      "1 when the last poll reached the printer.",
		}, []string{"device"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "printer_active",
			Help:      "1 while the printer is processing.",
		}, []string{"device"}),
		consumable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumable_level_percent",
			Help:      "Consumable level reported by the printer.",
		}, []string{"device", "sub_id", "name"}),
		activations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activations",
			Help:      "Activations since the last counter reset.",
		}, []string{"device"}),
	}
	m.registry.MustRegister(m.polls, m.pollDuration, m.reachable, m.active, m.consumable, m.activations)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePoll records one status query.
func (m *Metrics) ObservePoll(deviceID, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(deviceID, outcome).Inc()
	m.pollDuration.WithLabelValues(deviceID).Observe(d.Seconds())
}

// Publish keeps the state gauges in sync with engine events.
func (m *Metrics) Publish(ev models.StateEvent) {
	if m == nil {
		return
	}
	switch ev.Type {
	case models.EventReachable:
		if ev.Value != nil {
			m.reachable.WithLabelValues(ev.DeviceID).Set(boolGauge(*ev.Value))
		}
	case models.EventActive:
		if ev.Value != nil {
			m.active.WithLabelValues(ev.DeviceID).Set(boolGauge(*ev.Value))
		}
	case models.EventConsumable:
		m.consumable.WithLabelValues(ev.DeviceID, ev.SubID, ev.Name).Set(float64(ev.Level))
	case models.EventConsumableRemoved:
		m.consumable.DeletePartialMatch(prometheus.Labels{"device": ev.DeviceID, "sub_id": ev.SubID})
	case models.EventActivationCount:
		m.activations.WithLabelValues(ev.DeviceID).Set(float64(ev.Count))
	case models.EventDeviceRemoved:
		labels := prometheus.Labels{"device": ev.DeviceID}
		m.polls.DeletePartialMatch(labels)
		m.pollDuration.DeletePartialMatch(labels)
		m.reachable.DeletePartialMatch(labels)
		m.active.DeletePartialMatch(labels)
		m.consumable.DeletePartialMatch(labels)
		m.activations.DeletePartialMatch(labels)
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
