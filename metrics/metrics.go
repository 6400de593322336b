// Package metrics exposes Prometheus counters and gauges for heartbeat
// and reconnection activity. Every series is labeled by endpoint role.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifeline"

// Recorder owns a registry and the lifeline collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	signalsSent      *prometheus.CounterVec
	signalsReceived  *prometheus.CounterVec
	timeouts         *prometheus.CounterVec
	recoveries       *prometheus.CounterVec
	reconnects       *prometheus.CounterVec
	connected        *prometheus.GaugeVec
	smoothedInterval *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		signalsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_sent_total",
				Help:      "Heartbeat frames written to the transport.",
			},
			[]string{"role"},
		),
		signalsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_received_total",
				Help:      "Heartbeat frames read from the transport.",
			},
			[]string{"role"},
		),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_timeouts_total",
				Help:      "Times the peer was declared unresponsive.",
			},
			[]string{"role"},
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_recoveries_total",
				Help:      "Times a timed-out peer resumed signalling.",
			},
			[]string{"role"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnect_attempts_total",
				Help:      "Reconnection attempts, by outcome of the transport factory.",
			},
			[]string{"role", "result"},
		),
		connected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected",
				Help:      "Number of endpoints whose transport is currently open.",
			},
			[]string{"role"},
		),
		smoothedInterval: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "smoothed_interval_seconds",
				Help:      "Most recent smoothed inter-signal interval observed by a responder.",
			},
			[]string{"role"},
		),
	}

	r.registry.MustRegister(
		r.signalsSent,
		r.signalsReceived,
		r.timeouts,
		r.recoveries,
		r.reconnects,
		r.connected,
		r.smoothedInterval,
	)
	return r
}

// Registry returns the underlying registry, for adding process collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the registry. Mount it with mux.Handle("/metrics", r.Handler()).
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SignalSent(role string) {
	if r == nil {
		return
	}
	r.signalsSent.WithLabelValues(role).Inc()
}

func (r *Recorder) SignalReceived(role string) {
	if r == nil {
		return
	}
	r.signalsReceived.WithLabelValues(role).Inc()
}

func (r *Recorder) SignalTimeout(role string) {
	if r == nil {
		return
	}
	r.timeouts.WithLabelValues(role).Inc()
}

func (r *Recorder) SignalRecovered(role string) {
	if r == nil {
		return
	}
	r.recoveries.WithLabelValues(role).Inc()
}

// ReconnectAttempt counts one factory call; ok is false when the factory failed.
func (r *Recorder) ReconnectAttempt(role string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.reconnects.WithLabelValues(role, result).Inc()
}

// ConnectionOpened and ConnectionClosed must be paired per transport.
func (r *Recorder) ConnectionOpened(role string) {
	if r == nil {
		return
	}
	r.connected.WithLabelValues(role).Inc()
}

func (r *Recorder) ConnectionClosed(role string) {
	if r == nil {
		return
	}
	r.connected.WithLabelValues(role).Dec()
}

func (r *Recorder) SmoothedInterval(role string, d time.Duration) {
	if r == nil {
		return
	}
	r.smoothedInterval.WithLabelValues(role).Set(d.Seconds())
}
