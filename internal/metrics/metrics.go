// Package metrics exposes daemon counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "source_watcher"

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesProcessed atomic.Uint64
	DetectErrors    atomic.Uint64

	// Core outcomes
	Transitions atomic.Uint64
	Alerts      atomic.Uint64
	Suppressed  atomic.Uint64

	// Occupied is 1 while a person is present, 0 otherwise.
	Occupied atomic.Uint64

	// DetectLatencyMs is the latency of the most recent detector call.
	DetectLatencyMs atomic.Uint64

	channelResults *prometheus.CounterVec
	registry       *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		channelResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_results_total",
				Help:      "Notification channel invocations by channel and result",
			},
			[]string{"channel", "result"},
		),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		)
	}
	gauge := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		)
	}

	m.registry.MustRegister(
		counter("frames_processed_total", "Total frames run through the detector", &m.FramesProcessed),
		counter("detect_errors_total", "Total frames skipped because detection failed", &m.DetectErrors),
		counter("transitions_total", "Total presence state transitions", &m.Transitions),
		counter("alerts_total", "Total alerts dispatched", &m.Alerts),
		counter("alerts_suppressed_total", "Total alerts suppressed by the cooldown", &m.Suppressed),
		gauge("occupied", "Scene occupied (0=clear, 1=occupied)", &m.Occupied),
		gauge("detect_latency_ms", "Latency of the most recent detector call in milliseconds", &m.DetectLatencyMs),
		m.channelResults,
	)
}

// SetOccupied updates the presence gauge.
func (m *Metrics) SetOccupied(occupied bool) {
	if occupied {
		m.Occupied.Store(1)
	} else {
		m.Occupied.Store(0)
	}
}

// UpdateDetectLatency records the duration of a detector call.
func (m *Metrics) UpdateDetectLatency(d time.Duration) {
	m.DetectLatencyMs.Store(uint64(d.Milliseconds()))
}

// ChannelResult counts one notification channel invocation.
// Its signature matches notify.ResultFunc.
func (m *Metrics) ChannelResult(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.channelResults.WithLabelValues(channel, result).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
