// Package metrics instruments the capture and inference loop with Prometheus.
//
// Every recording method is safe to call on a nil *Metrics, so components
// can be built without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for FramesDropped.
const (
	DropDisconnected = "disconnected"
	DropBusy         = "busy"
)

// Metrics holds all Prometheus metrics for a visualizer process.
type Metrics struct {
	registry *prometheus.Registry

	// Capture metrics
	FramesCaptured prometheus.Counter
	FramesSkipped  prometheus.Counter
	FramesDropped  *prometheus.CounterVec
	FramesSent     prometheus.Counter
	FrameBytes     prometheus.Histogram
	SendErrors     prometheus.Counter

	// Session metrics
	Connects    *prometheus.CounterVec
	Connected   prometheus.Gauge
	ToolCalls   *prometheus.CounterVec
	Tension     prometheus.Gauge
	StreamEnded *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on a private
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "kinetic"
	}

	registry := prometheus.NewRegistry()

	framesCaptured := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_captured_total",
		Help:      "Camera frames sampled and encoded",
	})
	framesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_skipped_total",
		Help:      "Capture ticks with no frame available",
	})
	framesDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Encoded frames not handed to the session",
		},
		[]string{"reason"},
	)
	framesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_sent_total",
		Help:      "Frames written to the inference stream",
	})
	frameBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "frame_bytes",
		Help:      "Encoded JPEG frame size in bytes",
		Buckets:   prometheus.ExponentialBuckets(2048, 2, 8),
	})
	sendErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "send_errors_total",
		Help:      "Failed writes to the inference stream",
	})
	connects := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Inference session connection attempts",
		},
		[]string{"result"},
	)
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected",
		Help:      "1 while an inference session is open",
	})
	toolCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Inbound tool calls by name and outcome",
		},
		[]string{"name", "outcome"},
	)
	tension := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tension",
		Help:      "Most recent tension value",
	})
	streamEnded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_ended_total",
			Help:      "Inference streams that ended, by cause",
		},
		[]string{"cause"},
	)

	registry.MustRegister(
		framesCaptured,
		framesSkipped,
		framesDropped,
		framesSent,
		frameBytes,
		sendErrors,
		connects,
		connected,
		toolCalls,
		tension,
		streamEnded,
	)

	return &Metrics{
		registry:       registry,
		FramesCaptured: framesCaptured,
		FramesSkipped:  framesSkipped,
		FramesDropped:  framesDropped,
		FramesSent:     framesSent,
		FrameBytes:     frameBytes,
		SendErrors:     sendErrors,
		Connects:       connects,
		Connected:      connected,
		ToolCalls:      toolCalls,
		Tension:        tension,
		StreamEnded:    streamEnded,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCapture records one encoded frame of the given size.
func (m *Metrics) RecordCapture(bytes int) {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
	m.FrameBytes.Observe(float64(bytes))
}

// RecordSkip records a tick without a frame.
func (m *Metrics) RecordSkip() {
	if m == nil {
		return
	}
	m.FramesSkipped.Inc()
}

// RecordDrop records a frame dropped for reason.
func (m *Metrics) RecordDrop(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordSend records a frame write and its outcome.
func (m *Metrics) RecordSend(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendErrors.Inc()
		return
	}
	m.FramesSent.Inc()
}

// RecordConnect records a connection attempt.
func (m *Metrics) RecordConnect(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Connects.WithLabelValues("error").Inc()
		return
	}
	m.Connects.WithLabelValues("ok").Inc()
	m.Connected.Set(1)
}

// RecordDisconnect records the end of a session.
func (m *Metrics) RecordDisconnect(cause string) {
	if m == nil {
		return
	}
	m.Connected.Set(0)
	m.StreamEnded.WithLabelValues(cause).Inc()
}

// RecordToolCall records an inbound tool call.
func (m *Metrics) RecordToolCall(name, outcome string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(name, outcome).Inc()
}

// RecordTension records the latest accepted tension.
func (m *Metrics) RecordTension(v float64) {
	if m == nil {
		return
	}
	m.Tension.Set(v)
}
