package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics contains Prometheus metrics for the capture facade.
type CaptureMetrics struct {
	registry *prometheus.Registry

	stateTransitions *prometheus.CounterVec
	captureErrors    *prometheus.CounterVec
	framesTotal      prometheus.Counter
	bytesTotal       prometheus.Counter
	levelGauge       prometheus.Gauge
	peakGauge        prometheus.Gauge
	clippingTotal    prometheus.Counter
	recordingsTotal  *prometheus.CounterVec
	recordingActive  prometheus.Gauge
}

// NewCaptureMetrics creates and registers capture metrics
func NewCaptureMetrics(registry *prometheus.Registry) (*CaptureMetrics, error) {
	m := &CaptureMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize capture metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register capture metrics: %w", err)
	}
	return m, nil
}

func (m *CaptureMetrics) initMetrics() error {
	m.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_state_transitions_total",
			Help: "Capture state transitions by target state",
		},
		[]string{"from", "to"},
	)

	m.captureErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_errors_total",
			Help: "Capture errors by category",
		},
		[]string{"category"},
	)

	m.framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_frames_total",
		Help: "Total number of audio frames delivered by the engine",
	})

	m.bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_bytes_total",
		Help: "Total number of PCM bytes delivered by the engine",
	})

	m.levelGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capture_level_rms",
		Help: "Most recent RMS level (0..1)",
	})

	m.peakGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capture_level_peak",
		Help: "Peak level since the last reset (0..1)",
	})

	m.clippingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_clipping_buffers_total",
		Help: "Buffers containing at least one clipped sample",
	})

	m.recordingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_recordings_total",
			Help: "Recordings by outcome",
		},
		[]string{"status"},
	)

	m.recordingActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capture_recording_active",
		Help: "1 while a recording is in progress",
	})

	return nil
}

// RecordStateTransition records a facade state change
func (m *CaptureMetrics) RecordStateTransition(from, to string) {
	m.stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordError records a capture error
func (m *CaptureMetrics) RecordError(category string) {
	m.captureErrors.WithLabelValues(category).Inc()
}

// RecordBuffer records one delivered buffer and its levels
func (m *CaptureMetrics) RecordBuffer(frames, bytes int, rms, peak float64, clipping bool) {
	m.framesTotal.Add(float64(frames))
	m.bytesTotal.Add(float64(bytes))
	m.levelGauge.Set(rms)
	m.peakGauge.Set(peak)
	if clipping {
		m.clippingTotal.Inc()
	}
}

// RecordRecording records the end of a recording
func (m *CaptureMetrics) RecordRecording(status string) {
	m.recordingsTotal.WithLabelValues(status).Inc()
}

// SetRecordingActive flags whether a recording is in progress
func (m *CaptureMetrics) SetRecordingActive(active bool) {
	if active {
		m.recordingActive.Set(1)
		return
	}
	m.recordingActive.Set(0)
}

// Describe implements the prometheus.Collector interface.
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.stateTransitions.Describe(ch)
	m.captureErrors.Describe(ch)
	m.recordingsTotal.Describe(ch)
	ch <- m.framesTotal.Desc()
	ch <- m.bytesTotal.Desc()
	ch <- m.levelGauge.Desc()
	ch <- m.peakGauge.Desc()
	ch <- m.clippingTotal.Desc()
	ch <- m.recordingActive.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	m.stateTransitions.Collect(ch)
	m.captureErrors.Collect(ch)
	m.recordingsTotal.Collect(ch)
	ch <- m.framesTotal
	ch <- m.bytesTotal
	ch <- m.levelGauge
	ch <- m.peakGauge
	ch <- m.clippingTotal
	ch <- m.recordingActive
}
