package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffloadMetricsRecordOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewOffloadMetrics(registry)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		operation string
		status    string
	}{
		{"spectrum success", OpProcessAudio, StatusSuccess},
		{"rms success", OpCalculateRMS, StatusSuccess},
		{"filter error", OpApplyFilter, StatusError},
		{"batch success", OpProcessBatch, StatusSuccess},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m.RecordOperation(tc.operation, tc.status)
			count := testutil.ToFloat64(m.operationsTotal.WithLabelValues(tc.operation, tc.status))
			assert.InDelta(t, 1.0, count, 0)
		})
	}
}

func TestOffloadMetricsCacheAndStrategy(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewOffloadMetrics(registry)
	require.NoError(t, err)

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordStrategy(OpProcessAudio, "offloaded")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues(LabelCacheHit)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues(LabelCacheMiss)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.strategyTotal.WithLabelValues(OpProcessAudio, "offloaded")), 0)
}

func TestOffloadMetricsBridgeGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewOffloadMetrics(registry)
	require.NoError(t, err)

	m.SetBridgeReady(true)
	m.SetBridgePending(3)
	m.RecordBridgeFault()
	m.SetBridgeReady(false)
	m.SetPoolState(7, 2)
	m.SetPoolState(5, 0)

	assert.InDelta(t, 0.0, testutil.ToFloat64(m.bridgeReady), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.bridgePending), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.bridgeFaults), 0)
	assert.InDelta(t, 5.0, testutil.ToFloat64(m.poolSize), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.poolDiscards), 0)
}

func TestOffloadMetricsDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewOffloadMetrics(registry)
	require.NoError(t, err)

	_, err = NewOffloadMetrics(registry)
	require.Error(t, err)
}

func TestCaptureMetricsRecordBuffer(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(registry)
	require.NoError(t, err)

	m.RecordBuffer(1024, 2048, 0.25, 0.5, false)
	m.RecordBuffer(1024, 2048, 0.5, 0.99, true)
	m.RecordStateTransition("idle", "capturing")
	m.RecordError("audio-device")
	m.RecordRecording(StatusSuccess)
	m.SetRecordingActive(true)

	assert.InDelta(t, 2048.0, testutil.ToFloat64(m.framesTotal), 0)
	assert.InDelta(t, 4096.0, testutil.ToFloat64(m.bytesTotal), 0)
	assert.InDelta(t, 0.5, testutil.ToFloat64(m.levelGauge), 0)
	assert.InDelta(t, 0.99, testutil.ToFloat64(m.peakGauge), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.clippingTotal), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.stateTransitions.WithLabelValues("idle", "capturing")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.captureErrors.WithLabelValues("audio-device")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.recordingsTotal.WithLabelValues(StatusSuccess)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.recordingActive), 0)
}
