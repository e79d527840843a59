package offload

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiokit/internal/observability/metrics"
	"github.com/tphakala/audiokit/internal/offload/worker"
)

func gauge(name, help, value string) string {
	return "# HELP " + name + " " + help + "\n# TYPE " + name + " gauge\n" + name + " " + value + "\n"
}

func TestConnectWorkerReportsReadinessAndFault(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewOffloadMetrics(registry)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	conn := worker.StartLocal(ctx)
	b := ConnectWorker(conn, m)
	defer func() { _ = b.Close() }()

	waitCtx, waitCancel := context.WithTimeout(t.Context(), time.Second)
	defer waitCancel()
	require.NoError(t, b.WaitReady(waitCtx))

	readyHelp := "Worker readiness (1 ready, 0 not ready)"
	require.Eventually(t, func() bool {
		return testutil.GatherAndCompare(registry,
			strings.NewReader(gauge("offload_bridge_ready", readyHelp, "1")), "offload_bridge_ready") == nil
	}, time.Second, 5*time.Millisecond)

	p := newProcessor(t, DefaultOptions(), WithBridge(b), WithMetrics(m))
	require.True(t, p.WorkerReady())

	// the worker goroutine exits and closes its end of the pipe
	cancel()

	require.Eventually(t, b.Faulted, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.GatherAndCompare(registry,
			strings.NewReader(gauge("offload_bridge_ready", readyHelp, "0")), "offload_bridge_ready") == nil
	}, time.Second, 5*time.Millisecond)
	faults := "# HELP offload_bridge_faults_total Total number of execution context faults\n" +
		"# TYPE offload_bridge_faults_total counter\noffload_bridge_faults_total 1\n"
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(faults), "offload_bridge_faults_total"))
	assert.False(t, p.WorkerReady())

	out, err := p.CalculateRMS(t.Context(), make([]float32, 64), 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out)
}
