package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// OffloadMetrics contains Prometheus metrics for the computation offload path.
type OffloadMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	strategyTotal     *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec

	bridgePending prometheus.Gauge
	bridgeReady   prometheus.Gauge
	bridgeFaults  prometheus.Counter

	poolDiscards prometheus.Counter
	poolSize     prometheus.Gauge
	batchSize    prometheus.Histogram
}

// Ensure OffloadMetrics implements Recorder
var _ Recorder = (*OffloadMetrics)(nil)

// NewOffloadMetrics creates and registers offload metrics
func NewOffloadMetrics(registry *prometheus.Registry) (*OffloadMetrics, error) {
	m := &OffloadMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize offload metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register offload metrics: %w", err)
	}
	return m, nil
}

func (m *OffloadMetrics) initMetrics() error {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offload_operations_total",
			Help: "Total number of offload operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offload_operation_duration_seconds",
			Help:    "Time taken by offload operations, cache hits included",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offload_operation_errors_total",
			Help: "Total number of offload operation errors",
		},
		[]string{"operation", "error_type"},
	)

	m.strategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offload_strategy_total",
			Help: "Operations by execution strategy (offloaded or local)",
		},
		[]string{"operation", "strategy"},
	)

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offload_cache_lookups_total",
			Help: "Computation cache lookups by result",
		},
		[]string{"result"},
	)

	m.bridgePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offload_bridge_pending_calls",
		Help: "Number of in-flight bridge calls",
	})

	m.bridgeReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offload_bridge_ready",
		Help: "Worker readiness (1 ready, 0 not ready)",
	})

	m.bridgeFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offload_bridge_faults_total",
		Help: "Total number of execution context faults",
	})

	m.poolDiscards = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offload_pool_discards_total",
		Help: "Buffers dropped because the pool was at its ceiling",
	})

	m.poolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offload_pool_free_buffers",
		Help: "Buffers currently held on the pool free list",
	})

	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offload_batch_size_buffers",
		Help:    "Number of buffers shipped per batch flush",
		Buckets: prometheus.ExponentialBuckets(1, BucketFactor2, 8),
	})

	return nil
}

// RecordOperation records an offload operation
func (m *OffloadMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration records the duration of an offload operation
func (m *OffloadMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records an offload operation error
func (m *OffloadMetrics) RecordError(operation, errorType string) {
	m.operationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordStrategy records which execution strategy served an operation
func (m *OffloadMetrics) RecordStrategy(operation, strategy string) {
	m.strategyTotal.WithLabelValues(operation, strategy).Inc()
}

// RecordCacheLookup records a cache hit or miss
func (m *OffloadMetrics) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues(LabelCacheHit).Inc()
		return
	}
	m.cacheLookups.WithLabelValues(LabelCacheMiss).Inc()
}

// SetBridgePending sets the number of in-flight bridge calls
func (m *OffloadMetrics) SetBridgePending(n int) {
	m.bridgePending.Set(float64(n))
}

// SetBridgeReady records worker readiness
func (m *OffloadMetrics) SetBridgeReady(ready bool) {
	if ready {
		m.bridgeReady.Set(1)
		return
	}
	m.bridgeReady.Set(0)
}

// RecordBridgeFault counts an execution context fault
func (m *OffloadMetrics) RecordBridgeFault() {
	m.bridgeFaults.Inc()
}

// SetPoolState records pool occupancy and the cumulative discard count
func (m *OffloadMetrics) SetPoolState(freeBuffers int, discardedDelta uint64) {
	m.poolSize.Set(float64(freeBuffers))
	if discardedDelta > 0 {
		m.poolDiscards.Add(float64(discardedDelta))
	}
}

// ObserveBatchSize records the size of one batch flush
func (m *OffloadMetrics) ObserveBatchSize(n int) {
	m.batchSize.Observe(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *OffloadMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.operationErrors.Describe(ch)
	m.strategyTotal.Describe(ch)
	m.cacheLookups.Describe(ch)
	ch <- m.bridgePending.Desc()
	ch <- m.bridgeReady.Desc()
	ch <- m.bridgeFaults.Desc()
	ch <- m.poolDiscards.Desc()
	ch <- m.poolSize.Desc()
	ch <- m.batchSize.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *OffloadMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.operationErrors.Collect(ch)
	m.strategyTotal.Collect(ch)
	m.cacheLookups.Collect(ch)
	ch <- m.bridgePending
	ch <- m.bridgeReady
	ch <- m.bridgeFaults
	ch <- m.poolDiscards
	ch <- m.poolSize
	ch <- m.batchSize
}
