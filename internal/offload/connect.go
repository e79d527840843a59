package offload

import (
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/observability/metrics"
	"github.com/tphakala/audiokit/internal/offload/bridge"
)

// ConnectWorker wraps a worker transport in a bridge. Readiness and faults
// are reported to m when it is non-nil. A faulted bridge stays down; the
// processor falls back to local computation for every later call.
func ConnectWorker(t bridge.Transport, m *metrics.OffloadMetrics) *bridge.Bridge {
	log := GetLogger()
	return bridge.New(t,
		bridge.WithReadyHandler(func() {
			log.Info("offload worker ready")
			if m != nil {
				m.SetBridgeReady(true)
			}
		}),
		bridge.WithFaultHandler(func(err error) {
			log.Error("offload worker failed, continuing with local processing", logger.Error(err))
			if m != nil {
				m.SetBridgeReady(false)
				m.RecordBridgeFault()
			}
		}),
	)
}
