package observability

import "github.com/tphakala/audiokit/internal/logger"

// GetLogger returns the telemetry logger
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
