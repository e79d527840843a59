// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audiokit/internal/logger"
)

// setDefaultConfig sets default values for the configuration
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", AppName)

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.console.stderr", false)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	v.SetDefault("offload.samplerate", 44100)
	v.SetDefault("offload.buffersize", 4096)
	v.SetDefault("offload.poolsize", 50)
	v.SetDefault("offload.debouncedelay", 8*time.Millisecond)
	v.SetDefault("offload.throttlelimit", 60.0)
	v.SetDefault("offload.batchdelay", 16*time.Millisecond)
	v.SetDefault("offload.monitorcapacity", 100)
	v.SetDefault("offload.worker.enabled", true)
	v.SetDefault("offload.worker.mode", WorkerModeInProcess)
	v.SetDefault("offload.worker.path", "")
	v.SetDefault("offload.worker.concurrency", 0)
	v.SetDefault("offload.cache.enabled", true)
	v.SetDefault("offload.cache.ttl", 5*time.Minute)
	v.SetDefault("offload.cache.size", 30)

	v.SetDefault("capture.samplerate", 44100)
	v.SetDefault("capture.channels", 1)
	v.SetDefault("capture.bitspersample", 16)
	v.SetDefault("capture.buffersizeframes", 1024)
	v.SetDefault("capture.numbuffers", 3)
	v.SetDefault("capture.device", "")
	v.SetDefault("capture.echocancellation", false)
	v.SetDefault("capture.noisesuppression", false)
	v.SetDefault("capture.autogaincontrol", false)
	v.SetDefault("capture.requestpermission", true)
	v.SetDefault("capture.analysisinterval", 100*time.Millisecond)
	v.SetDefault("capture.silencethreshold", 0.001)
	v.SetDefault("capture.recording.path", "recordings/")
	v.SetDefault("capture.recording.maxduration", time.Duration(0))
	v.SetDefault("capture.recording.maxfilesize", 0)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.debug", false)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.listen", "")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.samplerate", 1.0)
}
