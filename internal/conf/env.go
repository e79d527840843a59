// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", EnvPrefix + "_DEBUG", validateEnvBool},
		{"logging.default_level", EnvPrefix + "_LOG_LEVEL", validateEnvLogLevel},

		// Offload
		{"offload.worker.enabled", EnvPrefix + "_WORKER_ENABLED", validateEnvBool},
		{"offload.worker.mode", EnvPrefix + "_WORKER_MODE", validateEnvWorkerMode},
		{"offload.worker.path", EnvPrefix + "_WORKER_PATH", nil},
		{"offload.worker.concurrency", EnvPrefix + "_WORKER_CONCURRENCY", validateEnvNonNegativeInt},
		{"offload.cache.enabled", EnvPrefix + "_CACHE_ENABLED", validateEnvBool},
		{"offload.cache.ttl", EnvPrefix + "_CACHE_TTL", validateEnvDuration},
		{"offload.samplerate", EnvPrefix + "_OFFLOAD_SAMPLERATE", validateEnvSampleRate},

		// Capture
		{"capture.samplerate", EnvPrefix + "_CAPTURE_SAMPLERATE", validateEnvSampleRate},
		{"capture.device", EnvPrefix + "_CAPTURE_DEVICE", nil},
		{"capture.requestpermission", EnvPrefix + "_CAPTURE_REQUEST_PERMISSION", validateEnvBool},
		{"capture.recording.path", EnvPrefix + "_RECORDING_PATH", nil},

		// Web server and telemetry
		{"webserver.port", EnvPrefix + "_PORT", validateEnvPort},
		{"telemetry.enabled", EnvPrefix + "_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", EnvPrefix + "_TELEMETRY_LISTEN", nil},

		// Sentry
		{"sentry.enabled", EnvPrefix + "_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", EnvPrefix + "_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level '%s'", value)
}

func validateEnvWorkerMode(value string) error {
	if value != WorkerModeInProcess && value != WorkerModeProcess {
		return fmt.Errorf("worker mode must be %q or %q", WorkerModeInProcess, WorkerModeProcess)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return nil
}

func validateEnvSampleRate(value string) error {
	rate, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid sample rate: %w", err)
	}
	if rate < minSampleRate || rate > maxSampleRate {
		return fmt.Errorf("sample rate must be between %d and %d, got %d", minSampleRate, maxSampleRate, rate)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
