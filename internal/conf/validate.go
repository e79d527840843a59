// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minSampleRate = 8000
	maxSampleRate = 192000
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateOffloadSettings(&settings.Offload); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCaptureSettings(&settings.Capture); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateOffloadSettings validates the orchestrator settings
func validateOffloadSettings(settings *OffloadSettings) error {
	var errs []string

	if settings.SampleRate < minSampleRate || settings.SampleRate > maxSampleRate {
		errs = append(errs, fmt.Sprintf("offload sample rate must be between %d and %d", minSampleRate, maxSampleRate))
	}
	if settings.BufferSize <= 0 {
		errs = append(errs, "offload buffer size must be positive")
	}
	if settings.PoolSize < 0 {
		errs = append(errs, "offload pool size must not be negative")
	}
	if settings.ThrottleLimit < 0 {
		errs = append(errs, "offload throttle limit must not be negative")
	}
	if settings.DebounceDelay < 0 || settings.BatchDelay < 0 {
		errs = append(errs, "offload delays must not be negative")
	}
	if settings.Cache.Enabled && settings.Cache.Size < 0 {
		errs = append(errs, "cache size must not be negative")
	}
	if settings.Worker.Mode != WorkerModeInProcess && settings.Worker.Mode != WorkerModeProcess {
		errs = append(errs, fmt.Sprintf("worker mode must be %q or %q", WorkerModeInProcess, WorkerModeProcess))
	}
	if settings.Worker.Concurrency < 0 {
		errs = append(errs, "worker concurrency must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("offload settings errors: %v", errs)
	}
	return nil
}

// validateCaptureSettings validates the capture settings
func validateCaptureSettings(settings *CaptureSettings) error {
	var errs []string

	if settings.SampleRate < minSampleRate || settings.SampleRate > maxSampleRate {
		errs = append(errs, fmt.Sprintf("capture sample rate must be between %d and %d", minSampleRate, maxSampleRate))
	}
	if settings.Channels < 1 || settings.Channels > 2 {
		errs = append(errs, "capture channels must be 1 or 2")
	}
	if settings.BitsPerSample != 16 && settings.BitsPerSample != 32 {
		errs = append(errs, "capture bit depth must be 16 or 32")
	}
	if settings.BufferSizeFrames <= 0 {
		errs = append(errs, "capture buffer size must be positive")
	}
	if settings.NumBuffers <= 0 {
		errs = append(errs, "capture buffer count must be positive")
	}
	if settings.SilenceThreshold < 0 || settings.SilenceThreshold > 1 {
		errs = append(errs, "silence threshold must be between 0 and 1")
	}
	if settings.Recording.MaxDuration < 0 || settings.Recording.MaxFileSize < 0 {
		errs = append(errs, "recording limits must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("capture settings errors: %v", errs)
	}
	return nil
}

// validateWebServerSettings validates the web server settings
func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid web server port: %q", settings.Port)
	}
	return nil
}

// validateSentrySettings validates the error reporting settings
func validateSentrySettings(settings *SentrySettings) error {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if settings.DSN == "" {
		errs = append(errs, "sentry DSN is required when sentry is enabled")
	} else if !strings.HasPrefix(settings.DSN, "https://") && !strings.HasPrefix(settings.DSN, "http://") {
		errs = append(errs, "sentry DSN must be an http(s) URL")
	}
	if settings.SampleRate < 0 || settings.SampleRate > 1 {
		errs = append(errs, "sentry sample rate must be between 0 and 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("sentry settings errors: %v", errs)
	}
	return nil
}
