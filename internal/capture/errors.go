package capture

import (
	"fmt"

	"github.com/tphakala/audiokit/internal/errors"
)

// ComponentCapture identifies capture errors
const ComponentCapture = "capture"

var (
	// ErrPermissionDenied is returned by Initialize when microphone access is refused
	ErrPermissionDenied = errors.New(errors.NewStd("audio capture permission denied")).
				Component(ComponentCapture).
				Category(errors.CategoryPermission).
				Build()

	// ErrInvalidConfig is returned for configurations the engine cannot honor
	ErrInvalidConfig = errors.New(errors.NewStd("invalid capture configuration")).
				Component(ComponentCapture).
				Category(errors.CategoryValidation).
				Build()

	// ErrNotInitialized is returned by operations that need an initialized engine
	ErrNotInitialized = errors.New(errors.NewStd("audio capture not initialized")).
				Component(ComponentCapture).
				Category(errors.CategoryState).
				Build()

	// ErrEngine wraps failures reported by the native capture engine
	ErrEngine = errors.New(errors.NewStd("audio capture engine failure")).
			Component(ComponentCapture).
			Category(errors.CategoryDevice).
			Build()

	// ErrRecording wraps recording file failures
	ErrRecording = errors.New(errors.NewStd("audio recording failed")).
			Component(ComponentCapture).
			Category(errors.CategoryRecording).
			Build()
)

// engineError wraps err from the engine operation op
func engineError(op string, err error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", ErrEngine, op, err)).
		Component(ComponentCapture).
		Category(errors.CategoryDevice).
		Context("operation", op).
		Build()
}

// recordingError wraps a recording failure for path
func recordingError(path string, err error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrRecording, err)).
		Component(ComponentCapture).
		Category(errors.CategoryRecording).
		Context("path", path).
		Build()
}

// ErrNotCapturing is returned by helpers that could not get capture running
var ErrNotCapturing = errors.New(errors.NewStd("audio capture is not running")).
	Component(ComponentCapture).
	Category(errors.CategoryState).
	Build()
