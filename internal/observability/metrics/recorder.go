// Package metrics provides Prometheus metrics for the offload and capture subsystems.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on concrete metric types so tests can
// run without a registry.
type Recorder interface {
	// RecordOperation records an operation with its status.
	// The operation parameter names what was performed (e.g., "process_audio").
	// The status parameter is "success" or "error".
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}
