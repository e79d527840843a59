package capture

import "context"

// Device describes an input device known to the engine
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// Callbacks are installed by the facade when it opens the engine. They must
// not be invoked from inside an Engine method call. Frames may call back into
// Stop, Pause or Close, so an engine must not wait for its delivery goroutine
// when that goroutine is the caller.
type Callbacks struct {
	// Frames delivers interleaved little-endian PCM in the configured bit depth
	Frames func(pcm []byte, frames int)
	// Error reports an asynchronous engine failure
	Error func(err error)
	// Stopped reports that the device stopped without a Stop call
	Stopped func()
}

// Engine is the native capture layer driven by the facade. It only moves
// audio: level analysis and its interval are run by the Capture itself, so
// engines never drive an analysis timer.
type Engine interface {
	Open(cfg Config, cb Callbacks) error
	Start() error
	Stop() error
	Pause() error
	Resume() error
	Close() error

	Devices() ([]Device, error)
	SelectDevice(id string) error
	CurrentDevice() (Device, error)

	HasPermission() bool
	RequestPermission(ctx context.Context) (bool, error)
}

// XrunCounter is implemented by engines that count buffer overruns and underruns
type XrunCounter interface {
	Xruns() (overruns, underruns uint64)
}
