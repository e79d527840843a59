package schedule

import (
	"sync/atomic"
	"time"

	"github.com/bep/debounce"

	"github.com/tphakala/audiokit/internal/logger"
)

// Debounce collapses bursts of calls: each call cancels the pending one and
// reschedules after the delay, so only the last call of a burst runs.
type Debounce[T any] struct {
	debounced func(func())
	fn        func(T)
	stopped   atomic.Bool
	runs      atomic.Uint64
}

// NewDebounce creates a debouncer that invokes fn delay after the last Call
func NewDebounce[T any](delay time.Duration, fn func(T)) *Debounce[T] {
	return &Debounce[T]{
		debounced: debounce.New(delay),
		fn:        fn,
	}
}

// Call schedules fn(arg), superseding any pending call
func (d *Debounce[T]) Call(arg T) {
	if d.stopped.Load() {
		return
	}
	d.debounced(func() {
		if d.stopped.Load() {
			return
		}
		d.runs.Add(1)
		if err := safeCall("debounce", func() error { d.fn(arg); return nil }); err != nil {
			GetLogger().Error("debounced callback failed", logger.Error(err))
		}
	})
}

// Stop cancels the pending call; later calls are ignored
func (d *Debounce[T]) Stop() {
	if d.stopped.Swap(true) {
		return
	}
	// replacing the pending function is the only way to cancel it
	d.debounced(func() {})
}

// Runs returns how many times the callback has executed
func (d *Debounce[T]) Runs() uint64 {
	return d.runs.Load()
}
