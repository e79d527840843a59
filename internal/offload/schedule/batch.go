package schedule

import (
	"sync"
	"time"

	"github.com/tphakala/audiokit/internal/logger"
)

// DefaultBatchDelay is roughly one display frame
const DefaultBatchDelay = 16 * time.Millisecond

// Batch accumulates items and ships them to exec in insertion order, either
// when the timer fires (re-armed on every Add) or on an explicit Flush.
type Batch[T any] struct {
	mu      sync.Mutex
	items   []T
	timer   *time.Timer
	delay   time.Duration
	exec    func([]T) error
	onError func(error)
	stopped bool
}

// NewBatch creates a batcher. A non-positive delay uses DefaultBatchDelay.
func NewBatch[T any](delay time.Duration, exec func([]T) error) *Batch[T] {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	return &Batch[T]{delay: delay, exec: exec}
}

// OnError sets the handler for errors from timer-driven flushes.
// Without one, they are logged.
func (b *Batch[T]) OnError(fn func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Add appends item and re-arms the flush timer
func (b *Batch[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.items = append(b.items, item)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.timerFlush)
}

// Flush executes the accumulated items immediately. The buffer and timer are
// cleared before exec runs, so a failing exec leaves an empty batch behind.
func (b *Batch[T]) Flush() error {
	items := b.Drain()
	if len(items) == 0 {
		return nil
	}
	return safeCall("batch", func() error { return b.exec(items) })
}

// Drain removes and returns the queued items in insertion order without
// running exec. The pending timer is cancelled.
func (b *Batch[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.items
	b.items = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return items
}

func (b *Batch[T]) timerFlush() {
	err := b.Flush()
	if err == nil {
		return
	}

	b.mu.Lock()
	onError := b.onError
	b.mu.Unlock()

	if onError != nil {
		onError(err)
		return
	}
	GetLogger().Error("batch flush failed", logger.Error(err))
}

// Len returns the number of queued items
func (b *Batch[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stop cancels the timer and discards queued items. It returns how many were dropped.
func (b *Batch[T]) Stop() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	dropped := len(b.items)
	b.items = nil
	return dropped
}
