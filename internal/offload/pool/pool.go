// Package pool provides a bounded free-list of reusable buffers.
//
// Items come out of the pool wrapped in a Handle. Releasing the handle resets
// the item and returns it to the free list, and the handle refuses further
// access, so a released buffer cannot be reached through it again.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/audiokit/internal/errors"
)

const componentPool = "pool"

// DefaultMaxSize is the free-list ceiling used when none is given.
const DefaultMaxSize = 50

// Stats contains statistics about pool usage
type Stats struct {
	Gets      uint64 // Total acquisitions
	News      uint64 // Acquisitions served by the factory
	Discarded uint64 // Releases dropped because the free list was full
	Size      int    // Current free-list length
}

// Hits returns the number of acquisitions served from the free list
func (s Stats) Hits() uint64 {
	return s.Gets - s.News
}

// Pool is a free-list of T with a fixed ceiling. It never blocks: an empty
// free list falls back to the factory, a full one drops released items.
type Pool[T any] struct {
	mu      sync.Mutex
	free    []T
	factory func() T
	reset   func(T)
	maxSize int

	gets      atomic.Uint64
	news      atomic.Uint64
	discarded atomic.Uint64
}

// New creates a pool. reset may be nil when items need no clearing.
func New[T any](factory func() T, reset func(T), maxSize int) (*Pool[T], error) {
	if factory == nil {
		return nil, errors.Newf("pool factory is required").
			Component(componentPool).
			Category(errors.CategoryValidation).
			Context("operation", "create_pool").
			Build()
	}
	if maxSize < 0 {
		return nil, errors.Newf("invalid pool ceiling: %d", maxSize).
			Component(componentPool).
			Category(errors.CategoryValidation).
			Context("operation", "create_pool").
			Context("max_size", maxSize).
			Build()
	}
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool[T]{
		free:    make([]T, 0, maxSize),
		factory: factory,
		reset:   reset,
		maxSize: maxSize,
	}, nil
}

// Get pops an item from the free list or builds a new one.
// The caller owns the item until it is passed to Put.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		item := p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return item
	}
	p.mu.Unlock()

	p.news.Add(1)
	return p.factory()
}

// Put resets item and returns it to the free list, or drops it when the
// list is at its ceiling. Putting the same item twice is a contract
// violation and is not detected.
func (p *Pool[T]) Put(item T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) >= p.maxSize {
		p.discarded.Add(1)
		return
	}
	if p.reset != nil {
		p.reset(item)
	}
	p.free = append(p.free, item)
}

// Acquire returns a guarded item
func (p *Pool[T]) Acquire() *Handle[T] {
	return &Handle[T]{pool: p, item: p.Get()}
}

// Clear drops every pooled item
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.free)
	p.free = p.free[:0]
}

// Size returns the free-list length
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// MaxSize returns the free-list ceiling
func (p *Pool[T]) MaxSize() int {
	return p.maxSize
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Gets:      p.gets.Load(),
		News:      p.news.Load(),
		Discarded: p.discarded.Load(),
		Size:      p.Size(),
	}
}

// Handle owns one pooled item until Release.
// A Handle must not be shared between goroutines.
type Handle[T any] struct {
	pool     *Pool[T]
	item     T
	released atomic.Bool
}

// Value returns the owned item. It panics after Release.
func (h *Handle[T]) Value() T {
	if h.released.Load() {
		panic("pool: use of released handle")
	}
	return h.item
}

// Release returns the item to the pool. Further calls are no-ops.
func (h *Handle[T]) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	item := h.item
	var zero T
	h.item = zero
	h.pool.Put(item)
}

// NewFloat32 creates a pool of zeroed float32 buffers of the given length
func NewFloat32(size, maxSize int) (*Pool[[]float32], error) {
	if size <= 0 {
		return nil, errors.Newf("invalid float32 pool buffer size: %d", size).
			Component(componentPool).
			Category(errors.CategoryValidation).
			Context("operation", "create_float32_pool").
			Context("requested_size", size).
			Build()
	}
	return New(
		func() []float32 { return make([]float32, size) },
		func(buf []float32) { clear(buf) },
		maxSize,
	)
}
