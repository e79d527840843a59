package bridge

import (
	"context"
	"sync"
)

// Future is the pending result of one Call
type Future struct {
	id       uint64
	done     chan struct{}
	teardown <-chan struct{}
	once     sync.Once
	result   Result
	err      error
}

func newFuture(id uint64, teardown <-chan struct{}) *Future {
	return &Future{id: id, done: make(chan struct{}), teardown: teardown}
}

// ID returns the request ID this future is correlated with
func (f *Future) ID() uint64 {
	return f.id
}

// Done is closed once the call is resolved
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) resolve(r Result, err error) {
	f.once.Do(func() {
		f.result = r
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the call resolves, the bridge is torn down, or ctx ends.
// A call dropped at teardown reports ErrCancelled.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	default:
	}

	select {
	case <-f.done:
		return f.result, f.err
	case <-f.teardown:
		return Result{}, ErrCancelled
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
