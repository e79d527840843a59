package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audiokit/internal/logger"
)

// Throttle runs fn at most limit times per second. A call arriving inside the
// minimum interval is deferred to the end of it; later calls in that window
// replace its argument (last call wins).
type Throttle[T any] struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	reservation *rate.Reservation
	timer       *time.Timer
	pendingArg  T
	fn          func(T)
	stopped     bool
	runs        atomic.Uint64
	now         func() time.Time
}

// NewThrottle creates a throttle allowing limit executions per second
func NewThrottle[T any](limit float64, fn func(T)) *Throttle[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Throttle[T]{
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		fn:      fn,
		now:     time.Now,
	}
}

// Interval returns the minimum spacing between executions
func (t *Throttle[T]) Interval() time.Duration {
	return time.Duration(float64(time.Second) / float64(t.limiter.Limit()))
}

// Call runs fn(arg) now if the interval has elapsed, otherwise defers it
func (t *Throttle[T]) Call(arg T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.pendingArg = arg
		t.mu.Unlock()
		return
	}

	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay <= 0 {
		t.mu.Unlock()
		t.run(arg)
		return
	}

	t.pendingArg = arg
	t.reservation = r
	t.timer = time.AfterFunc(delay, t.fire)
	t.mu.Unlock()
}

func (t *Throttle[T]) fire() {
	t.mu.Lock()
	if t.stopped || t.timer == nil {
		t.mu.Unlock()
		return
	}
	arg := t.pendingArg
	var zero T
	t.pendingArg = zero
	t.timer = nil
	t.reservation = nil
	t.mu.Unlock()

	t.run(arg)
}

func (t *Throttle[T]) run(arg T) {
	t.runs.Add(1)
	if err := safeCall("throttle", func() error { t.fn(arg); return nil }); err != nil {
		GetLogger().Error("throttled callback failed", logger.Error(err))
	}
}

// Stop cancels any deferred call; later calls are ignored
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.reservation != nil {
		t.reservation.Cancel()
		t.reservation = nil
	}
}

// Runs returns how many times the callback has executed
func (t *Throttle[T]) Runs() uint64 {
	return t.runs.Load()
}
