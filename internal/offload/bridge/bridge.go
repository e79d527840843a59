// Package bridge turns a message-passing execution context into
// request/response calls. Every call gets a unique ID and a PendingCall;
// responses are matched by ID, so completions may arrive in any order.
//
// The bridge implements no timeouts. A call stays pending until its response
// arrives, the context faults (all pending calls are rejected with
// ErrContextFailure) or the bridge is closed (pending calls are dropped and
// their futures report ErrCancelled when awaited).
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
)

// GetLogger returns the bridge logger
func GetLogger() logger.Logger {
	return logger.Global().Module("offload").Module("bridge")
}

// PendingCall is the bookkeeping for one in-flight request
type PendingCall struct {
	ID      uint64
	Kind    RequestKind
	Started time.Time
	future  *Future
}

// Option configures a Bridge
type Option func(*Bridge)

// WithReady marks the bridge ready without waiting for the context's ready message
func WithReady() Option {
	return func(b *Bridge) { b.ready.Store(true) }
}

// WithLogger overrides the bridge logger
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithFaultHandler registers a callback invoked once when the context faults
func WithFaultHandler(fn func(error)) Option {
	return func(b *Bridge) { b.onFault = append(b.onFault, fn) }
}

// WithReadyHandler registers a callback invoked when the context reports ready
func WithReadyHandler(fn func()) Option {
	return func(b *Bridge) { b.onReady = append(b.onReady, fn) }
}

// Bridge correlates requests and responses over a Transport
type Bridge struct {
	id        string
	transport Transport
	log       logger.Logger

	mu      sync.Mutex
	pending map[uint64]*PendingCall
	nextID  atomic.Uint64

	ready   atomic.Bool
	closed  atomic.Bool
	faulted atomic.Bool

	closedCh   chan struct{}
	readerDone chan struct{}
	readyCh    chan struct{}
	readyOnce  sync.Once

	onFault []func(error)
	onReady []func()
}

// New creates a bridge over t and starts reading responses
func New(t Transport, opts ...Option) *Bridge {
	b := &Bridge{
		id:         uuid.NewString(),
		transport:  t,
		pending:    make(map[uint64]*PendingCall),
		closedCh:   make(chan struct{}),
		readerDone: make(chan struct{}),
		readyCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = GetLogger()
	}
	b.log = b.log.With(logger.String("bridge_id", b.id))
	if b.ready.Load() {
		b.readyOnce.Do(func() { close(b.readyCh) })
	}

	go b.readLoop()
	return b
}

// ID returns the bridge instance identifier
func (b *Bridge) ID() string {
	return b.id
}

// Ready reports whether calls are currently accepted
func (b *Bridge) Ready() bool {
	return b.ready.Load()
}

// Faulted reports whether the execution context has failed
func (b *Bridge) Faulted() bool {
	return b.faulted.Load()
}

// WaitReady blocks until the context reports ready, faults, is closed, or ctx ends
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.readyCh:
		if !b.ready.Load() {
			return ErrNotReady
		}
		return nil
	case <-b.readerDone:
		return ErrContextFailure
	case <-b.closedCh:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of in-flight calls
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Call sends payload and returns a future for its response.
// It fails immediately with ErrNotReady when the bridge is not ready.
func (b *Bridge) Call(ctx context.Context, payload Payload) (*Future, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kind := payload.Kind()

	data, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	id := b.nextID.Add(1)
	f := newFuture(id, b.closedCh)

	b.mu.Lock()
	if !b.ready.Load() || b.closed.Load() {
		b.mu.Unlock()
		return nil, ErrNotReady
	}
	b.pending[id] = &PendingCall{ID: id, Kind: kind, Started: time.Now(), future: f}
	b.mu.Unlock()

	if err := b.transport.Send(Request{Kind: kind, ID: id, Data: data}); err != nil {
		if b.closed.Load() {
			return nil, ErrCancelled
		}
		b.fault(err)
		// the fault has rejected this call along with the others
		return f, nil
	}

	b.log.Trace("call sent", logger.Uint64("request_id", id), logger.String("kind", kind.String()))
	return f, nil
}

// Caller is anything that can issue a bridge call; *Bridge implements it.
type Caller interface {
	Call(ctx context.Context, payload Payload) (*Future, error)
}

// Invoke calls the context and decodes the result into R
func Invoke[R any](ctx context.Context, c Caller, payload Payload) (R, error) {
	var out R
	f, err := c.Call(ctx, payload)
	if err != nil {
		return out, err
	}
	res, err := f.Wait(ctx)
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func (b *Bridge) readLoop() {
	defer close(b.readerDone)

	for {
		resp, err := b.transport.Recv()
		if err != nil {
			if b.closed.Load() {
				return
			}
			if errors.Is(err, ErrUnknownKind) {
				b.log.Warn("ignoring message with unknown kind", logger.Error(err))
				continue
			}
			b.fault(err)
			return
		}

		switch resp.Kind {
		case RespReady:
			b.markReady()
		case RespError:
			if resp.ID == 0 {
				b.fault(fmt.Errorf("context reported: %s", resp.Error))
				return
			}
			b.complete(resp)
		case RespResult:
			b.complete(resp)
		}
	}
}

func (b *Bridge) markReady() {
	if b.closed.Load() || b.faulted.Load() {
		return
	}
	b.ready.Store(true)
	b.readyOnce.Do(func() { close(b.readyCh) })
	b.log.Debug("execution context ready")
	for _, fn := range b.onReady {
		fn()
	}
}

func (b *Bridge) complete(resp Response) {
	b.mu.Lock()
	pc, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()

	if !ok {
		// stale reply, e.g. from before a restart
		b.log.Debug("ignoring response for unknown call", logger.Uint64("request_id", resp.ID))
		return
	}

	if resp.Kind == RespError {
		pc.future.resolve(Result{}, errors.New(fmt.Errorf("%w: %s", ErrRemote, resp.Error)).
			Component(ComponentBridge).
			Category(errors.CategoryWorker).
			Context("request_id", resp.ID).
			Context("kind", pc.Kind.String()).
			Build())
		return
	}
	pc.future.resolve(Result{raw: resp.Result}, nil)
}

// fault rejects every pending call with one shared error and shuts the transport down.
// The bridge does not restart the context.
func (b *Bridge) fault(cause error) {
	if !b.faulted.CompareAndSwap(false, true) {
		return
	}

	failure := errors.New(fmt.Errorf("%w: %w", ErrContextFailure, cause)).
		Component(ComponentBridge).
		Category(errors.CategoryBridge).
		Context("operation", "bridge_fault").
		Build()

	b.mu.Lock()
	b.ready.Store(false)
	pending := b.pending
	b.pending = make(map[uint64]*PendingCall)
	b.mu.Unlock()

	b.readyOnce.Do(func() { close(b.readyCh) })

	b.log.Error("execution context failed",
		logger.Error(cause),
		logger.Int("rejected_calls", len(pending)))

	for _, pc := range pending {
		pc.future.resolve(Result{}, failure)
	}
	_ = b.transport.Close()

	for _, fn := range b.onFault {
		fn(failure)
	}
}

// Close terminates the execution context and drops pending calls without
// resolving them. Safe to call more than once.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	b.ready.Store(false)
	dropped := len(b.pending)
	b.pending = make(map[uint64]*PendingCall)
	b.mu.Unlock()

	close(b.closedCh)
	err := b.transport.Close()
	<-b.readerDone

	b.log.Debug("bridge closed", logger.Int("dropped_calls", dropped))
	return err
}
