package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContext is the worker end of a Pipe driven by the test. Pipe writes
// block until read, so requests are drained into reqs as they arrive.
type fakeContext struct {
	s    *Stream
	reqs chan Request
}

func newFakeContext(t *testing.T, opts ...Option) (*Bridge, *fakeContext) {
	t.Helper()
	client, server := Pipe()
	b := New(client, opts...)
	t.Cleanup(func() {
		_ = b.Close()
		_ = server.Close()
	})
	fc := &fakeContext{s: server, reqs: make(chan Request, 256)}
	go func() {
		defer close(fc.reqs)
		for {
			req, err := server.ReadRequest()
			if err != nil {
				return
			}
			fc.reqs <- req
		}
	}()
	return b, fc
}

func (f *fakeContext) ready(t *testing.T) {
	t.Helper()
	require.NoError(t, f.s.WriteResponse(Response{Kind: RespReady}))
}

func (f *fakeContext) read(t *testing.T) (Request, Payload) {
	t.Helper()
	var req Request
	select {
	case r, ok := <-f.reqs:
		require.True(t, ok, "stream closed")
		req = r
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}
	p, err := DecodePayload(req)
	require.NoError(t, err)
	return req, p
}

func waitPending(t *testing.T, b *Bridge, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Pending() == n }, time.Second, time.Millisecond)
}

func TestCallFailsFastWhenNotReady(t *testing.T) {
	b, _ := newFakeContext(t)

	f, err := b.Call(t.Context(), PingRequest{})
	require.ErrorIs(t, err, ErrNotReady)
	assert.Nil(t, f)
	assert.False(t, b.Ready())
	assert.Zero(t, b.Pending())
}

func TestReadyHandshake(t *testing.T) {
	readyCalled := make(chan struct{})
	b, fc := newFakeContext(t, WithReadyHandler(func() { close(readyCalled) }))

	fc.ready(t)
	require.NoError(t, b.WaitReady(t.Context()))
	assert.True(t, b.Ready())

	select {
	case <-readyCalled:
	case <-time.After(time.Second):
		t.Fatal("ready handler not invoked")
	}
}

func TestConcurrentCallsCorrelateOutOfOrder(t *testing.T) {
	const n = 32
	b, fc := newFakeContext(t, WithReady())

	// answer only after every request arrived, in reverse order
	go func() {
		reqs := make([]Request, 0, n)
		payloads := make([]*RMSRequest, 0, n)
		for range n {
			req, ok := <-fc.reqs
			if !ok {
				return
			}
			p, err := DecodePayload(req)
			if err != nil {
				return
			}
			reqs = append(reqs, req)
			payloads = append(payloads, p.(*RMSRequest))
		}
		for i := n - 1; i >= 0; i-- {
			resp, err := NewResultResponse(reqs[i].ID, RMSResult{Values: []float64{float64(payloads[i].Samples[0])}})
			if err != nil {
				return
			}
			if fc.s.WriteResponse(resp) != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	got := make([]float64, n)
	errs := make([]error, n)
	for i := range n {
		wg.Go(func() {
			res, err := Invoke[RMSResult](t.Context(), b, RMSRequest{Samples: []float32{float32(i)}, WindowSize: 1})
			errs[i] = err
			if err == nil && len(res.Values) == 1 {
				got[i] = res.Values[0]
			}
		})
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.InDelta(t, float64(i), got[i], 0, "call %d received another call's result", i)
	}
	assert.Zero(t, b.Pending())
}

func TestRemoteErrorRejectsOnlyThatCall(t *testing.T) {
	b, fc := newFakeContext(t, WithReady())

	f1, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)
	f2, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)

	r1, _ := fc.read(t)
	r2, _ := fc.read(t)
	require.NoError(t, fc.s.WriteResponse(NewErrorResponse(r1.ID, assert.AnError)))
	resp, err := NewResultResponse(r2.ID, PingResult{Worker: "w1"})
	require.NoError(t, err)
	require.NoError(t, fc.s.WriteResponse(resp))

	_, err = f1.Wait(t.Context())
	require.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), assert.AnError.Error())

	res, err := f2.Wait(t.Context())
	require.NoError(t, err)
	var ping PingResult
	require.NoError(t, res.Decode(&ping))
	assert.Equal(t, "w1", ping.Worker)
	assert.True(t, b.Ready(), "a per-call error is not a context fault")
}

func TestUnknownResponseIDIgnored(t *testing.T) {
	b, fc := newFakeContext(t, WithReady())

	f, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)
	req, _ := fc.read(t)

	stray, err := NewResultResponse(req.ID+1000, PingResult{Worker: "stray"})
	require.NoError(t, err)
	require.NoError(t, fc.s.WriteResponse(stray))

	resp, err := NewResultResponse(req.ID, PingResult{Worker: "real"})
	require.NoError(t, err)
	require.NoError(t, fc.s.WriteResponse(resp))

	res, err := f.Wait(t.Context())
	require.NoError(t, err)
	var ping PingResult
	require.NoError(t, res.Decode(&ping))
	assert.Equal(t, "real", ping.Worker)
	assert.False(t, b.Faulted())
}

func TestUnknownResponseKindSkipped(t *testing.T) {
	b, fc := newFakeContext(t, WithReady())

	f, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)
	req, _ := fc.read(t)

	require.NoError(t, fc.s.WriteResponse(Response{Kind: ResponseKind(42), ID: req.ID}))
	resp, err := NewResultResponse(req.ID, PingResult{Worker: "ok"})
	require.NoError(t, err)
	require.NoError(t, fc.s.WriteResponse(resp))

	_, err = f.Wait(t.Context())
	require.NoError(t, err)
	assert.True(t, b.Ready())
}

func TestFaultRejectsAllPendingCalls(t *testing.T) {
	const k = 5
	faults := make(chan error, 1)
	b, fc := newFakeContext(t, WithReady(), WithFaultHandler(func(err error) { faults <- err }))

	futures := make([]*Future, 0, k)
	for range k {
		f, err := b.Call(t.Context(), PingRequest{})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	for range k {
		fc.read(t)
	}
	waitPending(t, b, k)

	require.NoError(t, fc.s.WriteResponse(Response{Kind: RespError, Error: "worker crashed"}))

	var first error
	for i, f := range futures {
		_, err := f.Wait(t.Context())
		require.ErrorIs(t, err, ErrContextFailure, "call %d", i)
		assert.Contains(t, err.Error(), "execution context failure")
		if first == nil {
			first = err
		}
		assert.Same(t, first, err, "every pending call gets the same error")
	}

	assert.Zero(t, b.Pending())
	assert.False(t, b.Ready())
	assert.True(t, b.Faulted())

	select {
	case err := <-faults:
		require.ErrorIs(t, err, ErrContextFailure)
	case <-time.After(time.Second):
		t.Fatal("fault handler not invoked")
	}

	_, err := b.Call(t.Context(), PingRequest{})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestBrokenTransportFaults(t *testing.T) {
	b, fc := newFakeContext(t, WithReady())

	f, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)
	fc.read(t)

	require.NoError(t, fc.s.Close())

	_, err = f.Wait(t.Context())
	require.ErrorIs(t, err, ErrContextFailure)
	assert.True(t, b.Faulted())
}

func TestCloseDropsPendingWithoutResolving(t *testing.T) {
	b, fc := newFakeContext(t, WithReady())

	f, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)
	fc.read(t)
	waitPending(t, b, 1)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	select {
	case <-f.Done():
		t.Fatal("dropped call must not be resolved")
	default:
	}

	_, err = f.Wait(t.Context())
	require.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, b.Pending())
	assert.False(t, b.Ready())

	_, err = b.Call(t.Context(), PingRequest{})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestWaitHonorsContext(t *testing.T) {
	b, fc := newFakeContext(t, WithReady())

	f, err := b.Call(t.Context(), PingRequest{})
	require.NoError(t, err)
	fc.read(t)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, b.Pending(), "the bridge itself never times a call out")
}

func TestUniqueIDs(t *testing.T) {
	b, _ := newFakeContext(t, WithReady())

	seen := make(map[uint64]bool)
	for range 100 {
		f, err := b.Call(t.Context(), PingRequest{})
		require.NoError(t, err)
		require.False(t, seen[f.ID()], "duplicate id %d", f.ID())
		seen[f.ID()] = true
	}
}
