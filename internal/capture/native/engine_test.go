package native

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/ringbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiokit/internal/capture"
)

// newPumpEngine builds an engine with a ring buffer but no device, so the
// callback and pump paths run without audio hardware
func newPumpEngine(frames func(pcm []byte, n int)) *Engine {
	cfg := capture.DefaultConfig()
	cfg.SampleRate = 16000
	cfg.BufferSizeFrames = 160
	cfg.NumBuffers = 1
	e := New()
	e.cfg = cfg
	e.cb = capture.Callbacks{Frames: frames}
	e.frameBytes = cfg.FrameBytes()
	e.ring = ringbuffer.New(cfg.BufferSizeFrames * e.frameBytes * 2)
	return e
}

func TestPumpDeliversWholePeriods(t *testing.T) {
	var mu sync.Mutex
	var got []int
	e := newPumpEngine(func(pcm []byte, n int) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		assert.Len(t, pcm, n*2)
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go e.pump(ctx, done)

	period := make([]byte, 160*2)
	e.onData(nil, period[:100], 50)
	e.onData(nil, period[100:], 110)
	e.onData(nil, period, 160)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []int{160, 160}, got)
}

func TestStopFromFramesCallback(t *testing.T) {
	var calls atomic.Int32
	stopped := make(chan error, 1)
	var e *Engine
	e = newPumpEngine(func([]byte, int) {
		if calls.Add(1) == 1 {
			stopped <- e.Stop()
		}
	})

	e.mu.Lock()
	e.startPumpLocked()
	done := e.pumpDone
	e.mu.Unlock()

	period := make([]byte, 160*2)
	e.onData(nil, period, 160)
	e.onData(nil, period, 160)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop called from the Frames callback did not return")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not exit after Stop")
	}
	assert.Equal(t, int32(1), calls.Load(), "no delivery after Stop")
}

func TestStopWaitsForPump(t *testing.T) {
	e := newPumpEngine(nil)
	e.mu.Lock()
	e.startPumpLocked()
	done := e.pumpDone
	e.mu.Unlock()

	require.NoError(t, e.Stop())
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the pump exited")
	}
}

func TestOnDataCountsOverruns(t *testing.T) {
	e := newPumpEngine(nil)
	period := make([]byte, 160*2)

	e.onData(nil, period, 160)
	e.onData(nil, period, 160)
	overruns, _ := e.Xruns()
	assert.Zero(t, overruns)

	e.onData(nil, period, 160)
	overruns, _ = e.Xruns()
	assert.Equal(t, uint64(1), overruns)
}

func TestPausedEngineDropsAudio(t *testing.T) {
	e := newPumpEngine(nil)
	require.NoError(t, e.Pause())
	e.onData(nil, make([]byte, 64), 32)
	assert.Zero(t, e.ring.Length())

	require.NoError(t, e.Resume())
	e.onData(nil, make([]byte, 64), 32)
	assert.Equal(t, 64, e.ring.Length())
}

func TestStopCallbackSuppressedWhileStopping(t *testing.T) {
	e := newPumpEngine(nil)
	stopped := 0
	e.cb.Stopped = func() { stopped++ }

	e.stopping.Store(true)
	e.onStop()
	assert.Zero(t, stopped)

	e.stopping.Store(false)
	e.onStop()
	assert.Equal(t, 1, stopped)
}

func TestStartWithoutOpen(t *testing.T) {
	e := New()
	require.Error(t, e.Start())
	require.NoError(t, e.Stop())
}

func TestPermissionAlwaysGranted(t *testing.T) {
	e := New()
	assert.True(t, e.HasPermission())
	ok, err := e.RequestPermission(t.Context())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrimNUL(t *testing.T) {
	assert.Equal(t, []byte("hw:1,0"), trimNUL([]byte("hw:1,0\x00\x00")))
	assert.Equal(t, []byte("plain"), trimNUL([]byte("plain")))
}
