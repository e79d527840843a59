package offload

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiokit/internal/dsp"
	"github.com/tphakala/audiokit/internal/observability/metrics"
	"github.com/tphakala/audiokit/internal/offload/bridge"
	"github.com/tphakala/audiokit/internal/offload/worker"
)

// scriptedTransport answers each request synchronously through handle
type scriptedTransport struct {
	handle func(req bridge.Request) (bridge.Response, bool)
	out    chan bridge.Response
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent map[bridge.RequestKind]int
}

func newScriptedTransport(ready bool, handle func(bridge.Request) (bridge.Response, bool)) *scriptedTransport {
	t := &scriptedTransport{
		handle: handle,
		out:    make(chan bridge.Response, 256),
		closed: make(chan struct{}),
		sent:   make(map[bridge.RequestKind]int),
	}
	if ready {
		t.out <- bridge.Response{Kind: bridge.RespReady}
	}
	return t
}

func (t *scriptedTransport) Send(req bridge.Request) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	default:
	}
	t.mu.Lock()
	t.sent[req.Kind]++
	t.mu.Unlock()

	if resp, ok := t.handle(req); ok {
		t.out <- resp
	}
	return nil
}

func (t *scriptedTransport) Recv() (bridge.Response, error) {
	select {
	case r := <-t.out:
		return r, nil
	case <-t.closed:
		return bridge.Response{}, io.EOF
	}
}

func (t *scriptedTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *scriptedTransport) count(kind bridge.RequestKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent[kind]
}

// workerHandler answers with the real worker computations
func workerHandler() func(bridge.Request) (bridge.Response, bool) {
	w := worker.New(worker.WithName("scripted"))
	return func(req bridge.Request) (bridge.Response, bool) {
		return w.Handle(context.Background(), req), true
	}
}

func readyBridge(t *testing.T, tr *scriptedTransport) *bridge.Bridge {
	t.Helper()
	b := bridge.New(tr)
	require.NoError(t, b.WaitReady(t.Context()))
	return b
}

func newProcessor(t *testing.T, opts Options, popts ...ProcessorOption) *Processor {
	t.Helper()
	p, err := NewProcessor(opts, popts...)
	require.NoError(t, err)
	t.Cleanup(p.Cleanup)
	return p
}

func localOptions() Options {
	o := DefaultOptions()
	o.SampleRate = 48000
	o.WorkerEnabled = false
	return o
}

func TestProcessAudioCacheHitSkipsLocalTransform(t *testing.T) {
	var calls atomic.Int32
	transform := func(s []float32, work []complex128) []float32 {
		calls.Add(1)
		return dsp.SpectrumWith(s, work)
	}
	p := newProcessor(t, localOptions(), WithLocalTransform(transform))

	buf := make([]float32, 1024)
	first, err := p.ProcessAudio(t.Context(), buf)
	require.NoError(t, err)
	second, err := p.ProcessAudio(t.Context(), buf)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second call must be a cache hit")
	assert.Equal(t, first, second)

	stats, ok := p.PerformanceStats()[LabelProcessAudio]
	require.True(t, ok)
	assert.Equal(t, 2, stats.Count, "cache hits are metered as zero-cost samples")
	assert.Equal(t, time.Duration(0), stats.Min)
}

func TestProcessAudioCacheHitSkipsWorker(t *testing.T) {
	tr := newScriptedTransport(true, workerHandler())
	opts := localOptions()
	opts.WorkerEnabled = true
	p := newProcessor(t, opts, WithBridge(readyBridge(t, tr)))

	buf := make([]float32, 1024)
	buf[0] = 1
	_, err := p.ProcessAudio(t.Context(), buf)
	require.NoError(t, err)
	spec, err := p.ProcessAudio(t.Context(), buf)
	require.NoError(t, err)

	assert.Equal(t, 1, tr.count(bridge.KindProcessSpectrum))
	assert.Equal(t, dsp.Spectrum(buf), spec)
}

func TestProcessAudioCacheKeyedByLength(t *testing.T) {
	var calls atomic.Int32
	transform := func(s []float32, work []complex128) []float32 {
		calls.Add(1)
		return dsp.SpectrumWith(s, work)
	}
	p := newProcessor(t, localOptions(), WithLocalTransform(transform))

	for _, n := range []int{256, 512, 256, 512} {
		_, err := p.ProcessAudio(t.Context(), make([]float32, n))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestProcessAudioWithoutCacheAlwaysComputes(t *testing.T) {
	var calls atomic.Int32
	opts := localOptions()
	opts.CacheEnabled = false
	p := newProcessor(t, opts, WithLocalTransform(func(s []float32, w []complex128) []float32 {
		calls.Add(1)
		return nil
	}))

	for range 3 {
		_, err := p.ProcessAudio(t.Context(), make([]float32, 64))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestConcurrentMissesCoalesce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	p := newProcessor(t, localOptions(), WithLocalTransform(func(s []float32, w []complex128) []float32 {
		calls.Add(1)
		<-release
		return []float32{1}
	}))

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			res, err := p.ProcessAudio(context.Background(), make([]float32, 128))
			assert.NoError(t, err)
			assert.Equal(t, []float32{1}, res)
		})
	}
	require.Eventually(t, p.IsProcessing, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, p.IsProcessing())
}

func TestCalculateRMSDegradedEquivalence(t *testing.T) {
	zeros := make([]float32, 1024)

	t.Run("worker ready", func(t *testing.T) {
		tr := newScriptedTransport(true, func(req bridge.Request) (bridge.Response, bool) {
			resp, err := bridge.NewResultResponse(req.ID, bridge.RMSResult{Values: []float64{0.0}})
			return resp, err == nil
		})
		opts := localOptions()
		opts.WorkerEnabled = true
		p := newProcessor(t, opts, WithBridge(readyBridge(t, tr)))
		require.True(t, p.WorkerReady())

		got, err := p.CalculateRMS(t.Context(), zeros, 256)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.0}, got)
		assert.Equal(t, 1, tr.count(bridge.KindCalculateRMS))
	})

	t.Run("local fallback", func(t *testing.T) {
		p := newProcessor(t, localOptions())
		require.False(t, p.WorkerReady())

		got, err := p.CalculateRMS(t.Context(), zeros, 256)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.0}, got)
	})
}

func TestCalculateRMSFallbackIgnoresWindow(t *testing.T) {
	p := newProcessor(t, localOptions())

	got, err := p.CalculateRMS(t.Context(), []float32{1, 1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1/1.4142135, got[0], 1e-6)
}

func TestApplyFilterFallbackReturnsInput(t *testing.T) {
	p := newProcessor(t, localOptions())
	buf := []float32{0.1, 0.2, 0.3}

	out, err := p.ApplyFilter(t.Context(), buf, bridge.FilterParams{Kind: bridge.FilterLowPass, Frequency: 1000})
	require.NoError(t, err)
	assert.Equal(t, buf, out)
	assert.Same(t, &buf[0], &out[0], "degraded filtering returns the input untouched")
}

func TestApplyFilterOffloaded(t *testing.T) {
	tr := newScriptedTransport(true, workerHandler())
	opts := localOptions()
	opts.WorkerEnabled = true
	p := newProcessor(t, opts, WithBridge(readyBridge(t, tr)))

	buf := []float32{1, 0, 0, 0}
	out, err := p.ApplyFilter(t.Context(), buf, bridge.FilterParams{Kind: bridge.FilterLowPass, Frequency: 1000, Q: 0.7071})
	require.NoError(t, err)

	want, err := dsp.Filter(dsp.LowPass, 48000, 1000, 0.7071, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, want, out, "sample rate defaults to the processor's")
}

func TestStrategyFallsBackWhenBridgeNotReady(t *testing.T) {
	tr := newScriptedTransport(false, workerHandler())
	opts := localOptions()
	opts.WorkerEnabled = true
	p := newProcessor(t, opts, WithBridge(bridge.New(tr)))

	assert.False(t, p.WorkerReady())
	got, err := p.CalculateRMS(t.Context(), []float32{0.5, -0.5}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, got)
	assert.Zero(t, tr.count(bridge.KindCalculateRMS))
}

func TestWorkerDisabledNeverOffloads(t *testing.T) {
	tr := newScriptedTransport(true, workerHandler())
	p := newProcessor(t, localOptions(), WithBridge(readyBridge(t, tr)))

	assert.False(t, p.WorkerReady())
	_, err := p.CalculateRMS(t.Context(), []float32{0.5}, 1)
	require.NoError(t, err)
	assert.Zero(t, tr.count(bridge.KindCalculateRMS))
}

func TestOffloadedErrorsSurface(t *testing.T) {
	tr := newScriptedTransport(true, func(req bridge.Request) (bridge.Response, bool) {
		return bridge.NewErrorResponse(req.ID, assert.AnError), true
	})
	opts := localOptions()
	opts.WorkerEnabled = true
	p := newProcessor(t, opts, WithBridge(readyBridge(t, tr)))

	_, err := p.CalculateRMS(t.Context(), []float32{1}, 1)
	require.ErrorIs(t, err, bridge.ErrRemote)

	_, err = p.ProcessAudio(t.Context(), []float32{1})
	require.ErrorIs(t, err, bridge.ErrRemote)
}

func TestProcessBatchOffloadedIsOneCall(t *testing.T) {
	tr := newScriptedTransport(true, workerHandler())
	opts := localOptions()
	opts.WorkerEnabled = true
	p := newProcessor(t, opts, WithBridge(readyBridge(t, tr)))

	bufs := [][]float32{{1, 0}, {2, 0}, {3, 0}}
	out, err := p.ProcessBatch(t.Context(), bufs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, spec := range out {
		assert.Equal(t, dsp.Spectrum(bufs[i]), spec)
	}
	assert.Equal(t, 1, tr.count(bridge.KindProcessBatch))
	assert.Zero(t, tr.count(bridge.KindProcessSpectrum))
}

func TestProcessBatchLocalIsSequential(t *testing.T) {
	opts := localOptions()
	opts.CacheEnabled = false
	p := newProcessor(t, opts)

	bufs := [][]float32{{1, 0, 0, 0}, {0, 1}}
	out, err := p.ProcessBatch(t.Context(), bufs)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{dsp.Spectrum(bufs[0]), dsp.Spectrum(bufs[1])}, out)
}

func TestFlushBatchKeepsInsertionOrder(t *testing.T) {
	opts := localOptions()
	opts.CacheEnabled = false
	opts.BatchDelay = time.Hour
	var seen [][]float32
	p := newProcessor(t, opts, WithLocalTransform(func(s []float32, w []complex128) []float32 {
		seen = append(seen, s)
		return s
	}))

	a, b, c := []float32{1}, []float32{2}, []float32{3}
	p.AddToBatch(a)
	p.AddToBatch(b)
	p.AddToBatch(c)
	assert.Equal(t, 3, p.QueuedBuffers())

	out, err := p.FlushBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, [][]float32{a, b, c}, out)
	assert.Equal(t, [][]float32{a, b, c}, seen)
	assert.Zero(t, p.QueuedBuffers())

	out, err = p.FlushBatch(t.Context())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBatchTimerDeliversToHandler(t *testing.T) {
	tr := newScriptedTransport(true, workerHandler())
	opts := localOptions()
	opts.WorkerEnabled = true
	opts.BatchDelay = 10 * time.Millisecond

	type delivery struct {
		bufs    [][]float32
		spectra [][]float32
		err     error
	}
	got := make(chan delivery, 1)
	p := newProcessor(t, opts,
		WithBridge(readyBridge(t, tr)),
		WithBatchHandler(func(bufs, spectra [][]float32, err error) {
			got <- delivery{bufs, spectra, err}
		}))

	bufs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	for _, b := range bufs {
		p.AddToBatch(b)
	}

	select {
	case d := <-got:
		require.NoError(t, d.err)
		assert.Equal(t, bufs, d.bufs)
		require.Len(t, d.spectra, 3)
	case <-time.After(time.Second):
		t.Fatal("batch not flushed")
	}
	assert.Equal(t, 1, tr.count(bridge.KindProcessBatch))
}

func TestProcessAudioDebouncedCollapses(t *testing.T) {
	opts := localOptions()
	opts.CacheEnabled = false
	opts.DebounceDelay = 30 * time.Millisecond
	p := newProcessor(t, opts)

	results := make(chan []float32, 10)
	for i := range 5 {
		buf := make([]float32, 8)
		buf[0] = float32(i + 1)
		p.ProcessAudioDebounced(buf, func(r Result) {
			assert.NoError(t, r.Err)
			results <- r.Spectrum
		})
	}

	select {
	case spec := <-results:
		last := make([]float32, 8)
		last[0] = 5
		assert.Equal(t, dsp.Spectrum(last), spec)
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, results, "only the last call of the burst runs")
}

func TestProcessAudioThrottledBounded(t *testing.T) {
	opts := localOptions()
	opts.CacheEnabled = false
	opts.ThrottleLimit = 20 // one per 50ms
	p := newProcessor(t, opts)

	var runs atomic.Int32
	const window = 200 * time.Millisecond
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		p.ProcessAudioThrottled([]float32{1}, func(Result) { runs.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	// ceil(T*limit/1000)+1 plus the deferred trailing call
	assert.LessOrEqual(t, runs.Load(), int32(6))
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestFlagsAndStats(t *testing.T) {
	p := newProcessor(t, localOptions(), WithLocalTransform(func(s []float32, w []complex128) []float32 {
		time.Sleep(5 * time.Millisecond)
		return nil
	}))

	assert.False(t, p.IsProcessing())
	assert.Zero(t, p.LastProcessingTime())

	_, err := p.ProcessAudio(t.Context(), make([]float32, 16))
	require.NoError(t, err)
	_, err = p.CalculateRMS(t.Context(), make([]float32, 16), 0)
	require.NoError(t, err)

	assert.Positive(t, p.LastProcessingTime())
	stats := p.PerformanceStats()
	assert.Contains(t, stats, LabelProcessAudio)
	assert.Contains(t, stats, LabelCalculateRMS)
	assert.GreaterOrEqual(t, stats[LabelProcessAudio].Max, 5*time.Millisecond)
}

func TestCleanupIsIdempotent(t *testing.T) {
	tr := newScriptedTransport(true, workerHandler())
	opts := localOptions()
	opts.WorkerEnabled = true
	b := readyBridge(t, tr)
	p, err := NewProcessor(opts, WithBridge(b))
	require.NoError(t, err)

	_, err = p.ProcessAudio(t.Context(), make([]float32, 32))
	require.NoError(t, err)
	p.AddToBatch([]float32{1})

	p.Cleanup()
	p.Cleanup()

	assert.False(t, p.WorkerReady())
	assert.False(t, b.Ready())
	assert.Empty(t, p.PerformanceStats())
	assert.Zero(t, p.QueuedBuffers())

	// still usable in degraded mode
	got, err := p.CalculateRMS(t.Context(), []float32{0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, got)
}

func TestProcessorMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewOffloadMetrics(registry)
	require.NoError(t, err)

	p := newProcessor(t, localOptions(), WithMetrics(m))
	for range 2 {
		_, err := p.ProcessAudio(t.Context(), make([]float32, 64))
		require.NoError(t, err)
	}

	n, err := testutil.GatherAndCount(registry, "offload_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one hit and one miss series")

	n, err = testutil.GatherAndCount(registry, "offload_strategy_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
