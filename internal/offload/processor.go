// Package offload composes the bridge, cache, pool, monitor and schedulers
// into the audio processing API. When the worker is unavailable every
// operation falls back to a local path; degraded mode is not an error.
package offload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tphakala/audiokit/internal/dsp"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/observability/metrics"
	"github.com/tphakala/audiokit/internal/offload/bridge"
	"github.com/tphakala/audiokit/internal/offload/cache"
	"github.com/tphakala/audiokit/internal/offload/perfmon"
	"github.com/tphakala/audiokit/internal/offload/pool"
	"github.com/tphakala/audiokit/internal/offload/schedule"
)

// Performance monitor labels
const (
	LabelProcessAudio = "process_audio"
	LabelCalculateRMS = "calculate_rms"
	LabelApplyFilter  = "apply_filter"
	LabelProcessBatch = "process_batch"
)

// GetLogger returns the offload logger
func GetLogger() logger.Logger {
	return logger.Global().Module("offload")
}

// Bridge is the part of *bridge.Bridge the processor uses
type Bridge interface {
	bridge.Caller
	Ready() bool
	Pending() int
	Close() error
}

// LocalTransform computes a spectrum on the calling goroutine. work is pooled
// scratch space the transform may use.
type LocalTransform func(samples []float32, work []complex128) []float32

// Result is delivered to debounced and throttled callers
type Result struct {
	Spectrum []float32
	Err      error
}

// BatchHandler receives the results of a timer-driven batch flush
type BatchHandler func(buffers, spectra [][]float32, err error)

type job struct {
	buf []float32
	cb  func(Result)
}

// ProcessorOption configures optional collaborators
type ProcessorOption func(*Processor)

// WithBridge enables the offloaded strategy through b. The processor owns b
// and closes it on Cleanup.
func WithBridge(b Bridge) ProcessorOption {
	return func(p *Processor) { p.bridge = b }
}

// WithMetrics records operations to m
func WithMetrics(m *metrics.OffloadMetrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithLocalTransform replaces the local spectrum transform
func WithLocalTransform(fn LocalTransform) ProcessorOption {
	return func(p *Processor) { p.transform = fn }
}

// WithBatchHandler receives results of batches flushed by the timer
func WithBatchHandler(fn BatchHandler) ProcessorOption {
	return func(p *Processor) { p.onBatch = fn }
}

// WithLogger overrides the processor logger
func WithLogger(l logger.Logger) ProcessorOption {
	return func(p *Processor) { p.log = l }
}

// Processor is the audio processing orchestrator
type Processor struct {
	opts Options
	log  logger.Logger

	bridge    Bridge
	metrics   *metrics.OffloadMetrics
	transform LocalTransform
	onBatch   BatchHandler

	cache   *cache.Cache[[]float32]
	scratch *pool.Pool[[]complex128]
	monitor *perfmon.Monitor
	flight  singleflight.Group

	debounce *schedule.Debounce[job]
	throttle *schedule.Throttle[job]
	batch    *schedule.Batch[[]float32]

	ctx    context.Context
	cancel context.CancelFunc

	inFlight      atomic.Int64
	lastDuration  atomic.Int64
	lastDiscarded atomic.Uint64
	cleanupOnce   sync.Once
	cleaned       atomic.Bool
}

// NewProcessor creates an orchestrator. Without WithBridge every call takes
// the local strategy.
func NewProcessor(opts Options, popts ...ProcessorOption) (*Processor, error) {
	opts = opts.withDefaults()

	p := &Processor{
		opts:      opts,
		transform: dsp.SpectrumWith,
		monitor:   perfmon.New(opts.MonitorCapacity),
	}
	for _, opt := range popts {
		opt(p)
	}
	if p.log == nil {
		p.log = GetLogger()
	}

	scratchLen := dsp.NextPow2(opts.BufferSize)
	scratch, err := pool.New(
		func() []complex128 { return make([]complex128, scratchLen) },
		func(b []complex128) { clear(b) },
		opts.PoolSize,
	)
	if err != nil {
		return nil, err
	}
	p.scratch = scratch

	if opts.CacheEnabled {
		p.cache = cache.New[[]float32](cache.Options{TTL: opts.CacheTTL, MaxSize: opts.CacheSize})
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.debounce = schedule.NewDebounce(opts.DebounceDelay, p.runJob)
	p.throttle = schedule.NewThrottle(opts.ThrottleLimit, p.runJob)
	p.batch = schedule.NewBatch(opts.BatchDelay, p.flushQueued)
	p.batch.OnError(func(err error) {
		p.log.Warn("queued batch failed", logger.Error(err))
	})

	p.log.Debug("processor created",
		logger.Int("sample_rate", opts.SampleRate),
		logger.Bool("worker_enabled", opts.WorkerEnabled),
		logger.Bool("cache_enabled", opts.CacheEnabled),
		logger.Bool("bridge", p.bridge != nil))

	return p, nil
}

// strategy picks the execution path for one call
func (p *Processor) strategy() Strategy {
	if p.opts.WorkerEnabled && !p.cleaned.Load() && p.bridge != nil && p.bridge.Ready() {
		return StrategyOffloaded
	}
	return StrategyLocal
}

// WorkerReady reports whether calls would currently be offloaded
func (p *Processor) WorkerReady() bool {
	return p.strategy() == StrategyOffloaded
}

// IsProcessing reports whether any operation is in flight
func (p *Processor) IsProcessing() bool {
	return p.inFlight.Load() > 0
}

// LastProcessingTime returns the duration of the most recently finished operation
func (p *Processor) LastProcessingTime() time.Duration {
	return time.Duration(p.lastDuration.Load())
}

// PerformanceStats returns per-label timing statistics
func (p *Processor) PerformanceStats() map[string]perfmon.Stats {
	return p.monitor.AllStats()
}

// begin marks an operation in flight; the returned func records its outcome
func (p *Processor) begin(label string, s Strategy) func(error) {
	p.inFlight.Add(1)
	stop := p.monitor.StartMeasure(label)
	if p.metrics != nil {
		p.metrics.RecordStrategy(label, s.String())
	}

	return func(err error) {
		d := stop()
		p.lastDuration.Store(int64(d))
		p.inFlight.Add(-1)
		p.observe(label, d, err)
	}
}

func (p *Processor) observe(label string, d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordDuration(label, d.Seconds())
	if err != nil {
		p.metrics.RecordOperation(label, metrics.StatusError)
		p.metrics.RecordError(label, errorType(err))
		return
	}
	p.metrics.RecordOperation(label, metrics.StatusSuccess)
	if p.bridge != nil {
		p.metrics.SetBridgePending(p.bridge.Pending())
	}
	stats := p.scratch.Stats()
	prev := p.lastDiscarded.Swap(stats.Discarded)
	p.metrics.SetPoolState(stats.Size, stats.Discarded-prev)
}

// ProcessAudio returns the magnitude spectrum of buf. With caching enabled,
// results are memoized by buffer length and sample rate, and concurrent
// misses for the same key share one computation. Cached slices are shared
// and must not be modified.
func (p *Processor) ProcessAudio(ctx context.Context, buf []float32) ([]float32, error) {
	if p.cache == nil || p.cleaned.Load() {
		return p.computeSpectrum(ctx, buf, p.strategy())
	}

	key := cache.Key(len(buf), p.opts.SampleRate)
	if v, ok := p.cache.Get(key); ok {
		p.monitor.RecordMeasurement(LabelProcessAudio, 0)
		if p.metrics != nil {
			p.metrics.RecordCacheLookup(true)
		}
		return v, nil
	}
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(false)
	}

	// the shared computation outlives any single caller's cancellation
	shared := context.WithoutCancel(ctx)
	ch := p.flight.DoChan(key, func() (any, error) {
		res, err := p.computeSpectrum(shared, buf, p.strategy())
		if err != nil {
			return nil, err
		}
		p.cache.Set(key, res)
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]float32), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessSpectrum is an alias of ProcessAudio
func (p *Processor) ProcessSpectrum(ctx context.Context, buf []float32) ([]float32, error) {
	return p.ProcessAudio(ctx, buf)
}

func (p *Processor) computeSpectrum(ctx context.Context, buf []float32, s Strategy) (out []float32, err error) {
	done := p.begin(LabelProcessAudio, s)
	defer func() { done(err) }()

	if s == StrategyOffloaded {
		res, err := bridge.Invoke[bridge.SpectrumResult](ctx, p.bridge,
			bridge.SpectrumRequest{Samples: buf, SampleRate: p.opts.SampleRate})
		if err != nil {
			return nil, err
		}
		return res.Magnitudes, nil
	}

	h := p.scratch.Acquire()
	defer h.Release()
	return p.transform(buf, h.Value()), nil
}

// ApplyFilter returns a filtered copy of buf. Without the worker the input is
// returned unmodified.
func (p *Processor) ApplyFilter(ctx context.Context, buf []float32, params bridge.FilterParams) (out []float32, err error) {
	s := p.strategy()
	done := p.begin(LabelApplyFilter, s)
	defer func() { done(err) }()

	if s == StrategyLocal {
		return buf, nil
	}
	if params.SampleRate <= 0 {
		params.SampleRate = p.opts.SampleRate
	}
	res, err := bridge.Invoke[bridge.FilterResult](ctx, p.bridge, bridge.FilterRequest{Samples: buf, Filter: params})
	if err != nil {
		return nil, err
	}
	return res.Samples, nil
}

// CalculateRMS returns one RMS value per window. Without the worker a single
// whole-buffer RMS is returned and windowSize is ignored.
func (p *Processor) CalculateRMS(ctx context.Context, buf []float32, windowSize int) (out []float64, err error) {
	s := p.strategy()
	done := p.begin(LabelCalculateRMS, s)
	defer func() { done(err) }()

	if s == StrategyLocal {
		return []float64{dsp.RMS(buf)}, nil
	}
	res, err := bridge.Invoke[bridge.RMSResult](ctx, p.bridge, bridge.RMSRequest{Samples: buf, WindowSize: windowSize})
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

// ProcessBatch returns the spectra of bufs in order, in one worker round trip
// or sequentially through ProcessAudio.
func (p *Processor) ProcessBatch(ctx context.Context, bufs [][]float32) ([][]float32, error) {
	if len(bufs) == 0 {
		return nil, nil
	}
	if p.metrics != nil {
		p.metrics.ObserveBatchSize(len(bufs))
	}

	s := p.strategy()
	if s == StrategyOffloaded {
		done := p.begin(LabelProcessBatch, s)
		res, err := bridge.Invoke[bridge.BatchResult](ctx, p.bridge,
			bridge.BatchRequest{Buffers: bufs, SampleRate: p.opts.SampleRate})
		done(err)
		if err != nil {
			return nil, err
		}
		return res.Spectra, nil
	}

	out := make([][]float32, len(bufs))
	for i, buf := range bufs {
		spec, err := p.ProcessAudio(ctx, buf)
		if err != nil {
			return nil, err
		}
		out[i] = spec
	}
	return out, nil
}

// Cleanup stops the schedulers, closes the bridge and clears the cache, pool
// and monitor. It is safe to call more than once.
func (p *Processor) Cleanup() {
	p.cleanupOnce.Do(func() {
		p.cleaned.Store(true)
		p.cancel()

		p.debounce.Stop()
		p.throttle.Stop()
		if dropped := p.batch.Stop(); dropped > 0 {
			p.log.Debug("dropped queued buffers on cleanup", logger.Int("count", dropped))
		}

		if p.bridge != nil {
			if err := p.bridge.Close(); err != nil {
				p.log.Warn("closing bridge", logger.Error(err))
			}
		}
		if p.metrics != nil {
			p.metrics.SetBridgeReady(false)
		}
	})

	if p.cache != nil {
		p.cache.Clear()
	}
	p.scratch.Clear()
	p.monitor.Clear()
}
