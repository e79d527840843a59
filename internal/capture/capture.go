// Package capture is the audio capture facade. A Capture drives a native
// Engine through a small state machine:
//
//	uninitialized -> idle -> capturing <-> paused
//	capturing/paused -> idle (Stop) or stopped (engine stopped on its own)
//
// Any engine failure moves the facade to StateError, from which only
// Initialize recovers. Control methods report success as a bool and deliver
// the failure through the OnError callback.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiokit/internal/dsp"
	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/observability/metrics"
	"github.com/tphakala/audiokit/internal/offload/pool"
)

// GetLogger returns the capture logger
func GetLogger() logger.Logger {
	return logger.Global().Module("capture")
}

// Callback types. At most one callback is registered per channel and the last
// registration wins.
type (
	// AudioDataFunc receives interleaved samples in [-1, 1]. The slice is only
	// valid for the duration of the call. It may call Stop or Pause.
	AudioDataFunc   func(samples []float32, frames int)
	ErrorFunc       func(err error)
	StateChangeFunc func(from, to State)
	// AnalysisFunc runs on the capture's analysis goroutine. It may call
	// Stop or Pause but not Release, which waits for that goroutine.
	AnalysisFunc    func(analysis AudioAnalysis)
)

// Option configures a Capture
type Option func(*Capture)

// WithLogger overrides the capture logger
func WithLogger(l logger.Logger) Option {
	return func(c *Capture) { c.log = l }
}

// WithMetrics reports capture activity to m
func WithMetrics(m *metrics.CaptureMetrics) Option {
	return func(c *Capture) { c.metrics = m }
}

// Capture is the facade over one capture Engine
type Capture struct {
	engine  Engine
	log     logger.Logger
	metrics *metrics.CaptureMetrics

	// mu serializes control operations. Callbacks queued in events run
	// after mu is released.
	mu             sync.Mutex
	initialized    bool
	events         []func()
	analysisCancel context.CancelFunc
	analysisWG     sync.WaitGroup

	state   atomic.Int32
	cfg     atomic.Pointer[Config]
	buffers atomic.Pointer[pool.Pool[[]float32]]

	cbMu             sync.RWMutex
	onAudio          AudioDataFunc
	onError          ErrorFunc
	onState          StateChangeFunc
	onAnalysis       AnalysisFunc
	analysisInterval time.Duration

	recMu         sync.Mutex
	rec           *recording
	lastRecording *recordingResult

	meter meter
}

// recordingResult is the outcome of a finished recording
type recordingResult struct {
	path string
	err  error
}

// New creates a facade over engine in StateUninitialized
func New(engine Engine, opts ...Option) *Capture {
	c := &Capture{
		engine: engine,
		log:    GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	cfg := DefaultConfig()
	c.cfg.Store(&cfg)
	return c
}

// unlock releases mu and runs the callbacks queued while it was held
func (c *Capture) unlock() {
	events := c.events
	c.events = nil
	c.mu.Unlock()
	for _, fn := range events {
		fn()
	}
}

// State returns the current state
func (c *Capture) State() State {
	return State(c.state.Load())
}

// IsCapturing reports whether audio is flowing
func (c *Capture) IsCapturing() bool {
	return c.State() == StateCapturing
}

// IsInitialized reports whether the engine is open
func (c *Capture) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Config returns a copy of the active configuration
func (c *Capture) Config() Config {
	return *c.cfg.Load()
}

// Initialize merges cfg over the defaults, checks microphone permission and
// opens the engine. It is the only way out of StateError. When permission is
// requested and denied, ErrPermissionDenied is returned and the engine is
// never opened.
func (c *Capture) Initialize(ctx context.Context, cfg *Config) error {
	c.mu.Lock()
	defer c.unlock()
	return c.initializeLocked(ctx, cfg)
}

func (c *Capture) initializeLocked(ctx context.Context, cfg *Config) error {
	merged := DefaultConfig().Merge(cfg)
	if err := merged.Validate(); err != nil {
		c.log.Warn("rejected capture configuration", logger.Error(err))
		return err
	}

	if merged.PermissionOnInit() && !c.engine.HasPermission() {
		granted, err := c.engine.RequestPermission(ctx)
		if err != nil || !granted {
			c.recordError(errors.CategoryPermission)
			if err == nil {
				err = ErrPermissionDenied
			} else {
				err = errors.New(err).
					Component(ComponentCapture).
					Category(errors.CategoryPermission).
					Context("operation", "request_permission").
					Build()
			}
			c.log.Warn("audio capture permission not granted", logger.Error(err))
			return err
		}
	}

	if c.initialized {
		c.teardownLocked()
	}

	buffers, err := pool.NewFloat32(merged.BufferSizeFrames*merged.Channels, merged.NumBuffers)
	if err != nil {
		return err
	}
	c.buffers.Store(buffers)
	c.cfg.Store(&merged)
	c.meter.reset()

	callbacks := Callbacks{
		Frames:  c.handleFrames,
		Error:   c.handleEngineError,
		Stopped: c.handleEngineStopped,
	}
	if err := c.engine.Open(merged, callbacks); err != nil {
		wrapped := engineError("open", err)
		c.failLocked(wrapped)
		return wrapped
	}
	if merged.DeviceID != "" {
		if err := c.engine.SelectDevice(merged.DeviceID); err != nil {
			c.log.Warn("configured capture device not available, using default",
				logger.String("device_id", merged.DeviceID),
				logger.Error(err))
		}
	}

	c.initialized = true
	c.setStateLocked(StateIdle)
	c.log.Info("audio capture initialized",
		logger.Int("sample_rate", merged.SampleRate),
		logger.Int("channels", merged.Channels),
		logger.Int("bits_per_sample", merged.BitsPerSample),
		logger.Int("buffer_size_frames", merged.BufferSizeFrames))
	return nil
}

// Start begins capturing, initializing with the stored configuration first
// if needed. It returns true when already capturing and false from
// StateError.
func (c *Capture) Start() bool {
	c.mu.Lock()
	defer c.unlock()

	switch c.State() {
	case StateCapturing:
		return true
	case StateError, StatePaused:
		return false
	}

	if !c.initialized {
		cfg := c.Config()
		if err := c.initializeLocked(context.Background(), &cfg); err != nil {
			if c.State() != StateError {
				c.queueError(err)
			}
			return false
		}
	}

	if err := c.engine.Start(); err != nil {
		c.failLocked(engineError("start", err))
		return false
	}
	c.meter.resume(time.Now())
	c.setStateLocked(StateCapturing)
	c.startAnalysisLocked()
	return true
}

// Stop ends capturing and finalizes an active recording. Stopping an idle
// facade succeeds.
func (c *Capture) Stop() bool {
	c.mu.Lock()
	defer c.unlock()

	switch c.State() {
	case StateCapturing, StatePaused:
	case StateIdle, StateStopped:
		return true
	default:
		return false
	}

	if err := c.engine.Stop(); err != nil {
		c.failLocked(engineError("stop", err))
		return false
	}
	c.haltLocked()
	c.setStateLocked(StateIdle)
	return true
}

// Pause suspends capturing without releasing the device
func (c *Capture) Pause() bool {
	c.mu.Lock()
	defer c.unlock()

	switch c.State() {
	case StatePaused:
		return true
	case StateCapturing:
	default:
		return false
	}

	if err := c.engine.Pause(); err != nil {
		c.failLocked(engineError("pause", err))
		return false
	}
	c.meter.suspend(time.Now())
	c.setStateLocked(StatePaused)
	return true
}

// Resume continues a paused capture
func (c *Capture) Resume() bool {
	c.mu.Lock()
	defer c.unlock()

	switch c.State() {
	case StateCapturing:
		return true
	case StatePaused:
	default:
		return false
	}

	if err := c.engine.Resume(); err != nil {
		c.failLocked(engineError("resume", err))
		return false
	}
	c.meter.resume(time.Now())
	c.setStateLocked(StateCapturing)
	return true
}

// Release stops capturing, closes the engine and returns to StateUninitialized
func (c *Capture) Release() {
	c.mu.Lock()
	if c.initialized {
		c.teardownLocked()
	}
	c.meter.reset()
	c.setStateLocked(StateUninitialized)
	c.unlock()

	c.analysisWG.Wait()
}

// UpdateConfig merges partial over the active configuration. An initialized
// engine is reopened with the result. Not allowed while capturing.
func (c *Capture) UpdateConfig(partial *Config) bool {
	c.mu.Lock()
	defer c.unlock()

	if c.State().Active() {
		return false
	}
	merged := c.Config().Merge(partial)
	if err := merged.Validate(); err != nil {
		c.queueError(err)
		return false
	}
	if !c.initialized {
		c.cfg.Store(&merged)
		return true
	}
	return c.initializeLocked(context.Background(), &merged) == nil
}

// teardownLocked stops a running engine and closes it
func (c *Capture) teardownLocked() {
	if c.State().Active() {
		if err := c.engine.Stop(); err != nil {
			c.log.Warn("failed to stop capture engine", logger.Error(err))
		}
		c.haltLocked()
	}
	if err := c.engine.Close(); err != nil {
		c.log.Warn("failed to close capture engine", logger.Error(err))
	}
	c.initialized = false
}

// haltLocked winds down everything that runs alongside an active capture
func (c *Capture) haltLocked() {
	c.stopAnalysisLocked()
	c.meter.suspend(time.Now())
	c.recMu.Lock()
	if c.rec != nil {
		c.finishRecordingLocked(nil)
	}
	c.recMu.Unlock()
}

// failLocked moves to StateError and queues the error callback
func (c *Capture) failLocked(err error) {
	c.log.Error("audio capture failed", logger.Error(err))
	c.recordError(errors.CategoryDevice)
	if c.State().Active() {
		c.haltLocked()
	}
	c.setStateLocked(StateError)
	c.queueError(err)
}

func (c *Capture) setStateLocked(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.log.Debug("capture state changed",
		logger.String("from", from.String()),
		logger.String("to", to.String()))
	if c.metrics != nil {
		c.metrics.RecordStateTransition(from.String(), to.String())
	}
	c.cbMu.RLock()
	cb := c.onState
	c.cbMu.RUnlock()
	if cb != nil {
		c.events = append(c.events, func() { cb(from, to) })
	}
}

func (c *Capture) queueError(err error) {
	c.cbMu.RLock()
	cb := c.onError
	c.cbMu.RUnlock()
	if cb != nil {
		c.events = append(c.events, func() { cb(err) })
	}
}

// reportError delivers err immediately, for use outside mu
func (c *Capture) reportError(err error) {
	c.cbMu.RLock()
	cb := c.onError
	c.cbMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

func (c *Capture) recordError(category errors.ErrorCategory) {
	if c.metrics != nil {
		c.metrics.RecordError(string(category))
	}
}

// handleFrames converts one engine buffer and fans it out to metering,
// recording and the audio callback
func (c *Capture) handleFrames(pcm []byte, frames int) {
	if c.State() != StateCapturing || frames <= 0 {
		return
	}
	cfg := c.cfg.Load()
	buffers := c.buffers.Load()
	if buffers == nil {
		return
	}

	handle := buffers.Acquire()
	defer handle.Release()

	want := frames * cfg.Channels
	buf := handle.Value()
	if len(buf) < want {
		buf = make([]float32, want)
	}

	var n int
	if cfg.BitsPerSample == 32 {
		n = dsp.PCMFloat32ToFloat32(pcm, buf[:want])
	} else {
		n = dsp.PCM16ToFloat32(pcm, buf[:want])
	}
	samples := buf[:n]

	rms, peak := c.meter.observe(samples, frames, len(pcm))
	if c.metrics != nil {
		c.metrics.RecordBuffer(frames, len(pcm), rms, peak, peak >= dsp.ClipThreshold)
	}

	c.writeRecording(samples)

	c.cbMu.RLock()
	cb := c.onAudio
	c.cbMu.RUnlock()
	if cb != nil {
		cb(samples, frames)
	}
}

func (c *Capture) handleEngineError(err error) {
	c.mu.Lock()
	c.failLocked(engineError("stream", err))
	c.unlock()
}

func (c *Capture) handleEngineStopped() {
	c.mu.Lock()
	defer c.unlock()
	if !c.State().Active() {
		return
	}
	c.log.Warn("capture device stopped unexpectedly")
	c.haltLocked()
	c.setStateLocked(StateStopped)
}

// OnAudioData registers the audio callback, nil clears it
func (c *Capture) OnAudioData(cb AudioDataFunc) {
	c.cbMu.Lock()
	c.onAudio = cb
	c.cbMu.Unlock()
}

// OnError registers the error callback, nil clears it
func (c *Capture) OnError(cb ErrorFunc) {
	c.cbMu.Lock()
	c.onError = cb
	c.cbMu.Unlock()
}

// OnStateChange registers the state callback, nil clears it
func (c *Capture) OnStateChange(cb StateChangeFunc) {
	c.cbMu.Lock()
	c.onState = cb
	c.cbMu.Unlock()
}

// OnAnalysis registers the periodic analysis callback. A non-positive
// interval uses the configured analysis interval. The ticker runs only while
// capturing.
func (c *Capture) OnAnalysis(cb AnalysisFunc, interval time.Duration) {
	c.mu.Lock()
	defer c.unlock()

	c.cbMu.Lock()
	c.onAnalysis = cb
	c.analysisInterval = interval
	c.cbMu.Unlock()

	if cb != nil && c.IsCapturing() {
		c.startAnalysisLocked()
	} else if cb == nil {
		c.stopAnalysisLocked()
	}
}

func (c *Capture) startAnalysisLocked() {
	c.stopAnalysisLocked()

	c.cbMu.RLock()
	cb, interval := c.onAnalysis, c.analysisInterval
	c.cbMu.RUnlock()
	if cb == nil {
		return
	}
	if interval <= 0 {
		interval = c.Config().AnalysisInterval
	}
	if interval <= 0 {
		interval = DefaultAnalysisInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.analysisCancel = cancel
	c.analysisWG.Go(func() {
		c.analysisLoop(ctx, interval)
	})
}

func (c *Capture) stopAnalysisLocked() {
	if c.analysisCancel != nil {
		c.analysisCancel()
		c.analysisCancel = nil
	}
}

func (c *Capture) analysisLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if c.State() != StateCapturing {
				continue
			}
			c.cbMu.RLock()
			cb := c.onAnalysis
			c.cbMu.RUnlock()
			if cb != nil {
				cb(c.analyze(now))
			}
		}
	}
}

// analyze builds a snapshot from the current meter readings
func (c *Capture) analyze(now time.Time) AudioAnalysis {
	level := c.CurrentLevel()
	return AudioAnalysis{
		CurrentLevel:    level,
		PeakLevel:       c.PeakLevel(),
		AverageLevel:    c.RMS(),
		LevelDB:         dsp.ToDB(level),
		Silent:          c.IsSilent(0),
		Clipping:        c.HasClipping(),
		FramesProcessed: c.meter.framesProcessed(),
		Timestamp:       now,
	}
}

// AvailableDevices lists the engine's input devices
func (c *Capture) AvailableDevices() ([]Device, error) {
	devices, err := c.engine.Devices()
	if err != nil {
		return nil, engineError("devices", err)
	}
	return devices, nil
}

// SelectDevice switches the engine to the device with id
func (c *Capture) SelectDevice(id string) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.engine.SelectDevice(id); err != nil {
		return engineError("select_device", err)
	}
	c.log.Info("capture device selected", logger.String("device_id", id))
	return nil
}

// CurrentDevice asks the engine for the device in use
func (c *Capture) CurrentDevice() (Device, error) {
	d, err := c.engine.CurrentDevice()
	if err != nil {
		return Device{}, engineError("current_device", err)
	}
	return d, nil
}

// CurrentLevel is the RMS of the most recent buffer
func (c *Capture) CurrentLevel() float64 {
	return c.meter.current.Load()
}

// PeakLevel is the largest absolute sample since the last ResetPeakLevel
func (c *Capture) PeakLevel() float64 {
	return c.meter.peak.Load()
}

// RMS is the RMS level of the most recent buffer
func (c *Capture) RMS() float64 {
	return c.CurrentLevel()
}

// RMSdB is RMS in decibels, dsp.SilenceDB for silence
func (c *Capture) RMSdB() float64 {
	return dsp.ToDB(c.RMS())
}

// IsSilent reports whether the current level is below threshold. A
// non-positive threshold uses the configured silence threshold.
func (c *Capture) IsSilent(threshold float64) bool {
	if threshold <= 0 {
		threshold = c.Config().SilenceThreshold
	}
	return c.CurrentLevel() < threshold
}

// HasClipping reports whether the peak level reached dsp.ClipThreshold
func (c *Capture) HasClipping() bool {
	return c.PeakLevel() >= dsp.ClipThreshold
}

// ResetPeakLevel clears the peak hold
func (c *Capture) ResetPeakLevel() {
	c.meter.peak.Store(0)
}

// Statistics returns the running counters
func (c *Capture) Statistics() Statistics {
	s := c.meter.statistics(time.Now())
	if xc, ok := c.engine.(XrunCounter); ok {
		s.Overruns, s.Underruns = xc.Xruns()
	}
	return s
}

// ResetStatistics clears the running counters
func (c *Capture) ResetStatistics() {
	c.meter.resetStatistics(time.Now())
}
