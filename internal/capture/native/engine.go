// Package native implements capture.Engine on top of miniaudio through malgo.
// The device callback only copies PCM into a ring buffer; a pump goroutine
// drains it in whole periods and hands them to the capture facade.
package native

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audiokit/internal/capture"
	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
)

const (
	componentNative = "capture-native"
	minPollInterval = time.Millisecond
	// ringPeriods is how many periods the ring buffer holds beyond NumBuffers
	ringPeriods = 4
)

var (
	_ capture.Engine      = (*Engine)(nil)
	_ capture.XrunCounter = (*Engine)(nil)
)

// GetLogger returns the native engine logger
func GetLogger() logger.Logger {
	return logger.Global().Module("capture").Module("native")
}

// Engine captures from a miniaudio input device
type Engine struct {
	log      logger.Logger
	backends []malgo.Backend

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	selected *malgo.DeviceID
	cfg      capture.Config
	cb       capture.Callbacks

	ring       *ringbuffer.RingBuffer
	frameBytes int
	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	// delivering is set while the pump runs the Frames callback
	delivering atomic.Bool

	paused    atomic.Bool
	stopping  atomic.Bool
	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// New returns an engine using the platform's preferred backend
func New() *Engine {
	return &Engine{
		log:      GetLogger(),
		backends: platformBackends(),
	}
}

// platformBackends picks the backend per OS, nil lets miniaudio choose
func platformBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func nativeError(op string, err error) error {
	return errors.New(err).
		Component(componentNative).
		Category(errors.CategoryDevice).
		Context("operation", op).
		Build()
}

// ensureContext initializes the miniaudio context once
func (e *Engine) ensureContext() error {
	if e.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(e.backends, malgo.ContextConfig{}, func(message string) {
		e.log.Debug("miniaudio", logger.String("message", message))
	})
	if err != nil {
		return nativeError("init_context", fmt.Errorf("context init failed: %w", err))
	}
	e.ctx = ctx
	return nil
}

// Open creates the capture device for cfg
func (e *Engine) Open(cfg capture.Config, cb capture.Callbacks) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureContext(); err != nil {
		return err
	}
	e.cfg = cfg
	e.cb = cb
	e.frameBytes = cfg.FrameBytes()
	e.ring = ringbuffer.New(cfg.BufferSizeFrames * e.frameBytes * (cfg.NumBuffers + ringPeriods))
	return e.initDeviceLocked()
}

func (e *Engine) initDeviceLocked() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	if e.cfg.BitsPerSample == 32 {
		deviceConfig.Capture.Format = malgo.FormatF32
	}
	deviceConfig.Capture.Channels = uint32(e.cfg.Channels)
	deviceConfig.SampleRate = uint32(e.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(e.cfg.BufferSizeFrames)
	deviceConfig.Periods = uint32(e.cfg.NumBuffers)
	deviceConfig.Alsa.NoMMap = 1
	if e.selected != nil {
		deviceConfig.Capture.DeviceID = e.selected.Pointer()
	}

	device, err := malgo.InitDevice(e.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: e.onData,
		Stop: e.onStop,
	})
	if err != nil {
		return nativeError("init_device", fmt.Errorf("device init failed: %w", err))
	}
	e.device = device
	return nil
}

// onData runs on the audio thread and only copies into the ring buffer
func (e *Engine) onData(_, input []byte, _ uint32) {
	if e.paused.Load() {
		return
	}
	if _, err := e.ring.Write(input); err != nil {
		e.overruns.Add(1)
	}
}

func (e *Engine) onStop() {
	if e.stopping.Load() {
		return
	}
	e.log.Warn("capture device stopped")
	if e.cb.Stopped != nil {
		e.cb.Stopped()
	}
}

// Start starts the device and the pump
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.device == nil {
		return nativeError("start", fmt.Errorf("device not open"))
	}
	e.paused.Store(false)
	if err := e.device.Start(); err != nil {
		return nativeError("start", fmt.Errorf("device start failed: %w", err))
	}

	e.startPumpLocked()
	return nil
}

func (e *Engine) startPumpLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	e.pumpCancel = cancel
	e.pumpDone = make(chan struct{})
	go e.pump(ctx, e.pumpDone)
}

// stopPumpLocked cancels the pump and waits for it to exit. A Stop issued
// from inside the Frames callback runs on the pump itself, so it only
// cancels and the pump returns once the callback does.
func (e *Engine) stopPumpLocked() {
	if e.pumpCancel == nil {
		return
	}
	e.pumpCancel()
	if !e.delivering.Load() {
		<-e.pumpDone
	}
	e.pumpCancel = nil
}

// pump delivers whole periods from the ring buffer to the Frames callback
func (e *Engine) pump(ctx context.Context, done chan struct{}) {
	defer close(done)

	chunk := e.cfg.BufferSizeFrames * e.frameBytes
	buf := make([]byte, chunk)
	period := time.Duration(e.cfg.BufferSizeFrames) * time.Second / time.Duration(e.cfg.SampleRate)
	ticker := time.NewTicker(max(period/2, minPollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if e.ring.Length() == 0 {
			continue
		}
		for ctx.Err() == nil && e.ring.Length() >= chunk {
			n, err := e.ring.Read(buf)
			if err != nil {
				break
			}
			if n < chunk {
				e.underruns.Add(1)
			}
			if e.cb.Frames != nil {
				e.delivering.Store(true)
				e.cb.Frames(buf[:n], n/e.frameBytes)
				e.delivering.Store(false)
			}
		}
	}
}

// Stop stops the device and the pump, dropping buffered audio
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	e.stopping.Store(true)
	defer e.stopping.Store(false)

	var err error
	if e.device != nil && e.device.IsStarted() {
		if stopErr := e.device.Stop(); stopErr != nil {
			err = nativeError("stop", fmt.Errorf("device stop failed: %w", stopErr))
		}
	}
	e.stopPumpLocked()
	if e.ring != nil {
		e.ring.Reset()
	}
	return err
}

// Pause drops incoming audio while keeping the device running
func (e *Engine) Pause() error {
	e.paused.Store(true)
	return nil
}

// Resume accepts incoming audio again
func (e *Engine) Resume() error {
	e.paused.Store(false)
	return nil
}

// Close releases the device and the context
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.stopLocked()
	if e.device != nil {
		e.stopping.Store(true)
		e.device.Uninit()
		e.stopping.Store(false)
		e.device = nil
	}
	if e.ctx != nil {
		if uninitErr := e.ctx.Uninit(); uninitErr != nil && err == nil {
			err = nativeError("close", uninitErr)
		}
		e.ctx.Free()
		e.ctx = nil
	}
	return err
}

// Devices lists capture devices. IDs are the decoded miniaudio device IDs.
func (e *Engine) Devices() ([]capture.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos, err := e.deviceInfosLocked()
	if err != nil {
		return nil, err
	}
	devices := make([]capture.Device, 0, len(infos))
	for i := range infos {
		devices = append(devices, capture.Device{
			ID:        deviceID(&infos[i]),
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault != 0,
		})
	}
	return devices, nil
}

func (e *Engine) deviceInfosLocked() ([]malgo.DeviceInfo, error) {
	if err := e.ensureContext(); err != nil {
		return nil, err
	}
	infos, err := e.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, nativeError("devices", fmt.Errorf("failed to get devices: %w", err))
	}
	return infos, nil
}

// SelectDevice chooses the device with id. An open, idle device is
// recreated on the new input.
func (e *Engine) SelectDevice(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos, err := e.deviceInfosLocked()
	if err != nil {
		return err
	}
	for i := range infos {
		if deviceID(&infos[i]) != id {
			continue
		}
		if e.device != nil && e.device.IsStarted() {
			return nativeError("select_device", fmt.Errorf("cannot switch device while capturing"))
		}
		selected := infos[i].ID
		e.selected = &selected
		if e.device == nil {
			return nil
		}
		e.stopping.Store(true)
		e.device.Uninit()
		e.stopping.Store(false)
		e.device = nil
		return e.initDeviceLocked()
	}
	return nativeError("select_device", fmt.Errorf("capture device %q not found", id))
}

// CurrentDevice returns the selected device or the system default
func (e *Engine) CurrentDevice() (capture.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos, err := e.deviceInfosLocked()
	if err != nil {
		return capture.Device{}, err
	}
	for i := range infos {
		matches := infos[i].IsDefault != 0
		if e.selected != nil {
			matches = infos[i].ID == *e.selected
		}
		if matches {
			return capture.Device{
				ID:        deviceID(&infos[i]),
				Name:      infos[i].Name(),
				IsDefault: infos[i].IsDefault != 0,
			}, nil
		}
	}
	return capture.Device{}, nativeError("current_device", fmt.Errorf("no capture device available"))
}

// HasPermission is always true on desktop platforms; access is governed by
// the operating system when the device opens.
func (e *Engine) HasPermission() bool { return true }

// RequestPermission grants immediately, see HasPermission
func (e *Engine) RequestPermission(context.Context) (bool, error) { return true, nil }

// Xruns reports ring buffer overruns and short reads
func (e *Engine) Xruns() (overruns, underruns uint64) {
	return e.overruns.Load(), e.underruns.Load()
}

// deviceID decodes the hex device ID into its readable form, falling back
// to the raw hex string
func deviceID(info *malgo.DeviceInfo) string {
	raw := info.ID.String()
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return raw
	}
	return string(trimNUL(decoded))
}

func trimNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
