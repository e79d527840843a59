package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
)

// fakeEngine records the facade's calls and lets tests drive callbacks
type fakeEngine struct {
	mu sync.Mutex

	permission   bool
	grant        bool
	permErr      error
	permRequests int

	openErr, startErr, stopErr, pauseErr error

	opens, starts, stops, pauses, resumes, closes int

	cfg     Config
	cb      Callbacks
	devices []Device
	current string

	overruns, underruns uint64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		permission: true,
		devices: []Device{
			{ID: "default", Name: "Built-in Microphone", IsDefault: true},
			{ID: "usb-1", Name: "USB Audio"},
		},
		current: "default",
	}
}

func (e *fakeEngine) Open(cfg Config, cb Callbacks) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openErr != nil {
		return e.openErr
	}
	e.opens++
	e.cfg = cfg
	e.cb = cb
	return nil
}

func (e *fakeEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.starts++
	return nil
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopErr != nil {
		return e.stopErr
	}
	e.stops++
	return nil
}

func (e *fakeEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pauseErr != nil {
		return e.pauseErr
	}
	e.pauses++
	return nil
}

func (e *fakeEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumes++
	return nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closes++
	return nil
}

func (e *fakeEngine) Devices() ([]Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Device(nil), e.devices...), nil
}

func (e *fakeEngine) SelectDevice(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.devices {
		if d.ID == id {
			e.current = id
			return nil
		}
	}
	return fmt.Errorf("device %q not found", id)
}

func (e *fakeEngine) CurrentDevice() (Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.devices {
		if d.ID == e.current {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("device %q not found", e.current)
}

func (e *fakeEngine) HasPermission() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.permission
}

func (e *fakeEngine) RequestPermission(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.permRequests++
	if e.permErr != nil {
		return false, e.permErr
	}
	e.permission = e.grant
	return e.grant, nil
}

func (e *fakeEngine) Xruns() (overruns, underruns uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overruns, e.underruns
}

func (e *fakeEngine) callbacks() Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cb
}

// emit delivers one mono 16-bit buffer through the Frames callback
func (e *fakeEngine) emit(samples ...int16) {
	pcm := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}
	e.callbacks().Frames(pcm, len(samples))
}

// emitConstant delivers frames samples of value v
func (e *fakeEngine) emitConstant(v int16, frames int) {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = v
	}
	e.emit(samples...)
}

func (e *fakeEngine) counts() (opens, starts, stops, closes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opens, e.starts, e.stops, e.closes
}
