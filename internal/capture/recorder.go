package capture

import (
	"context"
	"fmt"

	"github.com/tphakala/audiokit/internal/errors"
)

// Recorder records the capture stream to files. It makes sure capture is
// initialized and running before a recording begins.
type Recorder struct {
	capture *Capture
}

// NewRecorder returns a Recorder over c
func NewRecorder(c *Capture) *Recorder {
	return &Recorder{capture: c}
}

// Start initializes and starts capture as needed, then records to path
func (r *Recorder) Start(ctx context.Context, path string, opts RecordingOptions) error {
	c := r.capture
	if !c.IsInitialized() {
		cfg := c.Config()
		if err := c.Initialize(ctx, &cfg); err != nil {
			return err
		}
	}
	if !c.IsCapturing() && !c.Start() {
		return ErrNotCapturing
	}
	if !c.StartRecording(path, opts) {
		return errors.New(fmt.Errorf("%w: recording to %s did not start", ErrRecording, path)).
			Component(ComponentCapture).
			Category(errors.CategoryRecording).
			Context("path", path).
			Build()
	}
	return nil
}

// Stop finalizes the recording and returns its path. The path is only
// returned when the file was written successfully.
func (r *Recorder) Stop() (string, bool) {
	res := r.capture.stopRecording()
	if res == nil || res.err != nil {
		return "", false
	}
	return res.path, true
}

// Pause suspends writing to the file
func (r *Recorder) Pause() bool { return r.capture.PauseRecording() }

// Resume continues writing to the file
func (r *Recorder) Resume() bool { return r.capture.ResumeRecording() }

// IsRecording reports whether a file is open
func (r *Recorder) IsRecording() bool { return r.capture.IsRecording() }

// Info describes the active recording, nil when idle
func (r *Recorder) Info() *RecordingInfo { return r.capture.RecordingInfo() }
