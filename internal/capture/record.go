package capture

import (
	"github.com/tphakala/audiokit/internal/logger"
)

// StartRecording opens path and writes every captured buffer into it until
// StopRecording, Stop or a limit from opts. It needs an initialized facade
// and returns false when a recording is already active.
func (c *Capture) StartRecording(path string, opts RecordingOptions) bool {
	c.mu.Lock()
	defer c.unlock()

	if !c.initialized {
		c.queueError(ErrNotInitialized)
		return false
	}

	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.rec != nil {
		c.log.Warn("recording already active", logger.String("path", c.rec.path))
		return false
	}

	rec, err := openRecording(path, c.Config(), opts)
	if err != nil {
		wrapped := recordingError(path, err)
		c.log.Error("failed to start recording", logger.Error(wrapped))
		c.recordRecording("failed")
		c.queueError(wrapped)
		return false
	}
	c.rec = rec
	c.lastRecording = nil
	if c.metrics != nil {
		c.metrics.SetRecordingActive(true)
	}
	c.log.Info("recording started",
		logger.String("path", path),
		logger.Duration("max_duration", opts.MaxDuration),
		logger.Int64("max_file_size", opts.MaxFileSize))
	return true
}

// StopRecording finalizes the active recording. A recording that already
// ended on a limit is reported once. It returns true when the file was
// written completely.
func (c *Capture) StopRecording() bool {
	res := c.stopRecording()
	return res != nil && res.err == nil
}

// stopRecording finalizes the active recording or collects one that ended
// on its own. It returns nil when there is nothing to report.
func (c *Capture) stopRecording() *recordingResult {
	c.recMu.Lock()
	var res *recordingResult
	if c.rec != nil {
		res = c.finishRecordingLocked(nil)
	} else {
		res = c.lastRecording
	}
	c.lastRecording = nil
	c.recMu.Unlock()

	if res != nil && res.err != nil {
		c.reportError(res.err)
	}
	return res
}

// PauseRecording stops writing captured buffers without closing the file
func (c *Capture) PauseRecording() bool {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.rec == nil {
		return false
	}
	c.rec.paused = true
	return true
}

// ResumeRecording continues a paused recording
func (c *Capture) ResumeRecording() bool {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.rec == nil {
		return false
	}
	c.rec.paused = false
	return true
}

// IsRecording reports whether a recording file is open
func (c *Capture) IsRecording() bool {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	return c.rec != nil
}

// RecordingInfo describes the active recording, nil when there is none
func (c *Capture) RecordingInfo() *RecordingInfo {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.rec == nil {
		return nil
	}
	return c.rec.info()
}

// writeRecording appends samples to the active recording
func (c *Capture) writeRecording(samples []float32) {
	c.recMu.Lock()
	if c.rec == nil {
		c.recMu.Unlock()
		return
	}
	limit, err := c.rec.write(samples)
	var res *recordingResult
	switch {
	case err != nil:
		res = c.finishRecordingLocked(recordingError(c.rec.path, err))
	case limit:
		c.log.Info("recording limit reached", logger.String("path", c.rec.path))
		res = c.finishRecordingLocked(nil)
	}
	c.recMu.Unlock()

	if res != nil && res.err != nil {
		c.reportError(res.err)
	}
}

// finishRecordingLocked closes the active recording and keeps its result
// for the next stopRecording. recMu must be held.
func (c *Capture) finishRecordingLocked(cause error) *recordingResult {
	rec := c.rec
	c.rec = nil

	res := &recordingResult{path: rec.path, err: cause}
	if err := rec.close(); err != nil && cause == nil {
		res.err = recordingError(rec.path, err)
	}
	c.lastRecording = res

	if c.metrics != nil {
		c.metrics.SetRecordingActive(false)
	}
	if res.err != nil {
		c.recordRecording("failed")
		c.log.Error("recording failed", logger.String("path", rec.path), logger.Error(res.err))
		return res
	}
	c.recordRecording("completed")
	c.log.Info("recording finished",
		logger.String("path", rec.path),
		logger.Int64("frames", rec.frames),
		logger.Duration("duration", rec.duration()))
	return res
}

func (c *Capture) recordRecording(status string) {
	if c.metrics != nil {
		c.metrics.RecordRecording(status)
	}
}
