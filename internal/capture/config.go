package capture

import (
	"fmt"
	"time"

	"github.com/tphakala/audiokit/internal/errors"
)

// Defaults applied by Initialize for fields left at their zero value
const (
	DefaultSampleRate       = 44100
	DefaultChannels         = 1
	DefaultBitsPerSample    = 16
	DefaultBufferSizeFrames = 1024
	DefaultNumBuffers       = 3
	DefaultAnalysisInterval = 100 * time.Millisecond
	DefaultSilenceThreshold = 0.001
)

const (
	minSampleRate    = 8000
	maxSampleRate    = 192000
	maxChannels      = 2
	maxBufferFrames  = 16384
	maxNumBuffers    = 32
	recordingDirMode = 0o755
)

// FormatWAV is the only recording container this package writes
const FormatWAV = "wav"

// Config holds the capture engine configuration. The switches are pointers
// so a partial Config passed to Initialize or UpdateConfig leaves unset
// switches at their current value.
type Config struct {
	SampleRate       int    `json:"sampleRate"`
	Channels         int    `json:"channels"`
	BitsPerSample    int    `json:"bitsPerSample"`
	BufferSizeFrames int    `json:"bufferSizeFrames"`
	NumBuffers       int    `json:"numBuffers"`
	DeviceID         string `json:"deviceId,omitempty"`

	EnableEchoCancellation  *bool `json:"enableEchoCancellation,omitempty"`
	EnableNoiseSuppression  *bool `json:"enableNoiseSuppression,omitempty"`
	EnableAutoGainControl   *bool `json:"enableAutoGainControl,omitempty"`
	RequestPermissionOnInit *bool `json:"requestPermissionOnInit,omitempty"`

	AnalysisInterval time.Duration `json:"analysisInterval"`
	SilenceThreshold float64       `json:"silenceThreshold"`
}

// DefaultConfig returns the configuration used when Initialize gets nil
func DefaultConfig() Config {
	return Config{
		SampleRate:              DefaultSampleRate,
		Channels:                DefaultChannels,
		BitsPerSample:           DefaultBitsPerSample,
		BufferSizeFrames:        DefaultBufferSizeFrames,
		NumBuffers:              DefaultNumBuffers,
		EnableEchoCancellation:  Bool(false),
		EnableNoiseSuppression:  Bool(false),
		EnableAutoGainControl:   Bool(false),
		RequestPermissionOnInit: Bool(true),
		AnalysisInterval:        DefaultAnalysisInterval,
		SilenceThreshold:        DefaultSilenceThreshold,
	}
}

// Bool returns a pointer to v for the optional switches of Config
func Bool(v bool) *bool {
	return &v
}

// EchoCancellation reports whether echo cancellation is requested
func (c Config) EchoCancellation() bool { return isSet(c.EnableEchoCancellation) }

// NoiseSuppression reports whether noise suppression is requested
func (c Config) NoiseSuppression() bool { return isSet(c.EnableNoiseSuppression) }

// AutoGainControl reports whether automatic gain control is requested
func (c Config) AutoGainControl() bool { return isSet(c.EnableAutoGainControl) }

// PermissionOnInit reports whether Initialize asks for microphone permission
func (c Config) PermissionOnInit() bool { return isSet(c.RequestPermissionOnInit) }

func isSet(p *bool) bool { return p != nil && *p }

// mergeBool copies a supplied switch so the result never aliases override
func mergeBool(base, override *bool) *bool {
	if override == nil {
		return base
	}
	return Bool(*override)
}

// Merge returns base with every non-zero numeric or string field and every
// non-nil switch of override applied. A nil override returns base unchanged.
func (base Config) Merge(override *Config) Config {
	if override == nil {
		return base
	}
	out := base
	if override.SampleRate != 0 {
		out.SampleRate = override.SampleRate
	}
	if override.Channels != 0 {
		out.Channels = override.Channels
	}
	if override.BitsPerSample != 0 {
		out.BitsPerSample = override.BitsPerSample
	}
	if override.BufferSizeFrames != 0 {
		out.BufferSizeFrames = override.BufferSizeFrames
	}
	if override.NumBuffers != 0 {
		out.NumBuffers = override.NumBuffers
	}
	if override.DeviceID != "" {
		out.DeviceID = override.DeviceID
	}
	if override.AnalysisInterval != 0 {
		out.AnalysisInterval = override.AnalysisInterval
	}
	if override.SilenceThreshold != 0 {
		out.SilenceThreshold = override.SilenceThreshold
	}
	out.EnableEchoCancellation = mergeBool(base.EnableEchoCancellation, override.EnableEchoCancellation)
	out.EnableNoiseSuppression = mergeBool(base.EnableNoiseSuppression, override.EnableNoiseSuppression)
	out.EnableAutoGainControl = mergeBool(base.EnableAutoGainControl, override.EnableAutoGainControl)
	out.RequestPermissionOnInit = mergeBool(base.RequestPermissionOnInit, override.RequestPermissionOnInit)
	return out
}

// Validate checks the configuration against what the engine supports
func (c Config) Validate() error {
	var problem string
	switch {
	case c.SampleRate < minSampleRate || c.SampleRate > maxSampleRate:
		problem = fmt.Sprintf("sample rate %d outside [%d, %d]", c.SampleRate, minSampleRate, maxSampleRate)
	case c.Channels < 1 || c.Channels > maxChannels:
		problem = fmt.Sprintf("channel count %d outside [1, %d]", c.Channels, maxChannels)
	case c.BitsPerSample != 16 && c.BitsPerSample != 32:
		problem = fmt.Sprintf("unsupported bit depth %d", c.BitsPerSample)
	case c.BufferSizeFrames < 1 || c.BufferSizeFrames > maxBufferFrames:
		problem = fmt.Sprintf("buffer size %d outside [1, %d]", c.BufferSizeFrames, maxBufferFrames)
	case c.NumBuffers < 1 || c.NumBuffers > maxNumBuffers:
		problem = fmt.Sprintf("buffer count %d outside [1, %d]", c.NumBuffers, maxNumBuffers)
	case c.AnalysisInterval < 0:
		problem = "negative analysis interval"
	case c.SilenceThreshold < 0 || c.SilenceThreshold > 1:
		problem = fmt.Sprintf("silence threshold %g outside [0, 1]", c.SilenceThreshold)
	default:
		return nil
	}
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidConfig, problem)).
		Component(ComponentCapture).
		Category(errors.CategoryValidation).
		Build()
}

// FrameBytes is the size of one interleaved frame in bytes
func (c Config) FrameBytes() int {
	return c.Channels * c.BitsPerSample / 8
}

// RecordingOptions controls a file recording
type RecordingOptions struct {
	// Format is the container, only "wav" is supported
	Format string
	// MaxDuration stops the recording automatically, zero means unlimited
	MaxDuration time.Duration
	// MaxFileSize stops the recording once this many sample bytes were written
	MaxFileSize int64
}

// RecordingInfo describes the active recording
type RecordingInfo struct {
	Path       string        `json:"path"`
	Format     string        `json:"format"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Frames     int64         `json:"frames"`
	Bytes      int64         `json:"bytes"`
	Recording  bool          `json:"recording"`
	Paused     bool          `json:"paused"`
	StartedAt  time.Time     `json:"startedAt"`
}
