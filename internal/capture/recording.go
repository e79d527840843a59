package capture

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recording streams captured samples into a WAV file
type recording struct {
	path       string
	opts       RecordingOptions
	file       *os.File
	enc        *wav.Encoder
	buf        *audio.IntBuffer
	scale      float64
	sampleRate int
	channels   int
	bytesPer   int

	startedAt time.Time
	frames    int64
	bytes     int64
	paused    bool
}

// openRecording creates path and writes the WAV header for cfg
func openRecording(path string, cfg Config, opts RecordingOptions) (*recording, error) {
	if opts.Format == "" {
		opts.Format = FormatWAV
	}
	if !strings.EqualFold(opts.Format, FormatWAV) {
		return nil, fmt.Errorf("unsupported recording format %q", opts.Format)
	}
	if path == "" {
		return nil, fmt.Errorf("empty recording path")
	}

	if err := os.MkdirAll(filepath.Dir(path), recordingDirMode); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &recording{
		path:       path,
		opts:       opts,
		file:       f,
		enc:        wav.NewEncoder(f, cfg.SampleRate, cfg.BitsPerSample, cfg.Channels, 1),
		buf:        &audio.IntBuffer{Format: &audio.Format{SampleRate: cfg.SampleRate, NumChannels: cfg.Channels}, SourceBitDepth: cfg.BitsPerSample},
		scale:      math.Exp2(float64(cfg.BitsPerSample-1)) - 1,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		bytesPer:   cfg.BitsPerSample / 8,
		startedAt:  time.Now(),
	}, nil
}

// write appends interleaved samples. It reports whether a size or duration
// limit has been reached.
func (r *recording) write(samples []float32) (bool, error) {
	if r.paused || len(samples) == 0 {
		return false, nil
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.buf.Data[i] = int(math.Round(v * r.scale))
	}
	if err := r.enc.Write(r.buf); err != nil {
		return false, fmt.Errorf("failed to write to WAV encoder: %w", err)
	}

	r.frames += int64(len(samples) / r.channels)
	r.bytes += int64(len(samples) * r.bytesPer)
	return r.limitReached(), nil
}

func (r *recording) limitReached() bool {
	if r.opts.MaxDuration > 0 && r.duration() >= r.opts.MaxDuration {
		return true
	}
	return r.opts.MaxFileSize > 0 && r.bytes >= r.opts.MaxFileSize
}

// duration is the amount of audio written, pauses excluded
func (r *recording) duration() time.Duration {
	return time.Duration(r.frames) * time.Second / time.Duration(r.sampleRate)
}

func (r *recording) info() *RecordingInfo {
	return &RecordingInfo{
		Path:       r.path,
		Format:     strings.ToLower(r.opts.Format),
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		Duration:   r.duration(),
		Frames:     r.frames,
		Bytes:      r.bytes,
		Recording:  true,
		Paused:     r.paused,
		StartedAt:  r.startedAt,
	}
}

// close finalizes the WAV header and closes the file
func (r *recording) close() error {
	encErr := r.enc.Close()
	fileErr := r.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", encErr)
	}
	return fileErr
}
