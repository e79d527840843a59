package capture

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiokit/internal/dsp"
)

// Statistics are the running capture counters
type Statistics struct {
	FramesProcessed uint64        `json:"framesProcessed"`
	BytesProcessed  uint64        `json:"bytesProcessed"`
	AverageLevel    float64       `json:"averageLevel"`
	PeakLevel       float64       `json:"peakLevel"`
	Overruns        uint64        `json:"overruns"`
	Underruns       uint64        `json:"underruns"`
	Duration        time.Duration `json:"duration"`
}

// AudioAnalysis is one analysis snapshot
type AudioAnalysis struct {
	CurrentLevel    float64   `json:"currentLevel"`
	PeakLevel       float64   `json:"peakLevel"`
	AverageLevel    float64   `json:"averageLevel"`
	LevelDB         float64   `json:"levelDb"`
	Silent          bool      `json:"silent"`
	Clipping        bool      `json:"clipping"`
	FramesProcessed uint64    `json:"framesProcessed"`
	Timestamp       time.Time `json:"timestamp"`
}

// atomicFloat is a float64 stored as bits
type atomicFloat struct{ v atomic.Uint64 }

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.v.Load()) }
func (f *atomicFloat) Store(x float64) { f.v.Store(math.Float64bits(x)) }

// raise stores x when it exceeds the current value
func (f *atomicFloat) raise(x float64) {
	for {
		old := f.v.Load()
		if math.Float64frombits(old) >= x || f.v.CompareAndSwap(old, math.Float64bits(x)) {
			return
		}
	}
}

// meter holds the point-read levels and running statistics. Levels are
// atomics so metering reads never contend with the audio callback.
type meter struct {
	current atomicFloat
	peak    atomicFloat

	mu        sync.Mutex
	frames    uint64
	bytes     uint64
	levelSum  float64
	buffers   uint64
	maxPeak   float64
	startedAt time.Time
	elapsed   time.Duration
}

// observe records one converted buffer and returns its RMS and peak
func (m *meter) observe(samples []float32, frames, bytes int) (rms, peak float64) {
	rms = dsp.RMS(samples)
	peak = dsp.Peak(samples)
	m.current.Store(rms)
	m.peak.raise(peak)

	m.mu.Lock()
	m.frames += uint64(frames)
	m.bytes += uint64(bytes)
	m.levelSum += rms
	m.buffers++
	m.maxPeak = max(m.maxPeak, peak)
	m.mu.Unlock()
	return rms, peak
}

// resume marks the start of a capturing interval
func (m *meter) resume(now time.Time) {
	m.mu.Lock()
	if m.startedAt.IsZero() {
		m.startedAt = now
	}
	m.mu.Unlock()
}

// suspend closes the current capturing interval
func (m *meter) suspend(now time.Time) {
	m.mu.Lock()
	if !m.startedAt.IsZero() {
		m.elapsed += now.Sub(m.startedAt)
		m.startedAt = time.Time{}
	}
	m.mu.Unlock()
}

func (m *meter) statistics(now time.Time) Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Statistics{
		FramesProcessed: m.frames,
		BytesProcessed:  m.bytes,
		PeakLevel:       m.maxPeak,
		Duration:        m.elapsed,
	}
	if m.buffers > 0 {
		s.AverageLevel = m.levelSum / float64(m.buffers)
	}
	if !m.startedAt.IsZero() {
		s.Duration += now.Sub(m.startedAt)
	}
	return s
}

func (m *meter) framesProcessed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// resetStatistics clears the counters but keeps an open capturing interval open
func (m *meter) resetStatistics(now time.Time) {
	m.mu.Lock()
	running := !m.startedAt.IsZero()
	m.frames, m.bytes, m.levelSum, m.buffers, m.maxPeak = 0, 0, 0, 0, 0
	m.elapsed = 0
	m.startedAt = time.Time{}
	if running {
		m.startedAt = now
	}
	m.mu.Unlock()
}

// reset clears levels and statistics
func (m *meter) reset() {
	m.current.Store(0)
	m.peak.Store(0)
	m.resetStatistics(time.Time{})
}
