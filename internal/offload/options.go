package offload

import (
	"time"

	"github.com/tphakala/audiokit/internal/offload/cache"
	"github.com/tphakala/audiokit/internal/offload/perfmon"
	"github.com/tphakala/audiokit/internal/offload/pool"
	"github.com/tphakala/audiokit/internal/offload/schedule"
)

// Defaults for interactive use (equalizer-style parameter editing).
const (
	DefaultSampleRate    = 44100
	DefaultBufferSize    = 4096
	DefaultDebounceDelay = 8 * time.Millisecond
	DefaultThrottleLimit = 60.0 // calls per second
)

// Options configures a Processor
type Options struct {
	SampleRate      int           // used in cache keys and filter defaults
	WorkerEnabled   bool          // allow the offloaded strategy
	CacheEnabled    bool          // memoize ProcessAudio by buffer length and sample rate
	CacheTTL        time.Duration // entry lifetime
	CacheSize       int           // maximum cached results
	PoolSize        int           // free-list ceiling for scratch buffers
	BufferSize      int           // scratch buffer length for the local transform
	DebounceDelay   time.Duration // ProcessAudioDebounced quiet period
	ThrottleLimit   float64       // ProcessAudioThrottled calls per second
	BatchDelay      time.Duration // AddToBatch flush delay
	MonitorCapacity int           // samples kept per performance label
}

// DefaultOptions returns options with worker and cache enabled
func DefaultOptions() Options {
	return Options{
		SampleRate:      DefaultSampleRate,
		WorkerEnabled:   true,
		CacheEnabled:    true,
		CacheTTL:        cache.DefaultTTL,
		CacheSize:       cache.DefaultMaxSize,
		PoolSize:        pool.DefaultMaxSize,
		BufferSize:      DefaultBufferSize,
		DebounceDelay:   DefaultDebounceDelay,
		ThrottleLimit:   DefaultThrottleLimit,
		BatchDelay:      schedule.DefaultBatchDelay,
		MonitorCapacity: perfmon.DefaultCapacity,
	}
}

// withDefaults fills zero numeric fields. Booleans are taken as given.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = d.CacheTTL
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	if o.BufferSize <= 0 {
		o.BufferSize = d.BufferSize
	}
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = d.DebounceDelay
	}
	if o.ThrottleLimit <= 0 {
		o.ThrottleLimit = d.ThrottleLimit
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = d.BatchDelay
	}
	if o.MonitorCapacity <= 0 {
		o.MonitorCapacity = d.MonitorCapacity
	}
	return o
}

// Strategy is how one call is executed. It is chosen once when the call
// starts and never re-evaluated mid-flight.
type Strategy int

const (
	// StrategyLocal computes on the calling goroutine
	StrategyLocal Strategy = iota
	// StrategyOffloaded ships the buffer to the worker through the bridge
	StrategyOffloaded
)

func (s Strategy) String() string {
	switch s {
	case StrategyOffloaded:
		return "offloaded"
	case StrategyLocal:
		return "local"
	default:
		return "unknown"
	}
}
