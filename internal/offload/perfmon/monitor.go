// Package perfmon keeps a rolling window of timings per label and derives
// summary statistics on demand.
package perfmon

import (
	"slices"
	"sync"
	"time"
)

// DefaultCapacity is the number of samples retained per label
const DefaultCapacity = 100

// Stats summarises the samples currently held for a label
type Stats struct {
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
	Count int           `json:"count"`
}

// StopFunc ends a measurement started with StartMeasure and returns the elapsed time
type StopFunc func() time.Duration

// ring is a fixed-length sample buffer; next is the slot written next
type ring struct {
	samples []time.Duration
	next    int
	full    bool
}

func (r *ring) add(d time.Duration) {
	r.samples[r.next] = d
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) values() []time.Duration {
	if r.full {
		return slices.Clone(r.samples)
	}
	return slices.Clone(r.samples[:r.next])
}

// Monitor collects duration samples per label
type Monitor struct {
	mu       sync.Mutex
	rings    map[string]*ring
	capacity int
	now      func() time.Time
}

// New creates a Monitor keeping capacity samples per label
func New(capacity int) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Monitor{
		rings:    make(map[string]*ring),
		capacity: capacity,
		now:      time.Now,
	}
}

// StartMeasure captures the start time; calling the returned func records the elapsed time
func (m *Monitor) StartMeasure(label string) StopFunc {
	start := m.now()
	return func() time.Duration {
		elapsed := m.now().Sub(start)
		m.RecordMeasurement(label, elapsed)
		return elapsed
	}
}

// RecordMeasurement appends d to label's ring, overwriting the oldest sample when full
func (m *Monitor) RecordMeasurement(label string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rings[label]
	if !ok {
		r = &ring{samples: make([]time.Duration, m.capacity)}
		m.rings[label] = r
	}
	r.add(d)
}

// GetStats computes statistics for label. ok is false when there are no samples.
func (m *Monitor) GetStats(label string) (Stats, bool) {
	m.mu.Lock()
	r, ok := m.rings[label]
	var values []time.Duration
	if ok {
		values = r.values()
	}
	m.mu.Unlock()

	if len(values) == 0 {
		return Stats{}, false
	}
	return computeStats(values), true
}

// AllStats returns statistics for every label holding samples
func (m *Monitor) AllStats() map[string]Stats {
	m.mu.Lock()
	snapshot := make(map[string][]time.Duration, len(m.rings))
	for label, r := range m.rings {
		snapshot[label] = r.values()
	}
	m.mu.Unlock()

	out := make(map[string]Stats, len(snapshot))
	for label, values := range snapshot {
		if len(values) > 0 {
			out[label] = computeStats(values)
		}
	}
	return out
}

// Clear drops the samples of the given labels, or of every label when none are given
func (m *Monitor) Clear(labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(labels) == 0 {
		clear(m.rings)
		return
	}
	for _, label := range labels {
		delete(m.rings, label)
	}
}

// computeStats sorts values in place
func computeStats(values []time.Duration) Stats {
	slices.Sort(values)

	var sum time.Duration
	for _, v := range values {
		sum += v
	}
	n := len(values)
	p95 := min(n*95/100, n-1)

	return Stats{
		Avg:   sum / time.Duration(n),
		Min:   values[0],
		Max:   values[n-1],
		P95:   values[p95],
		Count: n,
	}
}
