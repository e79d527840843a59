package offload

import (
	"context"

	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
)

// ProcessAudioDebounced schedules ProcessAudio after the debounce delay. A
// later call within the delay replaces this one, callback included, so only
// the last buffer of a burst is processed.
func (p *Processor) ProcessAudioDebounced(buf []float32, cb func(Result)) {
	p.debounce.Call(job{buf: buf, cb: cb})
}

// ProcessAudioThrottled runs ProcessAudio at most ThrottleLimit times per
// second. Calls inside the wait window collapse into the latest one.
func (p *Processor) ProcessAudioThrottled(buf []float32, cb func(Result)) {
	p.throttle.Call(job{buf: buf, cb: cb})
}

func (p *Processor) runJob(j job) {
	spec, err := p.ProcessAudio(p.ctx, j.buf)
	if j.cb != nil {
		j.cb(Result{Spectrum: spec, Err: err})
	}
}

// AddToBatch queues buf for bulk processing. The queue flushes by itself
// after the batch delay; results go to the WithBatchHandler callback.
func (p *Processor) AddToBatch(buf []float32) {
	p.batch.Add(buf)
}

// QueuedBuffers returns the number of buffers waiting in the batch queue
func (p *Processor) QueuedBuffers() int {
	return p.batch.Len()
}

// FlushBatch processes the queued buffers now and returns their spectra in
// queue order. An empty queue yields nil.
func (p *Processor) FlushBatch(ctx context.Context) ([][]float32, error) {
	bufs := p.batch.Drain()
	if len(bufs) == 0 {
		return nil, nil
	}
	return p.ProcessBatch(ctx, bufs)
}

// flushQueued is the timer-driven batch executor
func (p *Processor) flushQueued(bufs [][]float32) error {
	spectra, err := p.ProcessBatch(p.ctx, bufs)
	if p.onBatch != nil {
		p.onBatch(bufs, spectra, err)
	} else if err == nil {
		p.log.Debug("queued batch processed", logger.Int("buffers", len(bufs)))
	}
	return err
}

// errorType maps an error to a metrics label
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.Category)
	}
	return "unknown"
}
