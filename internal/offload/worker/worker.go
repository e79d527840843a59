// Package worker is the execution context behind the offload bridge. It reads
// requests from a bridge.Stream, computes them off the caller's goroutine and
// answers each by ID. Requests run concurrently, so answers may be reordered.
package worker

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiokit/internal/dsp"
	"github.com/tphakala/audiokit/internal/errors"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/offload/bridge"
)

const componentWorker = "offload-worker"

// GetLogger returns the worker logger
func GetLogger() logger.Logger {
	return logger.Global().Module("offload").Module("worker")
}

// Option configures a Worker
type Option func(*Worker)

// WithName sets the identity reported by ping
func WithName(name string) Option {
	return func(w *Worker) { w.name = name }
}

// WithConcurrency bounds the number of requests computed at once
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithLogger overrides the worker logger
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// Worker computes offloaded requests
type Worker struct {
	name        string
	concurrency int
	log         logger.Logger
}

// New creates a worker
func New(opts ...Option) *Worker {
	w := &Worker{
		name:        "local",
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = GetLogger()
	}
	return w
}

// Serve announces readiness on s and answers requests until the stream
// closes or ctx is cancelled. A closed stream is a clean shutdown.
func (w *Worker) Serve(ctx context.Context, s *bridge.Stream) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if err := s.WriteResponse(bridge.Response{Kind: bridge.RespReady}); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}
	w.log.Debug("worker ready", logger.String("worker", w.name), logger.Int("concurrency", w.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for {
		req, err := s.ReadRequest()
		if err != nil {
			werr := g.Wait()
			if isClosed(werr) {
				// the client went away with answers in flight
				werr = nil
			}
			if isClosed(err) || ctx.Err() != nil {
				return werr
			}
			return errors.Join(fmt.Errorf("read request: %w", err), werr)
		}

		g.Go(func() error {
			return s.WriteResponse(w.Handle(gctx, req))
		})
	}
}

func isClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe)
}

// Handle computes one request. Failures, including panics, become error
// responses for that request only.
func (w *Worker) Handle(ctx context.Context, req bridge.Request) (resp bridge.Response) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf("%s handler panicked: %v", req.Kind, r).
				Component(componentWorker).
				Category(errors.CategoryWorker).
				Context("request_id", req.ID).
				Context("stack", string(debug.Stack())).
				Build()
			w.log.Error("request panicked", logger.Error(err), logger.Uint64("request_id", req.ID))
			resp = bridge.NewErrorResponse(req.ID, err)
		}
	}()

	payload, err := bridge.DecodePayload(req)
	if err != nil {
		w.log.Warn("rejecting request", logger.Error(err), logger.Uint64("request_id", req.ID))
		return bridge.NewErrorResponse(req.ID, err)
	}

	result, err := w.compute(ctx, payload)
	if err != nil {
		return bridge.NewErrorResponse(req.ID, err)
	}

	resp, err = bridge.NewResultResponse(req.ID, result)
	if err != nil {
		return bridge.NewErrorResponse(req.ID, err)
	}
	return resp
}

func (w *Worker) compute(ctx context.Context, payload bridge.Payload) (any, error) {
	switch p := payload.(type) {
	case *bridge.SpectrumRequest:
		return bridge.SpectrumResult{Magnitudes: dsp.Spectrum(p.Samples)}, nil

	case *bridge.RMSRequest:
		return bridge.RMSResult{Values: dsp.WindowedRMS(p.Samples, p.WindowSize)}, nil

	case *bridge.FilterRequest:
		out, err := dsp.Filter(dsp.FilterType(p.Filter.Kind), float64(p.Filter.SampleRate),
			p.Filter.Frequency, p.Filter.Q, p.Filter.GainDB, p.Samples)
		if err != nil {
			return nil, errors.New(err).
				Component(componentWorker).
				Category(errors.CategoryValidation).
				Context("filter", string(p.Filter.Kind)).
				Build()
		}
		return bridge.FilterResult{Samples: out}, nil

	case *bridge.BatchRequest:
		return w.batch(ctx, p)

	case *bridge.PingRequest:
		return bridge.PingResult{Worker: w.name}, nil

	default:
		return nil, errors.Newf("no handler for %s", payload.Kind()).
			Component(componentWorker).
			Category(errors.CategoryWorker).
			Build()
	}
}

// batch computes the spectra of all buffers in parallel, keeping request order
func (w *Worker) batch(ctx context.Context, p *bridge.BatchRequest) (bridge.BatchResult, error) {
	spectra := make([][]float32, len(p.Buffers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, buf := range p.Buffers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			spectra[i] = dsp.Spectrum(buf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return bridge.BatchResult{}, err
	}
	return bridge.BatchResult{Spectra: spectra}, nil
}
