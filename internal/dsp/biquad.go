// Package dsp holds the signal math shared by the offload worker, the local
// fallback path and the capture meter: RBJ cookbook biquads, a radix-2 FFT
// and level helpers.
package dsp

import (
	"fmt"
	"math"
)

// FilterType names a biquad response
type FilterType string

// FilterType constants match the wire names used by the offload protocol.
const (
	LowPass  FilterType = "lowpass"
	HighPass FilterType = "highpass"
	BandPass FilterType = "bandpass"
	Notch    FilterType = "notch"
	Peaking  FilterType = "peaking"
)

// DefaultQ is the Butterworth Q used when none is given
const DefaultQ = 0.7071

// Biquad is a second order IIR section in direct form I.
// Coefficients are normalized by a0 at construction.
type Biquad struct {
	kind FilterType

	b0, b1, b2, a1, a2 float64

	x1, x2, y1, y2 float64
}

// NewBiquad builds a filter from the audio EQ cookbook formulas.
//
// gainDB is only used by Peaking. q <= 0 falls back to DefaultQ.
func NewBiquad(kind FilterType, sampleRate, frequency, q, gainDB float64) (*Biquad, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	if frequency <= 0 || frequency >= sampleRate/2 {
		return nil, fmt.Errorf("frequency %v Hz outside (0, %v)", frequency, sampleRate/2)
	}
	if q <= 0 {
		q = DefaultQ
	}

	w0 := 2.0 * math.Pi * frequency / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * q)

	var a0, a1, a2, b0, b1, b2 float64
	switch kind {
	case LowPass:
		a0, a1, a2 = 1.0+alpha, -2.0*cosW0, 1.0-alpha
		b0, b1, b2 = (1.0-cosW0)/2.0, 1.0-cosW0, (1.0-cosW0)/2.0
	case HighPass:
		a0, a1, a2 = 1.0+alpha, -2.0*cosW0, 1.0-alpha
		b0, b1, b2 = (1.0+cosW0)/2.0, -(1.0 + cosW0), (1.0+cosW0)/2.0
	case BandPass:
		// constant 0 dB peak gain
		a0, a1, a2 = 1.0+alpha, -2.0*cosW0, 1.0-alpha
		b0, b1, b2 = alpha, 0.0, -alpha
	case Notch:
		a0, a1, a2 = 1.0+alpha, -2.0*cosW0, 1.0-alpha
		b0, b1, b2 = 1.0, -2.0*cosW0, 1.0
	case Peaking:
		a := math.Pow(10.0, gainDB/40.0)
		a0, a1, a2 = 1.0+alpha/a, -2.0*cosW0, 1.0-alpha/a
		b0, b1, b2 = 1.0+alpha*a, -2.0*cosW0, 1.0-alpha*a
	default:
		return nil, fmt.Errorf("unknown filter type %q", kind)
	}

	return &Biquad{
		kind: kind,
		b0:   b0 / a0,
		b1:   b1 / a0,
		b2:   b2 / a0,
		a1:   a1 / a0,
		a2:   a2 / a0,
	}, nil
}

// Type returns the filter response
func (f *Biquad) Type() FilterType {
	return f.kind
}

// Reset clears the delay line
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// Process filters in into out, which may alias in. State carries over
// between calls so consecutive buffers filter as one stream.
func (f *Biquad) Process(in, out []float32) {
	for i, s := range in {
		x := float64(s)
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2

		f.x2 = f.x1
		f.x1 = x
		f.y2 = f.y1
		f.y1 = y

		out[i] = float32(y)
	}
}

// Filter returns a filtered copy of samples using a fresh filter state
func Filter(kind FilterType, sampleRate, frequency, q, gainDB float64, samples []float32) ([]float32, error) {
	f, err := NewBiquad(kind, sampleRate, frequency, q, gainDB)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(samples))
	f.Process(samples, out)
	return out, nil
}
