package dsp

import (
	"math"
	"math/bits"
)

// NextPow2 returns the smallest power of two >= n (1 for n <= 1)
func NextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// FFT transforms data in place. len(data) must be a power of two.
func FFT(data []complex128) {
	n := len(data)
	if n <= 1 {
		return
	}

	// bit-reverse permutation
	for i, j := 0, 0; i < n; i++ {
		if j > i {
			data[i], data[j] = data[j], data[i]
		}
		bit := n >> 1
		for j&bit != 0 {
			j ^= bit
			bit >>= 1
		}
		j ^= bit
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		for i := 0; i < n; i += size {
			for k := range half {
				angle := step * float64(k)
				v := data[i+k+half] * complex(math.Cos(angle), math.Sin(angle))
				u := data[i+k]
				data[i+k] = u + v
				data[i+k+half] = u - v
			}
		}
	}
}

// Spectrum returns the magnitudes of bins 0..N/2 of samples, zero-padded to
// the next power of two and scaled by 1/N. An empty input yields nil.
func Spectrum(samples []float32) []float32 {
	return SpectrumWith(samples, nil)
}

// SpectrumWith is Spectrum using work as FFT scratch space when its capacity
// suffices. work is overwritten.
func SpectrumWith(samples []float32, work []complex128) []float32 {
	if len(samples) == 0 {
		return nil
	}
	n := NextPow2(len(samples))
	var buf []complex128
	if cap(work) >= n {
		buf = work[:n]
	} else {
		buf = make([]complex128, n)
	}
	for i, s := range samples {
		buf[i] = complex(float64(s), 0)
	}
	clear(buf[len(samples):])
	FFT(buf)

	mags := make([]float32, n/2+1)
	scale := 1.0 / float64(n)
	for i := range mags {
		re, im := real(buf[i]), imag(buf[i])
		mags[i] = float32(math.Sqrt(re*re+im*im) * scale)
	}
	return mags
}
