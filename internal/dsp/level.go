package dsp

import (
	"encoding/binary"
	"math"
)

const (
	// SilenceDB is reported for a zero level
	SilenceDB = -100.0
	// ClipThreshold is the absolute sample value treated as clipping
	ClipThreshold = 0.99
)

// RMS returns the root mean square of samples, 0 for an empty slice
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// WindowedRMS returns one RMS per window of size samples. The last window
// may be short. A non-positive window uses the whole buffer.
func WindowedRMS(samples []float32, window int) []float64 {
	if len(samples) == 0 {
		return []float64{0}
	}
	if window <= 0 || window >= len(samples) {
		return []float64{RMS(samples)}
	}
	out := make([]float64, 0, (len(samples)+window-1)/window)
	for start := 0; start < len(samples); start += window {
		end := min(start+window, len(samples))
		out = append(out, RMS(samples[start:end]))
	}
	return out
}

// Peak returns the largest absolute sample value
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		peak = max(peak, math.Abs(float64(s)))
	}
	return peak
}

// ToDB converts a linear level to decibels, SilenceDB for non-positive levels
func ToDB(level float64) float64 {
	if level <= 0 {
		return SilenceDB
	}
	return max(20*math.Log10(level), SilenceDB)
}

// IsClipping reports whether any sample reaches ClipThreshold
func IsClipping(samples []float32) bool {
	for _, s := range samples {
		if math.Abs(float64(s)) >= ClipThreshold {
			return true
		}
	}
	return false
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM into dst, which must
// hold len(pcm)/2 samples. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte, dst []float32) int {
	n := min(len(pcm)/2, len(dst))
	for i := range n {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		dst[i] = float32(s) / 32768.0
	}
	return n
}

// PCMFloat32ToFloat32 converts little-endian IEEE 754 float PCM into dst.
// Trailing bytes that do not form a whole sample are ignored.
func PCMFloat32ToFloat32(pcm []byte, dst []float32) int {
	n := min(len(pcm)/4, len(dst))
	for i := range n {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[4*i:]))
	}
	return n
}
