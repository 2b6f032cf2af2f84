// Package pcm converts between the PCM sample representations used by the
// streaming pipeline.
package pcm

import "math"

const s16Scale = 32768

// S16ToFloat32Into writes src normalized to [-1, 1) into dst and returns the
// amount of converted samples, which is min(len(dst), len(src)).
func S16ToFloat32Into(dst []float32, src []int16) int {
	n := min(len(dst), len(src))
	const scale = 1.0 / s16Scale
	for i := range n {
		dst[i] = float32(src[i]) * scale
	}
	return n
}

func S16ToFloat32(src []int16) []float32 {
	dst := make([]float32, len(src))
	S16ToFloat32Into(dst, src)
	return dst
}

// Float32ToS16 is the inverse of S16ToFloat32Into; out-of-range values are
// saturated.
func Float32ToS16(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		v := math.Round(float64(src[i]) * s16Scale)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		dst[i] = int16(v)
	}
	return n
}
