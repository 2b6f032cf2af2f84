// Package dsp contains the time-domain signal conditioning used before
// voice activity analysis.
package dsp

import "math"

// HighPassInPlace applies a single-pole RC high-pass filter to data.
//
// The first sample is left as is and seeds the filter state, so an initial
// DC offset is preserved in data[0]. The recursion reads data[i-1] after it
// was overwritten, so the previous term is the previous output. The call
// keeps no state between invocations. Non-positive cutoffHz or sampleRateHz
// leave data untouched.
func HighPassInPlace(data []float32, cutoffHz, sampleRateHz float32) {
	if len(data) == 0 || !(cutoffHz > 0) || !(sampleRateHz > 0) {
		return
	}
	rc := 1 / (2 * math.Pi * float64(cutoffHz))
	dt := 1 / float64(sampleRateHz)
	alpha := float32(dt / (rc + dt))

	y := data[0]
	for i := 1; i < len(data); i++ {
		y = alpha * (y + data[i] - data[i-1])
		data[i] = y
	}
}
