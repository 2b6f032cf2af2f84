package dsp

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, freq, sampleRate float64, amplitude float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func TestHighPassInPlace(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		in := sine(2048, 440, 16000, 0.7)
		for i := range in {
			in[i] += 0.2
		}
		a := slices.Clone(in)
		b := slices.Clone(in)
		HighPassInPlace(a, 100, 16000)
		HighPassInPlace(b, 100, 16000)
		require.Equal(t, a, b)
		require.NotEqual(t, in, a)
	})

	t.Run("first sample is kept", func(t *testing.T) {
		data := []float32{0.5, 0.5, 0.5}
		HighPassInPlace(data, 100, 16000)
		assert.Equal(t, float32(0.5), data[0])
	})

	t.Run("difference equation", func(t *testing.T) {
		in := []float32{0.1, 0.4, -0.3, 0.2, 0.0}
		data := slices.Clone(in)
		HighPassInPlace(data, 100, 16000)

		want := slices.Clone(in)
		rc := 1 / (2 * math.Pi * 100.0)
		dt := 1 / 16000.0
		alpha := float32(dt / (rc + dt))
		y := want[0]
		for i := 1; i < len(want); i++ {
			y = alpha * (y + want[i] - want[i-1])
			want[i] = y
		}
		for i := range want {
			assert.InDelta(t, want[i], data[i], 1e-6, "sample %d", i)
		}
	})

	t.Run("constant input", func(t *testing.T) {
		data := []float32{1, 1, 1, 1}
		HighPassInPlace(data, 100, 16000)

		rc := 1 / (2 * math.Pi * 100.0)
		dt := 1 / 16000.0
		alpha := float32(dt / (rc + dt))
		assert.Equal(t, float32(1), data[0])
		for i := 1; i < len(data); i++ {
			assert.InDelta(t, alpha, data[i], 1e-6, "sample %d", i)
		}
	})

	t.Run("each output after the first is the scaled input", func(t *testing.T) {
		in := sine(256, 440, 16000, 0.7)
		data := slices.Clone(in)
		HighPassInPlace(data, 100, 16000)

		rc := 1 / (2 * math.Pi * 100.0)
		dt := 1 / 16000.0
		alpha := float32(dt / (rc + dt))
		for i := 1; i < len(in); i++ {
			assert.InDelta(t, alpha*in[i], data[i], 1e-6, "sample %d", i)
		}
	})

	t.Run("invalid parameters are ignored", func(t *testing.T) {
		data := []float32{1, 2, 3}
		HighPassInPlace(data, 0, 16000)
		HighPassInPlace(data, 100, 0)
		HighPassInPlace(data, -1, 16000)
		assert.Equal(t, []float32{1, 2, 3}, data)
		HighPassInPlace(nil, 100, 16000)
	})
}

func TestMeanAbs(t *testing.T) {
	assert.Equal(t, float32(0), MeanAbs(nil))
	assert.InDelta(t, 0.5, MeanAbs([]float32{-1, 1, 0, 0}), 1e-7)
}
