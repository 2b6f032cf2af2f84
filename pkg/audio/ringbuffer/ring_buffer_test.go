package ringbuffer

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

// lastOf is the non-circular reference: the last n values of history,
// zero-padded at the front.
func lastOf(history []float32, n int) []float32 {
	out := make([]float32, n)
	avail := min(n, len(history))
	copy(out[n-avail:], history[len(history)-avail:])
	return out
}

func assertInvariants(t *testing.T, rb *RingBuffer) {
	t.Helper()
	require.GreaterOrEqual(t, rb.writePos, 0)
	require.Less(t, rb.writePos, rb.Capacity())
	require.GreaterOrEqual(t, rb.filled, 0)
	require.LessOrEqual(t, rb.filled, rb.Capacity())
}

func TestNew(t *testing.T) {
	rb := New(8)
	assert.Equal(t, 8, rb.Capacity())
	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, make([]float32, 8), rb.storage)

	rb = NewForDuration(16000, 500*time.Millisecond)
	assert.Equal(t, 8000, rb.Capacity())
}

func TestNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -5} {
		rb := New(capacity)
		assert.Equal(t, 0, rb.Capacity())
		rb.Add([]float32{1, 2})
		assert.False(t, rb.Write(1, func([]float32) {}))
		assert.Equal(t, 0, rb.Size())
		assert.Equal(t, []float32{0, 0, 0}, rb.LastSamples(3))
	}
}

func TestAdd(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		rb := New(10)
		rb.Add(seq(1, 4))
		assert.Equal(t, 4, rb.Size())
		assert.Equal(t, 4, rb.writePos)
		assert.Equal(t, seq(1, 4), rb.LastSamples(4))
		assertInvariants(t, rb)
	})

	t.Run("empty is a no-op", func(t *testing.T) {
		rb := New(10)
		rb.Add(nil)
		rb.Add([]float32{})
		assert.Equal(t, 0, rb.Size())
		assert.Equal(t, 0, rb.writePos)
	})

	t.Run("wraps mid-write", func(t *testing.T) {
		rb := New(5)
		rb.Add(seq(1, 3))
		rb.Add(seq(4, 4))
		assert.Equal(t, 5, rb.Size())
		assert.Equal(t, 2, rb.writePos)
		assert.Equal(t, seq(3, 5), rb.LastSamples(5))
		assertInvariants(t, rb)
	})

	t.Run("longer than capacity keeps the tail", func(t *testing.T) {
		rb := New(6)
		rb.Add(seq(0, 2))
		in := seq(100, 20)
		rb.Add(in)
		assert.Equal(t, 6, rb.Size())
		assert.Equal(t, in[len(in)-6:], rb.LastSamples(6))
		assertInvariants(t, rb)
	})

	t.Run("exactly capacity", func(t *testing.T) {
		rb := New(4)
		rb.Add(seq(0, 3))
		rb.Add(seq(10, 4))
		assert.Equal(t, seq(10, 4), rb.LastSamples(4))
		assert.Equal(t, 3, rb.writePos)
	})
}

func TestLastSamples(t *testing.T) {
	t.Run("zero padding", func(t *testing.T) {
		rb := New(10)
		rb.Add([]float32{1, 2, 3})
		assert.Equal(t, []float32{0, 0, 0, 0, 1, 2, 3}, rb.LastSamples(7))
	})

	t.Run("more than capacity", func(t *testing.T) {
		rb := New(3)
		rb.Add(seq(1, 5))
		assert.Equal(t, []float32{0, 0, 3, 4, 5}, rb.LastSamples(5))
	})

	t.Run("partial window", func(t *testing.T) {
		rb := New(4)
		rb.Add(seq(1, 6))
		assert.Equal(t, []float32{5, 6}, rb.LastSamples(2))
	})

	t.Run("non-positive", func(t *testing.T) {
		rb := New(4)
		rb.Add(seq(1, 2))
		assert.Nil(t, rb.LastSamples(0))
		assert.Nil(t, rb.LastSamples(-1))
	})

	t.Run("does not mutate", func(t *testing.T) {
		rb := New(4)
		rb.Add(seq(1, 6))
		before := append([]float32(nil), rb.storage...)
		pos, filled := rb.writePos, rb.filled
		_ = rb.LastSamples(4)
		out := rb.LastSamples(4)
		out[0] = 42
		assert.Equal(t, before, rb.storage)
		assert.Equal(t, pos, rb.writePos)
		assert.Equal(t, filled, rb.filled)
	})

	t.Run("into reused window", func(t *testing.T) {
		rb := New(4)
		dst := []float32{9, 9, 9}
		rb.Add([]float32{1})
		rb.LastSamplesInto(dst)
		assert.Equal(t, []float32{0, 0, 1}, dst)
	})
}

func TestWrite(t *testing.T) {
	t.Run("contiguous region aliases storage", func(t *testing.T) {
		rb := New(8)
		rb.Add(seq(1, 2))
		ok := rb.Write(3, func(dst []float32) {
			require.Len(t, dst, 3)
			require.Equal(t, 3, cap(dst))
			assert.Same(t, &rb.storage[2], &dst[0])
			copy(dst, []float32{7, 8, 9})
		})
		require.True(t, ok)
		assert.Equal(t, 5, rb.Size())
		assert.Equal(t, 5, rb.writePos)
		assert.Equal(t, []float32{1, 2, 7, 8, 9}, rb.LastSamples(5))
	})

	t.Run("wrapping region is copied in", func(t *testing.T) {
		rb := New(5)
		rb.Add(seq(1, 4))
		ok := rb.Write(3, func(dst []float32) {
			copy(dst, []float32{10, 11, 12})
		})
		require.True(t, ok)
		assert.Equal(t, 2, rb.writePos)
		assert.Equal(t, []float32{3, 4, 10, 11, 12}, rb.LastSamples(5))
		assertInvariants(t, rb)
	})

	t.Run("unavailable", func(t *testing.T) {
		rb := New(4)
		rb.Add(seq(1, 2))
		called := false
		fill := func([]float32) { called = true }
		assert.False(t, rb.Write(0, fill))
		assert.False(t, rb.Write(-3, fill))
		assert.False(t, rb.Write(5, fill))
		assert.False(t, rb.Write(2, nil))
		assert.False(t, called)
		assert.Equal(t, 2, rb.Size())
		assert.Equal(t, 2, rb.writePos)
	})

	t.Run("dst is zeroed", func(t *testing.T) {
		rb := New(3)
		rb.Add(seq(1, 3))
		rb.Write(2, func(dst []float32) {
			assert.Equal(t, []float32{0, 0}, dst)
		})
		assert.Equal(t, []float32{3, 0, 0}, rb.LastSamples(3))
	})
}

func TestClear(t *testing.T) {
	rb := New(5)
	rb.Add(seq(1, 7))
	rb.Clear()
	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, 0, rb.writePos)
	assert.Equal(t, make([]float32, 5), rb.storage)
	assert.Equal(t, make([]float32, 5), rb.LastSamples(5))

	rb.Add([]float32{1})
	assert.Equal(t, []float32{0, 1}, rb.LastSamples(2))
}

func TestMatchesReferenceSimulation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, capacity := range []int{1, 2, 7, 64, 1000} {
		rb := New(capacity)
		var history []float32
		next := 1
		for step := 0; step < 500; step++ {
			length := rng.IntN(2*capacity + 2)
			chunk := seq(next, length)
			next += length

			if rng.IntN(2) == 0 {
				rb.Add(chunk)
				history = append(history, chunk...)
			} else {
				ok := rb.Write(length, func(dst []float32) {
					copy(dst, chunk)
				})
				if ok {
					history = append(history, chunk...)
				} else {
					require.True(t, length == 0 || length > capacity)
				}
			}
			assertInvariants(t, rb)
			require.Equal(t, min(len(history), capacity), rb.Size())

			n := rng.IntN(2*capacity) + 1
			require.Equal(t, lastOf(history, n), rb.LastSamples(n), "capacity %d step %d", capacity, step)
		}
		require.Equal(t, lastOf(history, capacity), rb.LastSamples(capacity))
	}
}
