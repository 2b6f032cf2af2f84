// Package ringbuffer implements a fixed-capacity circular store of float32
// audio samples that keeps the most recent audio and overwrites the oldest.
//
// A RingBuffer is not safe for concurrent use; callers sharing one between
// a producer and a consumer must serialize access.
package ringbuffer

import (
	"time"
)

type RingBuffer struct {
	storage  []float32
	scratch  []float32
	writePos int
	filled   int
}

// New returns a zero-filled buffer of the given capacity in samples. A
// non-positive capacity yields a buffer that stores nothing.
func New(capacity int) *RingBuffer {
	return &RingBuffer{
		storage: make([]float32, max(capacity, 0)),
	}
}

// NewForDuration sizes the buffer to hold d of mono audio at sampleRate.
func NewForDuration(sampleRate uint32, d time.Duration) *RingBuffer {
	return New(int(uint64(sampleRate) * uint64(d) / uint64(time.Second)))
}

func (rb *RingBuffer) Capacity() int {
	return len(rb.storage)
}

// Size returns the amount of valid samples, which never exceeds Capacity.
func (rb *RingBuffer) Size() int {
	return rb.filled
}

// Add appends samples. If more than Capacity samples are given at once, only
// the last Capacity of them are retained.
func (rb *RingBuffer) Add(samples []float32) {
	c := len(rb.storage)
	if len(samples) == 0 || c == 0 {
		return
	}
	if len(samples) > c {
		samples = samples[len(samples)-c:]
	}

	firstPart := min(len(samples), c-rb.writePos)
	copy(rb.storage[rb.writePos:], samples[:firstPart])
	copy(rb.storage, samples[firstPart:])
	rb.commit(len(samples))
}

// Write lets the producer fill length samples in place and commits them
// once fill returns. When the region does not cross the physical end of the
// storage, dst aliases the storage directly; otherwise it is a scratch slice
// that is copied in with wraparound. dst is zeroed before fill is called and
// must not be retained after fill returns.
//
// Write reports false and leaves the buffer untouched if length is not in
// (0, Capacity].
func (rb *RingBuffer) Write(length int, fill func(dst []float32)) bool {
	c := len(rb.storage)
	if length <= 0 || length > c || fill == nil {
		return false
	}

	end := rb.writePos + length
	if end <= c {
		dst := rb.storage[rb.writePos:end:end]
		clear(dst)
		fill(dst)
		rb.commit(length)
		return true
	}

	if cap(rb.scratch) < length {
		rb.scratch = make([]float32, length)
	}
	dst := rb.scratch[:length:length]
	clear(dst)
	fill(dst)
	rb.Add(dst)
	return true
}

func (rb *RingBuffer) commit(length int) {
	c := len(rb.storage)
	rb.writePos = (rb.writePos + length) % c
	rb.filled = min(c, rb.filled+length)
}

// LastSamples returns the most recent n samples from oldest to newest. If
// fewer than n samples are available, the result starts with zeros. A
// non-positive n yields nil.
func (rb *RingBuffer) LastSamples(n int) []float32 {
	if n <= 0 {
		return nil
	}
	result := make([]float32, n)
	rb.LastSamplesInto(result)
	return result
}

// LastSamplesInto is LastSamples with a caller-provided window of len(dst).
func (rb *RingBuffer) LastSamplesInto(dst []float32) {
	n := len(dst)
	avail := min(n, rb.filled)
	pad := n - avail
	clear(dst[:pad])
	if avail == 0 {
		return
	}

	c := len(rb.storage)
	startPos := (rb.writePos - avail + c) % c
	firstPart := min(avail, c-startPos)
	copy(dst[pad:], rb.storage[startPos:startPos+firstPart])
	copy(dst[pad+firstPart:], rb.storage[:avail-firstPart])
}

// Clear zeroes the storage and forgets all samples.
func (rb *RingBuffer) Clear() {
	clear(rb.storage)
	rb.writePos = 0
	rb.filled = 0
}
