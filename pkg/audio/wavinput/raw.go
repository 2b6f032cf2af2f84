package wavinput

import (
	"errors"
	"io"

	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
)

// RawReader reads headerless mono s16le PCM, e.g. from stdin or a recorder.
type RawReader struct {
	Reader io.Reader

	buf     []byte
	pending int
}

func NewRawReader(r io.Reader) *RawReader {
	return &RawReader{Reader: r}
}

// ReadS16 blocks until dst is full or the input ends; a trailing odd byte is
// dropped.
func (r *RawReader) ReadS16(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * 2
	if cap(r.buf) < want {
		buf := make([]byte, want)
		copy(buf, r.buf[:r.pending])
		r.buf = buf
	}
	r.buf = r.buf[:want]

	n, err := io.ReadFull(r.Reader, r.buf[r.pending:])
	n += r.pending
	r.pending = n % 2
	samples := n / 2
	copy(dst, pcm.BytesToInt16(r.buf[:samples*2]))
	if r.pending > 0 {
		r.buf[0] = r.buf[n-1]
	}

	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		if samples == 0 {
			return 0, io.EOF
		}
		return samples, nil
	default:
		return samples, err
	}
}
