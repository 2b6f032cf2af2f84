// Package wavinput reads WAV files as mono signed 16-bit PCM.
package wavinput

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/audio/pkg/audio"
)

type Reader struct {
	Decoder    *wav.Decoder
	SampleRate audio.SampleRate
	Channels   int
	BitDepth   int

	buf *goaudio.IntBuffer
}

func NewReader(r io.ReadSeeker) (*Reader, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile{Err: dec.Err()}
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, ErrUnsupportedFormat{BitDepth: int(dec.BitDepth), AudioFormat: int(dec.WavAudioFormat)}
	}
	if dec.WavAudioFormat != 1 {
		return nil, ErrUnsupportedFormat{BitDepth: int(dec.BitDepth), AudioFormat: int(dec.WavAudioFormat)}
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("unable to find the PCM chunk: %w", err)
	}
	return &Reader{
		Decoder:    dec,
		SampleRate: audio.SampleRate(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}

// ReadS16 fills dst with mono samples, averaging the channels, and returns
// io.EOF once the data chunk is exhausted.
func (r *Reader) ReadS16(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * r.Channels
	if r.buf == nil || cap(r.buf.Data) < want {
		r.buf = &goaudio.IntBuffer{
			Data: make([]int, want),
			Format: &goaudio.Format{
				NumChannels: r.Channels,
				SampleRate:  int(r.SampleRate),
			},
			SourceBitDepth: r.BitDepth,
		}
	}
	r.buf.Data = r.buf.Data[:want]

	n, err := r.Decoder.PCMBuffer(r.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("unable to read PCM data: %w", err)
	}
	frames := n / r.Channels
	if frames == 0 {
		return 0, io.EOF
	}

	shift := r.BitDepth - 16
	for i := range frames {
		var sum int
		for ch := range r.Channels {
			sum += r.buf.Data[i*r.Channels+ch]
		}
		v := sum / r.Channels
		switch {
		case r.BitDepth == 8:
			// 8-bit WAV is unsigned
			v = (v - 128) << 8
		case shift > 0:
			v >>= shift
		}
		dst[i] = int16(v)
	}
	return frames, nil
}

// ReadAllS16 reads the rest of the file.
func (r *Reader) ReadAllS16() ([]int16, error) {
	var result []int16
	chunk := make([]int16, int(r.SampleRate))
	for {
		n, err := r.ReadS16(chunk)
		result = append(result, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, err
		}
	}
}

type File struct {
	*Reader
	file *os.File
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to read '%s' as WAV: %w", path, err)
	}
	return &File{Reader: r, file: f}, nil
}

func (f *File) Close() error {
	return f.file.Close()
}

type ErrInvalidFile struct {
	Err error
}

func (e ErrInvalidFile) Error() string {
	if e.Err == nil {
		return "not a valid WAV file"
	}
	return fmt.Sprintf("not a valid WAV file: %v", e.Err)
}

type ErrUnsupportedFormat struct {
	BitDepth    int
	AudioFormat int
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported WAV format: audio format %d, %d bits; only integer PCM is supported", e.AudioFormat, e.BitDepth)
}
