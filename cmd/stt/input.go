package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	_ "github.com/xaionaro-go/audio/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/audio/wavinput"
)

type s16Source interface {
	ReadS16(dst []int16) (int, error)
}

type input struct {
	Source s16Source

	// IsFile is true for sources that can be read faster than real time.
	IsFile bool

	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

func (in *input) Close() error {
	in.closeOnce.Do(func() {
		if in.closer != nil {
			in.closeErr = in.closer.Close()
		}
	})
	return in.closeErr
}

type closerFunc func() error

func (fn closerFunc) Close() error {
	return fn()
}

// openInput opens a WAV file, raw s16le from stdin ("-") or the default
// microphone (""), all resulting in mono audio at sampleRate.
func openInput(
	ctx context.Context,
	path string,
	sampleRate audio.SampleRate,
) (*input, error) {
	switch path {
	case "":
		r, w := io.Pipe()
		recorder := audio.NewRecorderAuto(ctx)
		logger.Infof(ctx, "using %T as the audio input", recorder.RecorderPCM)
		stream, err := recorder.RecordPCM(ctx, sampleRate, pcm.Channels, audio.PCMFormatS16LE, w)
		if err != nil {
			return nil, fmt.Errorf("unable to start recording: %w", err)
		}
		return &input{
			Source: wavinput.NewRawReader(r),
			closer: closerFunc(func() error {
				err := stream.Close()
				w.Close()
				return err
			}),
		}, nil
	case "-":
		return &input{
			Source: wavinput.NewRawReader(os.Stdin),
			closer: os.Stdin,
		}, nil
	}

	f, err := wavinput.Open(path)
	if err != nil {
		return nil, err
	}
	if f.SampleRate != sampleRate {
		f.Close()
		return nil, fmt.Errorf("the sample rate of '%s' is %d Hz, but %d Hz is expected; resample the file or use --sample-rate", path, f.SampleRate, sampleRate)
	}
	logger.Debugf(ctx, "'%s': %d Hz, %d channels, %d bits", path, f.SampleRate, f.Channels, f.BitDepth)
	return &input{
		Source: f,
		IsFile: true,
		closer: f,
	}, nil
}
