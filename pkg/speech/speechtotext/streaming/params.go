package streaming

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
)

const (
	DefaultBufferSize = 5000 * time.Millisecond
	DefaultStepSize   = 500 * time.Millisecond
	DefaultThreads    = 1
)

// Params configures a streaming session.
type Params struct {
	// BufferSize is the length of the audio window handed to the VAD and
	// to the engine; it is also the capacity of the session history.
	BufferSize time.Duration

	// StepSize is the interval between processing passes.
	StepSize time.Duration

	Threads   uint
	Translate bool
	Language  speech.Language

	UseVAD                bool
	VADThreshold          float32
	VADFrequencyThreshold float32

	SampleRate audio.SampleRate
}

func DefaultParams() Params {
	return Params{
		BufferSize:            DefaultBufferSize,
		StepSize:              DefaultStepSize,
		Threads:               DefaultThreads,
		Translate:             false,
		Language:              speech.LanguageAuto,
		UseVAD:                true,
		VADThreshold:          vad.DefaultThreshold,
		VADFrequencyThreshold: vad.DefaultFrequencyThreshold,
		SampleRate:            pcm.DefaultSampleRate,
	}
}

func (p Params) Validate() error {
	var mErr *multierror.Error
	if p.SampleRate <= 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "sample_rate", Reason: "must be positive"})
	}
	if p.BufferSize <= 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "buffer_ms", Reason: "must be positive"})
	} else if p.SampleRate > 0 && p.WindowSamples() == 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "buffer_ms", Reason: "shorter than one sample"})
	}
	if p.StepSize <= 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "step_ms", Reason: "must be positive"})
	}
	if p.Threads == 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "threads", Reason: "must be at least 1"})
	}
	if p.VADThreshold < 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "vad_threshold", Reason: "must not be negative"})
	}
	if p.VADFrequencyThreshold < 0 {
		mErr = multierror.Append(mErr, ErrInvalidParams{Field: "vad_frequency_threshold", Reason: "must not be negative"})
	}
	return mErr.ErrorOrNil()
}

// WindowSamples is BufferSize expressed in samples at SampleRate.
func (p Params) WindowSamples() int {
	return int(uint64(p.SampleRate) * uint64(p.BufferSize) / uint64(time.Second))
}

func (p Params) StepSamples() int {
	return int(uint64(p.SampleRate) * uint64(p.StepSize) / uint64(time.Second))
}

func (p Params) VADParams() vad.Params {
	return vad.Params{
		Threshold:          p.VADThreshold,
		FrequencyThreshold: p.VADFrequencyThreshold,
		SampleRate:         p.SampleRate,
		RecentWindow:       vad.DefaultRecentWindow,
	}
}

func (p Params) TranscribeParams() speech.TranscribeParams {
	return speech.TranscribeParams{
		Language:  p.Language,
		Translate: p.Translate,
		Threads:   p.Threads,
	}
}

func (p Params) SamplesDuration(n uint64) time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) * float64(time.Second) / float64(p.SampleRate))
}

func (p Params) String() string {
	return fmt.Sprintf(
		"buffer:%v step:%v threads:%d translate:%t language:'%s' vad:%t/%.2f/%.0fHz rate:%d",
		p.BufferSize, p.StepSize, p.Threads, p.Translate, p.Language,
		p.UseVAD, p.VADThreshold, p.VADFrequencyThreshold, uint64(p.SampleRate),
	)
}
