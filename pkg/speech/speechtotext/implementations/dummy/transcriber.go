// Package dummy provides a speech.Transcriber that needs no model: it
// describes the window instead of recognizing it.
package dummy

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/audio/dsp"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
)

type Transcriber struct {
	SampleRate audio.SampleRate
}

var _ speech.Transcriber = (*Transcriber)(nil)

func New(sampleRate audio.SampleRate) *Transcriber {
	if sampleRate == 0 {
		sampleRate = pcm.DefaultSampleRate
	}
	return &Transcriber{SampleRate: sampleRate}
}

func (t *Transcriber) Transcribe(
	ctx context.Context,
	samples []float32,
	params speech.TranscribeParams,
) (*speech.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	duration := time.Duration(float64(len(samples)) * float64(time.Second) / float64(t.SampleRate))
	level := dsp.MeanAbs(samples)
	logger.Tracef(ctx, "dummy transcription of %v of audio, level %f", duration, level)
	return &speech.Transcript{
		Text:     speech.Text(fmt.Sprintf("%v of audio, mean level %.3f", duration, level)),
		Progress: 1,
		Language: params.Language,
		IsFinal:  true,
	}, nil
}

func (*Transcriber) Close() error {
	return nil
}
