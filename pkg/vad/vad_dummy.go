package vad

import (
	"context"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
)

// Dummy reports voice for every non-empty window.
type Dummy struct {
	SampleRate audio.SampleRate
}

var _ VAD = (*Dummy)(nil)

func NewDummy(sampleRate audio.SampleRate) *Dummy {
	return &Dummy{
		SampleRate: sampleRate,
	}
}

func (vad *Dummy) Close() error {
	return nil
}

func (vad *Dummy) Encoding(context.Context) (audio.Encoding, error) {
	return pcm.EncodingFloat32(vad.SampleRate), nil
}

func (vad *Dummy) Channels(context.Context) (audio.Channel, error) {
	return pcm.Channels, nil
}

func (vad *Dummy) DetectVoice(_ context.Context, samples []float32) (bool, error) {
	return len(samples) > 0, nil
}
