// Package vad decides whether a window of mono float32 audio contains speech.
package vad

import (
	"context"
	"io"

	"github.com/xaionaro-go/audio/pkg/audio"
)

type VAD interface {
	io.Closer

	Encoding(context.Context) (audio.Encoding, error)
	Channels(context.Context) (audio.Channel, error)

	// DetectVoice never mutates samples.
	DetectVoice(ctx context.Context, samples []float32) (bool, error)
}
