package speech

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/xaionaro-go/audio/pkg/audio"
)

type Text string

func (t Text) ContainsAlphaNum() bool {
	return strings.ContainsFunc(string(t), func(r rune) bool {
		if r == '-' {
			return false
		}
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	})
}

// Transcript is a single result of a streaming pass over the audio window.
type Transcript struct {
	Text Text

	// Progress is 0 when the window was rejected as silence and 1 when the
	// engine processed it.
	Progress float32

	Language            Language
	NoSpeechProbability float32
	HasVoice            bool
	IsFinal             bool

	// WindowEnd is the position of the last sample of the window relative
	// to the start of the stream.
	WindowEnd time.Duration
}

type TranscribeParams struct {
	Language  Language
	Translate bool
	Threads   uint
}

// Transcriber is an inference engine turning a window of mono float32
// samples into text.
type Transcriber interface {
	io.Closer
	Transcribe(ctx context.Context, samples []float32, params TranscribeParams) (*Transcript, error)
}

type ToText interface {
	io.Closer
	AudioEncoding(context.Context) (audio.Encoding, error)
	AudioChannels(context.Context) (audio.Channel, error)
	WriteAudio(context.Context, []byte) error
	OutputChan(context.Context) (<-chan *Transcript, error)
}
