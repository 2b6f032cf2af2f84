//go:build !cgo || no_whisper || windows
// +build !cgo no_whisper windows

package engine

import (
	"context"

	"github.com/xaionaro-go/whisperstream/pkg/speech"
)

func newWhisper(
	context.Context,
	Config,
) (speech.Transcriber, error) {
	return nil, ErrNotCompiledIn{Kind: KindWhisper}
}
