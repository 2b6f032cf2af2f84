//go:build cgo && !no_libfvad && !windows
// +build cgo,!no_libfvad,!windows

package vadengine

import (
	"context"

	"github.com/xaionaro-go/whisperstream/pkg/vad"
	"github.com/xaionaro-go/whisperstream/pkg/vad/implementations/libfvad"
)

func newLibfvad(
	_ context.Context,
	cfg Config,
) (vad.VAD, error) {
	return libfvad.NewVAD(cfg.Params.SampleRate, cfg.LibfvadMode, cfg.LibfvadMinVoiceTime)
}
