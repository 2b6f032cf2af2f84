//go:build cgo && !no_whisper && !windows
// +build cgo,!no_whisper,!windows

package engine

import (
	"context"

	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/implementations/whisper"
)

func newWhisper(
	ctx context.Context,
	cfg Config,
) (speech.Transcriber, error) {
	var opts whisper.Options
	if cfg.SamplingStrategy != "" {
		var ss whisper.SamplingStrategy
		if err := ss.Set(cfg.SamplingStrategy); err != nil {
			return nil, err
		}
		opts = append(opts, whisper.OptionSamplingStrategy(ss))
	}
	if cfg.AlignmentAheadsPreset != "" {
		preset, err := whisper.ParseAlignmentAheadsPreset(cfg.AlignmentAheadsPreset)
		if err != nil {
			return nil, err
		}
		opts = append(opts, whisper.OptionAlignmentAheadsPreset(preset))
	}
	if cfg.GPUDeviceID != nil {
		if *cfg.GPUDeviceID >= 0 {
			opts = append(opts, whisper.OptionUseGPU(true), whisper.OptionGPUDeviceID(*cfg.GPUDeviceID))
		} else {
			opts = append(opts, whisper.OptionUseGPU(false))
		}
	}
	if cfg.FlashAttn != nil {
		opts = append(opts, whisper.OptionFlashAttn(*cfg.FlashAttn))
	}

	if cfg.ModelBytes != nil {
		return whisper.New(ctx, cfg.ModelBytes, opts...)
	}
	return whisper.NewFromFile(ctx, cfg.ModelPath, opts...)
}
