// Package engine builds a speech.Transcriber by name.
package engine

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/implementations/dummy"
)

type Kind string

const (
	KindUndefined = Kind("")
	KindWhisper   = Kind("whisper")
	KindDummy     = Kind("dummy")
)

func (k Kind) String() string {
	if k == KindUndefined {
		return string(KindWhisper)
	}
	return string(k)
}

// Set implements pflag.Value.
func (k *Kind) Set(value string) error {
	switch Kind(value) {
	case KindWhisper, KindDummy:
		*k = Kind(value)
		return nil
	}
	return fmt.Errorf("unknown engine '%s'; expected one of: %s, %s", value, KindWhisper, KindDummy)
}

// Type implements pflag.Value.
func (*Kind) Type() string {
	return "EngineKind"
}

type Config struct {
	Kind Kind

	// ModelBytes takes precedence over ModelPath.
	ModelBytes []byte
	ModelPath  string

	// SamplingStrategy and AlignmentAheadsPreset are whisper names, e.g.
	// "greedy" and "none"; empty means the default.
	SamplingStrategy      string
	AlignmentAheadsPreset string

	GPUDeviceID *int
	FlashAttn   *bool

	SampleRate audio.SampleRate
}

func New(
	ctx context.Context,
	cfg Config,
) (speech.Transcriber, error) {
	logger.Debugf(ctx, "engine.New: %s", cfg.Kind)
	switch cfg.Kind {
	case KindUndefined, KindWhisper:
		return newWhisper(ctx, cfg)
	case KindDummy:
		return dummy.New(cfg.SampleRate), nil
	}
	return nil, ErrUnknownKind{Kind: cfg.Kind}
}

type ErrUnknownKind struct {
	Kind Kind
}

func (e ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown engine '%s'", string(e.Kind))
}

type ErrNotCompiledIn struct {
	Kind Kind
}

func (e ErrNotCompiledIn) Error() string {
	return fmt.Sprintf("engine '%s' is not compiled in", string(e.Kind))
}
