// Package vadengine builds a vad.VAD by name.
package vadengine

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
)

type Kind string

const (
	KindUndefined = Kind("")
	KindEnergy    = Kind("energy")
	KindLibfvad   = Kind("libfvad")
	KindNone      = Kind("none")
)

func (k Kind) String() string {
	if k == KindUndefined {
		return string(KindEnergy)
	}
	return string(k)
}

// Set implements pflag.Value.
func (k *Kind) Set(value string) error {
	switch Kind(value) {
	case KindEnergy, KindLibfvad, KindNone:
		*k = Kind(value)
		return nil
	}
	return fmt.Errorf("unknown VAD kind '%s'; expected one of: %s, %s, %s", value, KindEnergy, KindLibfvad, KindNone)
}

// Type implements pflag.Value.
func (*Kind) Type() string {
	return "VADKind"
}

type Config struct {
	Kind   Kind
	Params vad.Params

	// LibfvadMode is the WebRTC aggressiveness, 0..3.
	LibfvadMode         int
	LibfvadMinVoiceTime time.Duration
}

func New(
	ctx context.Context,
	cfg Config,
) (vad.VAD, error) {
	logger.Debugf(ctx, "vadengine.New: %s", cfg.Kind)
	switch cfg.Kind {
	case KindUndefined, KindEnergy:
		return vad.NewEnergyRatio(cfg.Params), nil
	case KindLibfvad:
		return newLibfvad(ctx, cfg)
	case KindNone:
		return vad.NewDummy(cfg.Params.SampleRate), nil
	}
	return nil, ErrUnknownKind{Kind: cfg.Kind}
}

type ErrUnknownKind struct {
	Kind Kind
}

func (e ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown VAD kind '%s'", string(e.Kind))
}

type ErrNotCompiledIn struct {
	Kind Kind
}

func (e ErrNotCompiledIn) Error() string {
	return fmt.Sprintf("VAD '%s' is not compiled in", string(e.Kind))
}
