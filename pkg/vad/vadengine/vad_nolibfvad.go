//go:build !cgo || no_libfvad || windows
// +build !cgo no_libfvad windows

package vadengine

import (
	"context"

	"github.com/xaionaro-go/whisperstream/pkg/vad"
)

func newLibfvad(
	context.Context,
	Config,
) (vad.VAD, error) {
	return nil, ErrNotCompiledIn{Kind: KindLibfvad}
}
