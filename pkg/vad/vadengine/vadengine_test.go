package vadengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	v, err := New(ctx, Config{Params: vad.DefaultParams()})
	require.NoError(t, err)
	assert.IsType(t, &vad.EnergyRatio{}, v)

	v, err = New(ctx, Config{Kind: KindNone, Params: vad.DefaultParams()})
	require.NoError(t, err)
	assert.IsType(t, &vad.Dummy{}, v)

	_, err = New(ctx, Config{Kind: "neural"})
	require.ErrorAs(t, err, &ErrUnknownKind{})
}

func TestKindFlag(t *testing.T) {
	var k Kind
	assert.Equal(t, "energy", k.String())
	require.NoError(t, k.Set("libfvad"))
	assert.Equal(t, KindLibfvad, k)
	assert.Error(t, k.Set("silero"))
	assert.Equal(t, KindLibfvad, k)
}
