package dummy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
)

func TestTranscriber(t *testing.T) {
	ctx := context.Background()
	tr := New(0)
	assert.EqualValues(t, 16000, tr.SampleRate)

	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = 0.5
	}
	result, err := tr.Transcribe(ctx, samples, speech.TranscribeParams{Language: speech.LanguageRussian})
	require.NoError(t, err)
	assert.Equal(t, speech.Text("500ms of audio, mean level 0.500"), result.Text)
	assert.Equal(t, float32(1), result.Progress)
	assert.Equal(t, speech.LanguageRussian, result.Language)
	require.NoError(t, tr.Close())

	canceledCtx, cancelFn := context.WithCancel(ctx)
	cancelFn()
	_, err = tr.Transcribe(canceledCtx, samples, speech.TranscribeParams{})
	require.ErrorIs(t, err, context.Canceled)
}
