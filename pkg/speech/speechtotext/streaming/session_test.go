package streaming

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeTranscriber struct {
	locker  sync.Mutex
	windows [][]float32
	params  []speech.TranscribeParams
	err     error
}

var _ speech.Transcriber = (*fakeTranscriber)(nil)

func (f *fakeTranscriber) Transcribe(
	_ context.Context,
	samples []float32,
	params speech.TranscribeParams,
) (*speech.Transcript, error) {
	f.locker.Lock()
	defer f.locker.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.windows = append(f.windows, slices.Clone(samples))
	f.params = append(f.params, params)
	return &speech.Transcript{
		Text:     "hello",
		Progress: 1,
		IsFinal:  true,
	}, nil
}

func (f *fakeTranscriber) Close() error {
	return nil
}

func (f *fakeTranscriber) calls() int {
	f.locker.Lock()
	defer f.locker.Unlock()
	return len(f.windows)
}

func (f *fakeTranscriber) lastWindow() []float32 {
	f.locker.Lock()
	defer f.locker.Unlock()
	return f.windows[len(f.windows)-1]
}

func testParams() Params {
	p := DefaultParams()
	p.BufferSize = time.Second
	p.StepSize = 5 * time.Millisecond
	p.VADFrequencyThreshold = 0
	return p
}

func testMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

// speechThenPause is 1s at 16kHz: 0.5s of tone followed by 0.5s of silence.
func speechThenPause() []float32 {
	samples := make([]float32, 16000)
	for i := range 8000 {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return samples
}

// pauseThenSpeech is 1s at 16kHz: 0.5s of silence followed by 0.5s of tone.
func pauseThenSpeech() []float32 {
	samples := make([]float32, 16000)
	for i := 8000; i < len(samples); i++ {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return samples
}

func receive(t *testing.T, ch <-chan *speech.Transcript) *speech.Transcript {
	t.Helper()
	select {
	case tr, ok := <-ch:
		require.True(t, ok, "the channel is closed")
		return tr
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout waiting for a transcript")
	}
	return nil
}

func TestSessionVoiceIsTranscribed(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	s, err := New(ctx, engine,
		OptionParams(testParams()),
		OptionLanguage(speech.LanguageEnglishUS),
		OptionTranslate(true),
		OptionThreads(4),
	)
	require.NoError(t, err)
	defer s.Close()
	ch := s.OutputChanNoErr()

	require.NoError(t, s.WriteSamples(ctx, speechThenPause()))

	tr := receive(t, ch)
	assert.Equal(t, speech.Text("hello"), tr.Text)
	assert.Equal(t, float32(1), tr.Progress)
	assert.True(t, tr.HasVoice)
	assert.Equal(t, speech.LanguageEnglishUS, tr.Language)
	assert.Equal(t, time.Second, tr.WindowEnd)

	require.Equal(t, 1, engine.calls())
	assert.Equal(t, speechThenPause(), engine.lastWindow())
	assert.Equal(t, speech.TranscribeParams{
		Language:  speech.LanguageEnglishUS,
		Translate: true,
		Threads:   4,
	}, engine.params[0])
}

func TestSessionSilenceIsReportedEmpty(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	s, err := New(ctx, engine, OptionParams(testParams()))
	require.NoError(t, err)
	defer s.Close()
	ch := s.OutputChanNoErr()

	require.NoError(t, s.WriteSamples(ctx, pauseThenSpeech()))

	tr := receive(t, ch)
	assert.Empty(t, tr.Text)
	assert.Equal(t, float32(0), tr.Progress)
	assert.False(t, tr.HasVoice)
	assert.Equal(t, 0, engine.calls())
}

func TestSessionWithoutVAD(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	s, err := New(ctx, engine, OptionParams(testParams()), OptionUseVAD(false))
	require.NoError(t, err)
	defer s.Close()
	ch := s.OutputChanNoErr()

	require.NoError(t, s.WriteSamples(ctx, pauseThenSpeech()))
	tr := receive(t, ch)
	assert.Equal(t, float32(1), tr.Progress)
	assert.Equal(t, 1, engine.calls())
}

func TestSessionProcessesOnlyNewAudio(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	s, err := New(ctx, engine, OptionParams(testParams()), OptionUseVAD(false))
	require.NoError(t, err)
	defer s.Close()
	ch := s.OutputChanNoErr()

	require.NoError(t, s.WriteSamples(ctx, []float32{0.25, 0.5}))
	receive(t, ch)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, engine.calls())

	window := engine.lastWindow()
	require.Len(t, window, 16000)
	assert.Equal(t, []float32{0.25, 0.5}, window[len(window)-2:])
	assert.Equal(t, make([]float32, 16000-2), window[:len(window)-2])

	require.NoError(t, s.WriteSamples(ctx, []float32{1}))
	receive(t, ch)
	assert.Equal(t, 2, engine.calls())
	assert.Equal(t, []float32{0.25, 0.5, 1}, engine.lastWindow()[16000-3:])
}

func TestSessionWriteS16(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	s, err := New(ctx, engine, OptionParams(testParams()), OptionUseVAD(false))
	require.NoError(t, err)
	defer s.Close()
	ch := s.OutputChanNoErr()

	in := make([]int16, 20000)
	for i := range in {
		in[i] = int16(i % 1000)
	}
	require.NoError(t, s.WriteS16(ctx, in))
	tr := receive(t, ch)
	assert.Equal(t, 1250*time.Millisecond, tr.WindowEnd)

	window := engine.lastWindow()
	require.Len(t, window, 16000)
	for i, v := range window {
		require.Equal(t, float32(in[4000+i])/32768, v, "sample %d", i)
	}
}

func TestSessionWriteFunc(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	s, err := New(ctx, engine, OptionParams(testParams()), OptionUseVAD(false))
	require.NoError(t, err)
	defer s.Close()
	ch := s.OutputChanNoErr()

	ok, err := s.WriteFunc(ctx, 0, func([]float32) {})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.WriteFunc(ctx, 16001, func([]float32) {})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.WriteFunc(ctx, 3, func(dst []float32) {
		copy(dst, []float32{0.1, 0.2, 0.3})
	})
	require.NoError(t, err)
	require.True(t, ok)

	receive(t, ch)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, engine.lastWindow()[16000-3:])
}

func TestSessionCallbackStop(t *testing.T) {
	ctx := context.Background()
	engine := &fakeTranscriber{}
	var (
		locker  sync.Mutex
		results []*speech.Transcript
	)
	s, err := New(ctx, engine,
		OptionParams(testParams()),
		OptionCallback(func(_ context.Context, tr *speech.Transcript) bool {
			locker.Lock()
			defer locker.Unlock()
			results = append(results, tr)
			return true
		}),
	)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteSamples(ctx, speechThenPause()))

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "the session did not stop")
	}

	locker.Lock()
	require.Len(t, results, 1)
	assert.Equal(t, speech.Text("hello"), results[0].Text)
	locker.Unlock()

	_, ok := <-s.OutputChanNoErr()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
	assert.ErrorAs(t, s.WriteSamples(ctx, []float32{1}), &ErrSessionClosed{})
}

func TestSessionCloseFromCallback(t *testing.T) {
	ctx := context.Background()
	var s *Session
	var ready sync.WaitGroup
	ready.Add(1)
	closeReturned := make(chan error, 1)
	s, err := New(ctx, &fakeTranscriber{},
		OptionParams(testParams()),
		OptionCallback(func(context.Context, *speech.Transcript) bool {
			ready.Wait()
			closeReturned <- s.Close()
			return false
		}),
	)
	require.NoError(t, err)
	ready.Done()
	defer s.Close()

	require.NoError(t, s.WriteSamples(ctx, speechThenPause()))

	select {
	case err := <-closeReturned:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Close from the callback did not return")
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "the session did not stop")
	}
	assert.NoError(t, s.Close())
}

func TestSessionTranscriberError(t *testing.T) {
	ctx := context.Background()
	engineErr := errors.New("model exploded")
	engine := &fakeTranscriber{err: engineErr}
	s, err := New(ctx, engine, OptionParams(testParams()), OptionUseVAD(false))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteSamples(ctx, []float32{1, 2, 3}))
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "the session did not stop")
	}

	require.ErrorIs(t, s.Err(), engineErr)
	err = s.WriteAudio(ctx, make([]byte, 8))
	require.ErrorIs(t, err, engineErr)
}

func TestSessionWriteAudio(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, &fakeTranscriber{}, OptionParams(testParams()), OptionStepSize(time.Hour))
	require.NoError(t, err)
	defer s.Close()

	require.Error(t, s.WriteAudio(ctx, make([]byte, 7)))
	require.NoError(t, s.WriteAudio(ctx, make([]byte, 8)))

	enc := s.AudioEncodingNoErr()
	assert.EqualValues(t, 16000, enc.SampleRate)
	ch, err := s.AudioChannels(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ch)
}

func TestSessionClose(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, &fakeTranscriber{}, OptionParams(testParams()))
	require.NoError(t, err)
	ch := s.OutputChanNoErr()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorAs(t, s.WriteSamples(ctx, []float32{1}), &ErrSessionClosed{})
}

func TestSessionInvalidParams(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, &fakeTranscriber{}, OptionStepSize(0), OptionThreads(0))
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrInvalidParams{})
	assert.Contains(t, err.Error(), "step_ms")
	assert.Contains(t, err.Error(), "threads")

	_, err = New(ctx, nil)
	require.Error(t, err)
}

func TestSessionMetrics(t *testing.T) {
	ctx := context.Background()
	metrics, reader := testMetrics(t)
	s, err := New(ctx, &fakeTranscriber{}, OptionParams(testParams()), OptionMetrics{Metrics: metrics})
	require.NoError(t, err)
	ch := s.OutputChanNoErr()

	require.NoError(t, s.WriteSamples(ctx, speechThenPause()))
	receive(t, ch)
	require.NoError(t, s.Close())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}

	samples, ok := found["whisperstream.session.samples"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, samples.DataPoints, 1)
	assert.Equal(t, int64(16000), samples.DataPoints[0].Value)

	windows, ok := found["whisperstream.session.windows"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, windows.DataPoints, 1)
	assert.Equal(t, int64(1), windows.DataPoints[0].Value)

	active, ok := found["whisperstream.session.active"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)

	_, ok = found["whisperstream.session.inference.duration"].(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestSessionStop(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, &fakeTranscriber{}, OptionParams(testParams()))
	require.NoError(t, err)
	defer s.Close()

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "the session did not stop")
	}
	assert.NoError(t, s.Err())
}
