package vad

import (
	"context"
	"time"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/audio/dsp"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
)

const (
	DefaultThreshold          = 0.6
	DefaultFrequencyThreshold = 100
	DefaultRecentWindow       = 500 * time.Millisecond
)

type Params struct {
	// Threshold is the maximal ratio of the recent-window energy to the
	// whole-window energy at which voice is still reported.
	Threshold float32

	// FrequencyThreshold is the high-pass cutoff in Hz; 0 disables filtering.
	FrequencyThreshold float32

	SampleRate   audio.SampleRate
	RecentWindow time.Duration
}

func DefaultParams() Params {
	return Params{
		Threshold:          DefaultThreshold,
		FrequencyThreshold: DefaultFrequencyThreshold,
		SampleRate:         pcm.DefaultSampleRate,
		RecentWindow:       DefaultRecentWindow,
	}
}

// RecentSamples is the length of the recent window in samples.
func (p Params) RecentSamples() int {
	return int(uint64(p.SampleRate) * uint64(p.RecentWindow) / uint64(time.Second))
}

// DetectVoiceActivity compares the mean absolute energy of the last
// RecentWindow of samples against the energy of the whole window and
// reports voice iff energyLast <= Threshold*energyTotal.
//
// Windows not longer than the recent window are reported as no voice.
// samples is copied before filtering and is never modified.
func DetectVoiceActivity(samples []float32, params Params) bool {
	if len(samples) == 0 {
		return false
	}
	work := make([]float32, len(samples))
	copy(work, samples)
	return detectInPlace(work, params)
}

func detectInPlace(work []float32, params Params) bool {
	if params.FrequencyThreshold > 0 {
		dsp.HighPassInPlace(work, params.FrequencyThreshold, float32(params.SampleRate))
	}

	energyTotal := dsp.MeanAbs(work)

	nLast := params.RecentSamples()
	if nLast <= 0 || nLast >= len(work) {
		return false
	}
	energyLast := dsp.MeanAbs(work[len(work)-nLast:])

	return energyLast <= params.Threshold*energyTotal
}

// EnergyRatio is DetectVoiceActivity as a VAD, reusing its working buffer
// between calls. It is not safe for concurrent use.
type EnergyRatio struct {
	Params Params
	work   []float32
}

var _ VAD = (*EnergyRatio)(nil)

func NewEnergyRatio(params Params) *EnergyRatio {
	return &EnergyRatio{
		Params: params,
	}
}

func (v *EnergyRatio) Detect(samples []float32) bool {
	if len(samples) == 0 {
		return false
	}
	if cap(v.work) < len(samples) {
		v.work = make([]float32, len(samples))
	}
	work := v.work[:len(samples)]
	copy(work, samples)
	return detectInPlace(work, v.Params)
}

func (v *EnergyRatio) DetectVoice(_ context.Context, samples []float32) (bool, error) {
	return v.Detect(samples), nil
}

func (v *EnergyRatio) Close() error {
	v.work = nil
	return nil
}

func (v *EnergyRatio) Encoding(context.Context) (audio.Encoding, error) {
	return pcm.EncodingFloat32(v.Params.SampleRate), nil
}

func (v *EnergyRatio) Channels(context.Context) (audio.Channel, error) {
	return pcm.Channels, nil
}
