package libfvad

import (
	"context"
	"fmt"
	"time"

	"github.com/josharian/fvad"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
)

// VAD runs the WebRTC voice activity detector over the window and reports
// voice once MinVoiceDuration of voiced frames has been accumulated.
type VAD struct {
	*fvad.Detector
	SampleRate       audio.SampleRate
	MinVoiceDuration time.Duration

	frame []int16
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	sampleRate audio.SampleRate,
	sensitivityMode int,
	minVoiceDuration time.Duration,
) (*VAD, error) {
	detector := fvad.NewDetector()
	if err := detector.SetSampleRate(int(sampleRate)); err != nil {
		return nil, fmt.Errorf("unable to set the sample rate: %w", err)
	}
	if err := detector.SetMode(sensitivityMode); err != nil {
		return nil, fmt.Errorf("unable to set the sensitivity mode: %w", err)
	}
	return &VAD{
		Detector:         detector,
		SampleRate:       sampleRate,
		MinVoiceDuration: minVoiceDuration,
	}, nil
}

func (v *VAD) Close() error {
	v.Detector.Close()
	return nil
}

func (v *VAD) Encoding(context.Context) (audio.Encoding, error) {
	return pcm.EncodingFloat32(v.SampleRate), nil
}

func (*VAD) Channels(context.Context) (audio.Channel, error) {
	return pcm.Channels, nil
}

func (v *VAD) DetectVoice(
	ctx context.Context,
	samples []float32,
) (bool, error) {
	var foundVoiceFor time.Duration

	// see the description of (*fvad.Detector).Process: only 10, 20 and 30ms
	// frames are accepted
	minPortion := v.samplesPer10Ms()
	if minPortion <= 0 {
		return false, nil
	}
	for {
		var (
			n           int
			curDuration time.Duration
		)
		switch {
		case len(samples) >= 3*minPortion:
			n, curDuration = 3*minPortion, 30*time.Millisecond
		case len(samples) >= 2*minPortion:
			n, curDuration = 2*minPortion, 20*time.Millisecond
		case len(samples) >= minPortion:
			n, curDuration = minPortion, 10*time.Millisecond
		default:
			return false, nil
		}

		if cap(v.frame) < n {
			v.frame = make([]int16, 3*minPortion)
		}
		frame := v.frame[:n]
		pcm.Float32ToS16(frame, samples[:n])
		samples = samples[n:]

		isVoice, err := v.Detector.Process(frame)
		if err != nil {
			return false, fmt.Errorf("unable to process a frame of %d samples: %w", n, err)
		}
		if isVoice {
			foundVoiceFor += curDuration
		}
		if foundVoiceFor >= v.MinVoiceDuration && foundVoiceFor > 0 {
			return true, nil
		}
	}
}

func (v *VAD) samplesPer10Ms() int {
	return int(uint64(v.SampleRate) / 100)
}
