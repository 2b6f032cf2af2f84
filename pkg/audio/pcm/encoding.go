package pcm

import (
	"github.com/xaionaro-go/audio/pkg/audio"
)

const (
	DefaultSampleRate = audio.SampleRate(16000)
	Channels          = audio.Channel(1)
)

func EncodingFloat32(sampleRate audio.SampleRate) audio.EncodingPCM {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: sampleRate,
	}
}

func EncodingS16(sampleRate audio.SampleRate) audio.EncodingPCM {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatS16LE,
		SampleRate: sampleRate,
	}
}
