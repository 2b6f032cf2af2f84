// Package config is the YAML configuration of the whisperstream tools.
package config

import (
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"github.com/xaionaro-go/whisperstream/pkg/vad/vadengine"
)

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Stream   StreamConfig  `yaml:"stream"`
	VAD      VADConfig     `yaml:"vad"`
	Engine   EngineConfig  `yaml:"engine"`
	Server   ServerConfig  `yaml:"server"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// StreamConfig mirrors streaming.Params with durations in milliseconds.
type StreamConfig struct {
	BufferMS              uint32  `yaml:"buffer_ms"`
	StepMS                uint32  `yaml:"step_ms"`
	Threads               uint    `yaml:"threads"`
	Translate             bool    `yaml:"translate"`
	Language              string  `yaml:"language"`
	UseVAD                bool    `yaml:"use_vad"`
	VADThreshold          float32 `yaml:"vad_threshold"`
	VADFrequencyThreshold float32 `yaml:"vad_frequency_threshold"`
	SampleRate            uint32  `yaml:"sample_rate"`
	QueueSize             uint    `yaml:"queue_size"`
}

type VADConfig struct {
	Kind              string `yaml:"kind"`
	LibfvadMode       int    `yaml:"libfvad_mode"`
	LibfvadMinVoiceMS uint32 `yaml:"libfvad_min_voice_ms"`
}

type EngineConfig struct {
	Kind                  string `yaml:"kind"`
	ModelPath             string `yaml:"model_path"`
	SamplingStrategy      string `yaml:"sampling_strategy"`
	AlignmentAheadsPreset string `yaml:"alignment_aheads_preset"`

	// GPU is the device index; negative disables the GPU, unset keeps the
	// engine default.
	GPU       *int  `yaml:"gpu"`
	FlashAttn *bool `yaml:"flash_attn"`
}

type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	ContextsLimit  uint   `yaml:"contexts_limit"`
	CacheSize      uint   `yaml:"cache_size"`
	MaxRecvMsgSize int    `yaml:"max_recv_msg_size"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

func Default() Config {
	params := streaming.DefaultParams()
	return Config{
		LogLevel: logger.LevelWarning.String(),
		Stream: StreamConfig{
			BufferMS:              uint32(params.BufferSize / time.Millisecond),
			StepMS:                uint32(params.StepSize / time.Millisecond),
			Threads:               params.Threads,
			Translate:             params.Translate,
			Language:              string(params.Language),
			UseVAD:                params.UseVAD,
			VADThreshold:          params.VADThreshold,
			VADFrequencyThreshold: params.VADFrequencyThreshold,
			SampleRate:            uint32(params.SampleRate),
			QueueSize:             1024,
		},
		VAD: VADConfig{
			Kind:              string(vadengine.KindEnergy),
			LibfvadMode:       2,
			LibfvadMinVoiceMS: 300,
		},
		Engine: EngineConfig{
			Kind:                  string(engine.KindWhisper),
			SamplingStrategy:      "greedy",
			AlignmentAheadsPreset: "none",
		},
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:3765",
			ContextsLimit:  4,
			CacheSize:      2,
			MaxRecvMsgSize: 32 * 1024 * 1024,
		},
	}
}

func (c StreamConfig) Params() streaming.Params {
	return streaming.Params{
		BufferSize:            time.Duration(c.BufferMS) * time.Millisecond,
		StepSize:              time.Duration(c.StepMS) * time.Millisecond,
		Threads:               c.Threads,
		Translate:             c.Translate,
		Language:              speech.Language(c.Language),
		UseVAD:                c.UseVAD,
		VADThreshold:          c.VADThreshold,
		VADFrequencyThreshold: c.VADFrequencyThreshold,
		SampleRate:            audio.SampleRate(c.SampleRate),
	}
}

func (c Config) StreamOptions() streaming.Options {
	return streaming.Options{
		streaming.OptionParams(c.Stream.Params()),
		streaming.OptionQueueSize(c.Stream.QueueSize),
	}
}

func (c Config) VADEngine() vadengine.Config {
	params := c.Stream.Params()
	return vadengine.Config{
		Kind:                vadengine.Kind(c.VAD.Kind),
		Params:              params.VADParams(),
		LibfvadMode:         c.VAD.LibfvadMode,
		LibfvadMinVoiceTime: time.Duration(c.VAD.LibfvadMinVoiceMS) * time.Millisecond,
	}
}

func (c Config) SpeechEngine() engine.Config {
	return engine.Config{
		Kind:                  engine.Kind(c.Engine.Kind),
		ModelPath:             c.Engine.ModelPath,
		SamplingStrategy:      c.Engine.SamplingStrategy,
		AlignmentAheadsPreset: c.Engine.AlignmentAheadsPreset,
		GPUDeviceID:           c.Engine.GPU,
		FlashAttn:             c.Engine.FlashAttn,
		SampleRate:            audio.SampleRate(c.Stream.SampleRate),
	}
}

func (c Config) LoggerLevel() (logger.Level, error) {
	var l logger.Level
	if err := l.Set(c.LogLevel); err != nil {
		return logger.LevelUndefined, err
	}
	return l, nil
}
