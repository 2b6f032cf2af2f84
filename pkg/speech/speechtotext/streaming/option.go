package streaming

import (
	"context"
	"time"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
)

// Callback receives every result of the session; returning true stops it.
// It runs on the processing goroutine; calling Session.Close from it stops
// the session without waiting for the loop.
type Callback func(ctx context.Context, t *speech.Transcript) (stop bool)

type config struct {
	Params    Params
	Callback  Callback
	VAD       vad.VAD
	Metrics   *Metrics
	QueueSize uint
}

func defaultConfig() config {
	return config{
		Params:    DefaultParams(),
		QueueSize: 1024,
	}
}

type Option interface {
	apply(*config)
}

type Options []Option

func (opts Options) apply(cfg *config) {
	for _, opt := range opts {
		opt.apply(cfg)
	}
}

func (opts Options) config() config {
	cfg := defaultConfig()
	opts.apply(&cfg)
	return cfg
}

type OptionParams Params

func (opt OptionParams) apply(cfg *config) {
	cfg.Params = Params(opt)
}

type OptionBufferSize time.Duration

func (opt OptionBufferSize) apply(cfg *config) {
	cfg.Params.BufferSize = time.Duration(opt)
}

type OptionStepSize time.Duration

func (opt OptionStepSize) apply(cfg *config) {
	cfg.Params.StepSize = time.Duration(opt)
}

type OptionThreads uint

func (opt OptionThreads) apply(cfg *config) {
	cfg.Params.Threads = uint(opt)
}

type OptionTranslate bool

func (opt OptionTranslate) apply(cfg *config) {
	cfg.Params.Translate = bool(opt)
}

type OptionLanguage speech.Language

func (opt OptionLanguage) apply(cfg *config) {
	cfg.Params.Language = speech.Language(opt)
}

type OptionUseVAD bool

func (opt OptionUseVAD) apply(cfg *config) {
	cfg.Params.UseVAD = bool(opt)
}

type OptionVADThreshold float32

func (opt OptionVADThreshold) apply(cfg *config) {
	cfg.Params.VADThreshold = float32(opt)
}

type OptionSampleRate audio.SampleRate

func (opt OptionSampleRate) apply(cfg *config) {
	cfg.Params.SampleRate = audio.SampleRate(opt)
}

type OptionCallback Callback

func (opt OptionCallback) apply(cfg *config) {
	cfg.Callback = Callback(opt)
}

// OptionVAD replaces the energy-ratio detector built from Params. The
// session does not close a VAD passed this way.
type OptionVAD struct {
	VAD vad.VAD
}

func (opt OptionVAD) apply(cfg *config) {
	cfg.VAD = opt.VAD
}

type OptionMetrics struct {
	Metrics *Metrics
}

func (opt OptionMetrics) apply(cfg *config) {
	cfg.Metrics = opt.Metrics
}

type OptionQueueSize uint

func (opt OptionQueueSize) apply(cfg *config) {
	cfg.QueueSize = uint(opt)
}
