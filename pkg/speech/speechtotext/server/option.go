package server

import (
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"github.com/xaionaro-go/whisperstream/pkg/vad/vadengine"
)

type config struct {
	Engine         engine.Config
	VAD            *vadengine.Config
	Metrics        *streaming.Metrics
	QueueSize      uint
	MaxRecvMsgSize int
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
	cfg := config{}
	opts.apply(&cfg)
	return cfg
}

// OptionEngine sets the engine used when a request does not specify one;
// its model is shared by all contexts.
type OptionEngine engine.Config

func (opt OptionEngine) apply(cfg *config) {
	cfg.Engine = engine.Config(opt)
}

// OptionVAD replaces the default energy-ratio detector of the sessions.
type OptionVAD vadengine.Config

func (opt OptionVAD) apply(cfg *config) {
	cfg.VAD = (*vadengine.Config)(&opt)
}

type OptionMetrics struct {
	Metrics *streaming.Metrics
}

func (opt OptionMetrics) apply(cfg *config) {
	cfg.Metrics = opt.Metrics
}

type OptionQueueSize uint

func (opt OptionQueueSize) apply(cfg *config) {
	cfg.QueueSize = uint(opt)
}

type OptionMaxRecvMsgSize int

func (opt OptionMaxRecvMsgSize) apply(cfg *config) {
	cfg.MaxRecvMsgSize = int(opt)
}
