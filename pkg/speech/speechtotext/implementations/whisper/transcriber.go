package whisper

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mutablelogic/go-whisper/sys/whisper"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/implementations/whisper/hallucination"
	"github.com/xaionaro-go/xsync"
)

// #cgo pkg-config: libwhisper
// #cgo linux pkg-config: libwhisper-linux
// #cgo darwin pkg-config: libwhisper-darwin
import "C"

// Transcriber runs whisper.cpp over a whole window per call. A whisper
// context is not reentrant, so calls are serialized.
type Transcriber struct {
	xsync.Mutex
	Context          *whisper.Context
	SamplingStrategy SamplingStrategy
	ModelHash        hallucination.ModelHash
}

var _ speech.Transcriber = (*Transcriber)(nil)

func NewFromFile(
	ctx context.Context,
	modelPath string,
	opts ...Option,
) (*Transcriber, error) {
	modelBytes, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, ErrInitModel{Path: modelPath, Err: err}
	}
	return New(ctx, modelBytes, opts...)
}

func New(
	ctx context.Context,
	modelBytes []byte,
	opts ...Option,
) (_ret *Transcriber, _err error) {
	cfg := Options(opts).config()
	logger.Tracef(ctx, "New(ctx, modelBytes[len:%d], %s, %s)", len(modelBytes), cfg.SamplingStrategy, cfg.AlignmentAheadsPreset)
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	params := whisper.DefaultContextParams()
	if cfg.UseGPU != nil {
		params.SetUseGpu(*cfg.UseGPU)
	}
	if cfg.GPUDeviceID != nil {
		params.SetGpuDevice(*cfg.GPUDeviceID)
	}
	if cfg.FlashAttn != nil {
		params.SetFlashAttn(*cfg.FlashAttn)
	}
	params.SetTokenTimestamps(false)
	params.SetDTWAheadsPreset(cfg.AlignmentAheadsPreset.ToWhisper())
	whisper.Whisper_log_set(func(level whisper.LogLevel, text string) {
		logger.FromCtx(ctx).Log(logLevelFromWhisper(level), strings.TrimRight(text, "\n"))
	})

	h := hallucination.CalcModelHash(modelBytes)
	logger.Debugf(ctx, "model SHA1: %X", h)

	wCtx := whisper.Whisper_init_from_buffer_with_params(modelBytes, params)
	if wCtx == nil {
		return nil, ErrInitContext{Err: fmt.Errorf("whisper returned a nil context for a %d-byte model", len(modelBytes))}
	}

	return &Transcriber{
		Context:          wCtx,
		SamplingStrategy: cfg.SamplingStrategy,
		ModelHash:        h,
	}, nil
}

func (t *Transcriber) Transcribe(
	ctx context.Context,
	samples []float32,
	params speech.TranscribeParams,
) (_ret *speech.Transcript, _err error) {
	logger.Tracef(ctx, "Transcribe(ctx, samples[len:%d], %#+v)", len(samples), params)
	defer func() { logger.Tracef(ctx, "/Transcribe: %v", _err) }()

	var result *speech.Transcript
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &t.Mutex, func() error {
		var err error
		result, err = t.transcribeNoLock(ctx, samples, params)
		return err
	})
	return result, err
}

func (t *Transcriber) transcribeNoLock(
	ctx context.Context,
	samples []float32,
	params speech.TranscribeParams,
) (*speech.Transcript, error) {
	if t.Context == nil {
		return nil, ErrClosed{}
	}

	if params.Translate && !whisper.Whisper_is_multilingual(t.Context) {
		return nil, ErrModelCannotTranslate{}
	}

	lang := LanguageToWhisper(params.Language)
	fullParams := whisper.DefaultFullParams(t.SamplingStrategy.ToWhisper())
	fullParams.SetTranslate(params.Translate)
	fullParams.SetDiarize(false)
	fullParams.SetTokenTimestamps(true)
	fullParams.SetLanguage(lang)
	fullParams.SetAbortCallback(t.Context, func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	})

	startTS := time.Now()
	err := whisper.Whisper_full(t.Context, fullParams, samples)
	logger.Debugf(ctx, "whisper processed %d samples (language: '%s', translate: %t) in %v: %v", len(samples), lang, params.Translate, time.Since(startTS), err)
	if err != nil {
		return nil, err
	}

	result := &speech.Transcript{
		Progress:            1,
		Language:            speech.Language(whisper.Whisper_lang_str(t.Context.DefaultLangId())),
		NoSpeechProbability: 1,
		IsFinal:             true,
	}

	var (
		texts    []string
		prevNorm string
	)
	numSegments := t.Context.NumSegments()
	logger.Debugf(ctx, "numSegments == %d", numSegments)
	for i := range numSegments {
		segment := t.Context.Segment(i)
		if !t.isUsefulSegment(ctx, segment) {
			continue
		}
		norm := hallucination.Normalize(segment.Text)
		if norm == prevNorm {
			logger.Debugf(ctx, "segment %d repeats the previous one, skipping", i)
			continue
		}
		prevNorm = norm
		texts = append(texts, strings.TrimSpace(segment.Text))
		result.NoSpeechProbability = min(result.NoSpeechProbability, segment.NoSpeechProb)
	}
	result.Text = speech.Text(strings.Join(texts, " "))
	return result, nil
}

func (t *Transcriber) isUsefulSegment(
	ctx context.Context,
	s *whisper.Segment,
) bool {
	logger.Debugf(ctx, "segment: %#+v", s)

	tokens := make([]string, 0, len(s.Tokens))
	for _, token := range s.Tokens {
		tokens = append(tokens, token.Text)
	}

	switch {
	case hallucination.IsHanging(tokens):
		logger.Debugf(ctx, "this is a hang-causing segment")
		return false
	case hallucination.IsAnnotation(s.Text):
		return false
	case hallucination.IsLikely(ctx, t.ModelHash, s.Text):
		logger.Debugf(ctx, "likely a hallucination, skipping")
		return false
	case !speech.Text(s.Text).ContainsAlphaNum():
		return false
	}
	return true
}

func (t *Transcriber) Close() error {
	t.Mutex.Do(context.Background(), func() {
		if t.Context == nil {
			return
		}
		whisper.Whisper_free(t.Context)
		t.Context = nil
	})
	return nil
}
