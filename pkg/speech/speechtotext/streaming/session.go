// Package streaming implements a speech-to-text session over a continuous
// audio stream: the recent audio is kept in a ring buffer, and every step the
// most recent window is gated by a VAD and handed to an inference engine.
package streaming

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/audio/ringbuffer"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
	"github.com/xaionaro-go/xsync"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Session struct {
	xsync.Mutex
	ID          uuid.UUID
	Params      Params
	Transcriber speech.Transcriber
	VAD         vad.VAD
	Callback    Callback
	Metrics     *Metrics

	ringBuffer    *ringbuffer.RingBuffer
	written       uint64
	processedUpTo uint64
	isClosed      bool
	processingErr error

	window  []float32
	ownsVAD bool

	out             chan *speech.Transcript
	outputRequested atomic.Bool
	inCallback      atomic.Bool
	cancelFunc      context.CancelFunc
	done            chan struct{}
	closeErr        error
}

var _ speech.ToText = (*Session)(nil)

func New(
	ctx context.Context,
	transcriber speech.Transcriber,
	opts ...Option,
) (*Session, error) {
	cfg := Options(opts).config()
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if transcriber == nil {
		return nil, fmt.Errorf("the transcriber is not set")
	}

	s := &Session{
		ID:          uuid.New(),
		Params:      cfg.Params,
		Transcriber: transcriber,
		VAD:         cfg.VAD,
		Callback:    cfg.Callback,
		Metrics:     cfg.Metrics,
		ringBuffer:  ringbuffer.New(cfg.Params.WindowSamples()),
		window:      make([]float32, cfg.Params.WindowSamples()),
		out:         make(chan *speech.Transcript, cfg.QueueSize),
		done:        make(chan struct{}),
	}
	if s.VAD == nil {
		s.VAD = vad.NewEnergyRatio(cfg.Params.VADParams())
		s.ownsVAD = true
	}
	if s.Metrics == nil {
		s.Metrics = DefaultMetrics()
	}

	ctx = belt.WithField(ctx, "session_id", s.ID.String())
	logger.Debugf(ctx, "new streaming session: %s", s.Params)

	ctx, cancelFn := context.WithCancel(ctx)
	s.cancelFunc = cancelFn
	s.launchProcessingLoop(ctx)
	return s, nil
}

func (s *Session) launchProcessingLoop(ctx context.Context) {
	s.Metrics.ActiveSessions.Add(ctx, 1)
	observability.Go(ctx, func() {
		defer func() {
			s.Mutex.Do(xsync.WithNoLogging(ctx, true), func() {
				s.isClosed = true
			})
			if s.ownsVAD {
				if err := s.VAD.Close(); err != nil {
					s.closeErr = fmt.Errorf("unable to close the VAD: %w", err)
				}
			}
			s.Metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
			close(s.out)
			close(s.done)
		}()
		s.processingLoop(ctx)
	})
}

func (s *Session) processingLoop(ctx context.Context) {
	logger.Tracef(ctx, "processingLoop")
	defer func() { logger.Tracef(ctx, "/processingLoop") }()

	t := time.NewTicker(s.Params.StepSize)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			shouldStop, err := s.processWindow(ctx)
			if err != nil {
				logger.Errorf(ctx, "unable to process the window: %v", err)
				s.Metrics.TranscriptionErrors.Add(ctx, 1)
				s.Mutex.Do(xsync.WithNoLogging(ctx, true), func() {
					s.processingErr = err
				})
				return
			}
			if shouldStop {
				logger.Debugf(ctx, "the callback requested to stop")
				return
			}
		}
	}
}

func (s *Session) processWindow(
	ctx context.Context,
) (_stop bool, _err error) {
	logger.Tracef(ctx, "processWindow")
	defer func() { logger.Tracef(ctx, "/processWindow: %v %v", _stop, _err) }()

	windowEnd, hasNewAudio := s.takeWindow(ctx)
	if !hasNewAudio {
		return false, nil
	}

	hasVoice := true
	if s.Params.UseVAD {
		var err error
		hasVoice, err = s.VAD.DetectVoice(ctx, s.window)
		if err != nil {
			return false, ErrDetectVoice{Err: err}
		}
	}
	s.Metrics.Windows.Add(ctx, 1, metric.WithAttributes(attribute.Bool("has_voice", hasVoice)))

	if !hasVoice {
		logger.Tracef(ctx, "no voice in the window ending at %v", windowEnd)
		return s.deliver(ctx, &speech.Transcript{
			Progress:  0,
			Language:  s.Params.Language,
			HasVoice:  false,
			IsFinal:   true,
			WindowEnd: windowEnd,
		}), nil
	}

	startTS := time.Now()
	t, err := s.Transcriber.Transcribe(ctx, s.window, s.Params.TranscribeParams())
	inferenceTime := time.Since(startTS)
	s.Metrics.InferenceDuration.Record(ctx, inferenceTime.Seconds())
	logger.Debugf(ctx, "transcribed %d samples ending at %v in %v: %v", len(s.window), windowEnd, inferenceTime, err)
	if err != nil {
		return false, ErrTranscribe{Err: err}
	}
	if t == nil {
		t = &speech.Transcript{Progress: 1}
	}
	t.HasVoice = true
	t.WindowEnd = windowEnd
	if t.Language == speech.LanguageAuto {
		t.Language = s.Params.Language
	}
	return s.deliver(ctx, t), nil
}

// takeWindow copies the last BufferSize of audio into s.window if anything
// was written since the previous pass.
func (s *Session) takeWindow(ctx context.Context) (time.Duration, bool) {
	var windowEnd time.Duration
	hasNewAudio := xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.Mutex, func() bool {
		if s.written == s.processedUpTo {
			return false
		}
		s.processedUpTo = s.written
		s.ringBuffer.LastSamplesInto(s.window)
		windowEnd = s.Params.SamplesDuration(s.written)
		return true
	})
	return windowEnd, hasNewAudio
}

func (s *Session) deliver(
	ctx context.Context,
	t *speech.Transcript,
) bool {
	logger.Debugf(ctx, "delivering transcript: %#+v", *t)
	if s.outputRequested.Load() {
		select {
		case s.out <- t:
		default:
			s.Metrics.DroppedTranscripts.Add(ctx, 1)
			logger.Error(ctx, "the queue is full, dropping the message")
		}
	}
	if s.Callback == nil {
		return false
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	return s.Callback(ctx, t)
}

func (s *Session) checkWritableNoLock() error {
	if s.processingErr != nil {
		return fmt.Errorf("audio processing error: %w", s.processingErr)
	}
	if s.isClosed {
		return ErrSessionClosed{}
	}
	return nil
}

// WriteSamples appends mono float32 samples at Params.SampleRate.
func (s *Session) WriteSamples(
	ctx context.Context,
	samples []float32,
) error {
	logger.Tracef(ctx, "WriteSamples(ctx, samples[len:%d])", len(samples))
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.Mutex, func() error {
		if err := s.checkWritableNoLock(); err != nil {
			return err
		}
		s.ringBuffer.Add(samples)
		s.written += uint64(len(samples))
		return nil
	})
	if err == nil {
		s.Metrics.WrittenSamples.Add(ctx, int64(len(samples)))
	}
	return err
}

// WriteS16 appends mono signed 16-bit samples, converting them directly
// into the session history.
func (s *Session) WriteS16(
	ctx context.Context,
	samples []int16,
) error {
	logger.Tracef(ctx, "WriteS16(ctx, samples[len:%d])", len(samples))
	total := len(samples)
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.Mutex, func() error {
		if err := s.checkWritableNoLock(); err != nil {
			return err
		}
		capacity := s.ringBuffer.Capacity()
		if len(samples) > capacity {
			samples = samples[len(samples)-capacity:]
		}
		s.ringBuffer.Write(len(samples), func(dst []float32) {
			pcm.S16ToFloat32Into(dst, samples)
		})
		s.written += uint64(total)
		return nil
	})
	if err == nil {
		s.Metrics.WrittenSamples.Add(ctx, int64(total))
	}
	return err
}

// WriteFunc lets the producer write length samples straight into the
// session history; see ringbuffer.RingBuffer.Write. It reports false if
// length is not within (0, window size].
func (s *Session) WriteFunc(
	ctx context.Context,
	length int,
	fill func(dst []float32),
) (bool, error) {
	var ok bool
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.Mutex, func() error {
		if err := s.checkWritableNoLock(); err != nil {
			return err
		}
		ok = s.ringBuffer.Write(length, fill)
		if ok {
			s.written += uint64(length)
		}
		return nil
	})
	if ok {
		s.Metrics.WrittenSamples.Add(ctx, int64(length))
	}
	return ok, err
}

// WriteAudio accepts float32le frames; see AudioEncoding.
func (s *Session) WriteAudio(
	ctx context.Context,
	frame []byte,
) error {
	if len(frame)%4 != 0 {
		return fmt.Errorf("the frame length %d is not a multiple of a float32 sample", len(frame))
	}
	return s.WriteSamples(ctx, pcm.BytesToFloat32(frame))
}

func (s *Session) AudioEncoding(context.Context) (audio.Encoding, error) {
	return s.AudioEncodingNoErr(), nil
}

func (s *Session) AudioEncodingNoErr() audio.EncodingPCM {
	return pcm.EncodingFloat32(s.Params.SampleRate)
}

func (s *Session) AudioChannels(context.Context) (audio.Channel, error) {
	return pcm.Channels, nil
}

// OutputChan returns the channel of results; it is closed when the session
// stops. Results are queued only after the first call.
func (s *Session) OutputChan(context.Context) (<-chan *speech.Transcript, error) {
	return s.OutputChanNoErr(), nil
}

func (s *Session) OutputChanNoErr() <-chan *speech.Transcript {
	s.outputRequested.Store(true)
	return s.out
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that stopped the processing loop, if any.
func (s *Session) Err() error {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &s.Mutex, func() error {
		return s.processingErr
	})
}

// Stop requests the processing loop to exit without waiting for it.
func (s *Session) Stop() {
	s.cancelFunc()
}

// Close stops the session and waits for the processing loop to exit. The
// transcriber is not closed.
//
// While the callback is running (e.g. when Close is called from the
// callback itself) Close only stops the session and returns without
// waiting; the loop exits once the callback returns.
func (s *Session) Close() error {
	s.Stop()
	if s.inCallback.Load() {
		return nil
	}
	<-s.done
	return s.closeErr
}
