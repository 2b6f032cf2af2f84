package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/config"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/client"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/goconv"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"github.com/xaionaro-go/whisperstream/pkg/vad/vadengine"
)

func syntaxExit(message string) {
	fmt.Fprintf(os.Stderr, "syntax error: %s\n", message)
	pflag.Usage()
	os.Exit(2)
}

type flags struct {
	LoggerLevel      logger.Level
	ConfigPath       string
	Input            string
	RemoteAddr       string
	Language         string
	Translate        bool
	Threads          uint
	BufferMS         uint32
	StepMS           uint32
	UseVAD           bool
	VADThreshold     float32
	VADKind          vadengine.Kind
	EngineKind       engine.Kind
	GPU              int
	SamplingStrategy string
	AlignmentAheads  string
	SampleRate       uint32
	PrintTimestamps  bool
	PrintSilence     bool
	Realtime         bool
	NetPprofAddr     string
}

func parseFlags() (flags, config.Config) {
	defaults := config.Default()
	f := flags{LoggerLevel: logger.LevelWarning}
	pflag.Var(&f.LoggerLevel, "log-level", "Log level")
	pflag.StringVar(&f.ConfigPath, "config", "", "path to a YAML config")
	pflag.StringVar(&f.Input, "input", "", "a WAV file, '-' for raw mono s16le from stdin, or empty for the microphone")
	pflag.StringVar(&f.RemoteAddr, "remote-addr", "", "use a remote speech-to-text engine, instead of running it locally")
	pflag.StringVar(&f.Language, "language", defaults.Stream.Language, "")
	pflag.BoolVar(&f.Translate, "translate", defaults.Stream.Translate, "translate to English")
	pflag.UintVar(&f.Threads, "threads", defaults.Stream.Threads, "")
	pflag.Uint32Var(&f.BufferMS, "buffer-ms", defaults.Stream.BufferMS, "length of the transcribed window")
	pflag.Uint32Var(&f.StepMS, "step-ms", defaults.Stream.StepMS, "interval between passes")
	pflag.BoolVar(&f.UseVAD, "vad", defaults.Stream.UseVAD, "skip windows without voice")
	pflag.Float32Var(&f.VADThreshold, "vad-threshold", defaults.Stream.VADThreshold, "")
	pflag.Var(&f.VADKind, "vad-kind", "energy, libfvad or none")
	pflag.Var(&f.EngineKind, "engine", "whisper or dummy")
	pflag.IntVar(&f.GPU, "gpu", -1, "GPU device index; negative disables the GPU")
	pflag.StringVar(&f.SamplingStrategy, "sampling-strategy", defaults.Engine.SamplingStrategy, "greedy or beam_search")
	pflag.StringVar(&f.AlignmentAheads, "alignment-aheads-preset", defaults.Engine.AlignmentAheadsPreset, "")
	pflag.Uint32Var(&f.SampleRate, "sample-rate", defaults.Stream.SampleRate, "")
	pflag.BoolVar(&f.PrintTimestamps, "print-timestamps", false, "")
	pflag.BoolVar(&f.PrintSilence, "print-silence", false, "print an empty line for windows without voice")
	pflag.BoolVar(&f.Realtime, "realtime", true, "feed WAV files at the speed of playback")
	pflag.StringVar(&f.NetPprofAddr, "net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if pflag.NArg() > 1 {
		syntaxExit("expected at most one argument: whisper-model-path")
	}

	cfg := defaults
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			syntaxExit(err.Error())
		}
		cfg = *loaded
		if !pflag.CommandLine.Changed("log-level") {
			if lvl, err := cfg.LoggerLevel(); err == nil {
				f.LoggerLevel = lvl
			}
		}
	}

	changed := pflag.CommandLine.Changed
	if changed("language") {
		cfg.Stream.Language = f.Language
	}
	if changed("translate") {
		cfg.Stream.Translate = f.Translate
	}
	if changed("threads") {
		cfg.Stream.Threads = f.Threads
	}
	if changed("buffer-ms") {
		cfg.Stream.BufferMS = f.BufferMS
	}
	if changed("step-ms") {
		cfg.Stream.StepMS = f.StepMS
	}
	if changed("vad") {
		cfg.Stream.UseVAD = f.UseVAD
	}
	if changed("vad-threshold") {
		cfg.Stream.VADThreshold = f.VADThreshold
	}
	if changed("vad-kind") {
		cfg.VAD.Kind = f.VADKind.String()
	}
	if changed("engine") {
		cfg.Engine.Kind = f.EngineKind.String()
	}
	if changed("gpu") {
		cfg.Engine.GPU = &f.GPU
	}
	if changed("sampling-strategy") {
		cfg.Engine.SamplingStrategy = f.SamplingStrategy
	}
	if changed("alignment-aheads-preset") {
		cfg.Engine.AlignmentAheadsPreset = f.AlignmentAheads
	}
	if changed("sample-rate") {
		cfg.Stream.SampleRate = f.SampleRate
	}
	if pflag.NArg() == 1 {
		cfg.Engine.ModelPath = pflag.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		syntaxExit(err.Error())
	}
	if f.RemoteAddr == "" && cfg.Engine.ModelPath == "" && engine.Kind(cfg.Engine.Kind) != engine.KindDummy {
		syntaxExit("a whisper model path is required to run locally")
	}
	return f, cfg
}

func main() {
	f, cfg := parseFlags()

	l := logrus.Default().WithLevel(f.LoggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	if f.NetPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(f.NetPprofAddr, nil)) })
	}

	params := cfg.Stream.Params()

	in, err := openInput(ctx, f.Input, params.SampleRate)
	if err != nil {
		logger.Fatal(ctx, err)
	}
	defer in.Close()
	if !in.IsFile {
		observability.Go(ctx, func() {
			<-ctx.Done()
			in.Close()
		})
	}

	stt, writeS16, err := newSpeechToText(ctx, f, cfg)
	if err != nil {
		logger.Fatal(ctx, err)
	}
	defer stt.Close()
	logger.Infof(ctx, "initialized a Speech-To-Text engine")

	outCh, err := stt.OutputChan(ctx)
	if err != nil {
		logger.Fatal(ctx, err)
	}

	var lastWindowEnd atomic.Int64
	printerDone := make(chan struct{})
	observability.Go(ctx, func() {
		defer close(printerDone)
		defer logger.Infof(ctx, "stopped reader")
		logger.Infof(ctx, "started reader")
		for t := range outCh {
			lastWindowEnd.Store(int64(t.WindowEnd))
			printTranscript(f, t)
		}
	})

	defer logger.Infof(ctx, "stopped writer")
	logger.Infof(ctx, "started writer")
	written, err := feed(ctx, in, params, f.Realtime, writeS16)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		logger.Fatal(ctx, err)
	}

	// let the last window be processed
	endOfInput := params.SamplesDuration(written)
	deadline := time.NewTimer(2*params.BufferSize + 10*time.Second)
	defer deadline.Stop()
	poll := time.NewTicker(params.StepSize)
	defer poll.Stop()
	for time.Duration(lastWindowEnd.Load()) < endOfInput {
		select {
		case <-ctx.Done():
			return
		case <-printerDone:
			return
		case <-deadline.C:
			logger.Warnf(ctx, "timed out waiting for the last window")
			return
		case <-poll.C:
		}
	}
}

func newSpeechToText(
	ctx context.Context,
	f flags,
	cfg config.Config,
) (speech.ToText, func(context.Context, []int16) error, error) {
	params := cfg.Stream.Params()

	if f.RemoteAddr != "" {
		c, err := client.New(ctx, f.RemoteAddr, goconv.NewContextRequest{
			Params:                params,
			Engine:                engine.Kind(cfg.Engine.Kind),
			SamplingStrategy:      cfg.Engine.SamplingStrategy,
			AlignmentAheadsPreset: cfg.Engine.AlignmentAheadsPreset,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, func(ctx context.Context, samples []int16) error {
			return c.WriteSamples(ctx, pcm.S16ToFloat32(samples))
		}, nil
	}

	transcriber, err := engine.New(ctx, cfg.SpeechEngine())
	if err != nil {
		return nil, nil, err
	}
	opts := cfg.StreamOptions()
	var closers []io.Closer
	if params.UseVAD {
		v, err := vadengine.New(ctx, cfg.VADEngine())
		if err != nil {
			transcriber.Close()
			return nil, nil, err
		}
		opts = append(opts, streaming.OptionVAD{VAD: v})
		closers = append(closers, v)
	}
	session, err := streaming.New(ctx, transcriber, opts...)
	if err != nil {
		transcriber.Close()
		return nil, nil, err
	}
	closers = append(closers, transcriber)
	return &localSession{Session: session, closers: closers}, session.WriteS16, nil
}

// localSession closes the engine and the VAD together with the session.
type localSession struct {
	*streaming.Session
	closers []io.Closer
}

func (s *localSession) Close() error {
	var mErr *multierror.Error
	if err := s.Session.Close(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}
	return mErr.ErrorOrNil()
}

// feed writes the input by chunks of one step; with realtime set, file
// input is written no faster than it would play.
func feed(
	ctx context.Context,
	in *input,
	params streaming.Params,
	realtime bool,
	writeS16 func(context.Context, []int16) error,
) (uint64, error) {
	chunk := make([]int16, max(params.StepSamples(), 1))
	startTS := time.Now()
	var written uint64
	for {
		n, err := in.Source.ReadS16(chunk)
		if n > 0 {
			if werr := writeS16(ctx, chunk[:n]); werr != nil {
				return written, fmt.Errorf("unable to write the audio: %w", werr)
			}
			written += uint64(n)
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("unable to read the audio: %w", err)
		}
		if !realtime || !in.IsFile {
			continue
		}
		wait := time.Until(startTS.Add(params.SamplesDuration(written)))
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func printTranscript(f flags, t *speech.Transcript) {
	if !t.HasVoice && !f.PrintSilence {
		return
	}
	text := strings.ReplaceAll(string(t.Text), "\n", "|")
	if f.PrintTimestamps {
		text = fmt.Sprintf("%8v: %s", t.WindowEnd.Truncate(100*time.Millisecond), text)
	}
	fmt.Println(text)
}
