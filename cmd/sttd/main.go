package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/whisperstream/pkg/config"
	"github.com/xaionaro-go/whisperstream/pkg/metrics"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

func syntaxExit(message string) {
	fmt.Fprintf(os.Stderr, "syntax error: %s\n", message)
	pflag.Usage()
	os.Exit(2)
}

func main() {
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML config")
	var engineKind engine.Kind
	pflag.Var(&engineKind, "engine", "the speech-to-text engine: whisper or dummy")
	modelPath := pflag.String("model", "", "path to the default whisper model")
	gpuFlag := pflag.Int("gpu", -1, "GPU device index; negative disables the GPU")
	contextsFlag := pflag.Uint("contexts", 0, "maximal amount of simultaneous contexts")
	cacheSizeFlag := pflag.Uint("cache-size", 0, "amount of initialized engines to keep")
	metricsAddr := pflag.String("metrics-listen-addr", "", "an address to serve Prometheus metrics at /metrics")
	printConfig := pflag.Bool("print-config", false, "print the effective config and exit")
	pflag.Parse()
	if pflag.NArg() > 1 {
		syntaxExit("expected at most one argument (bind address)")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			syntaxExit(err.Error())
		}
		cfg = *loaded
		if !pflag.CommandLine.Changed("log-level") {
			if lvl, err := cfg.LoggerLevel(); err == nil {
				loggerLevel = lvl
			}
		}
	}
	if pflag.NArg() == 1 {
		cfg.Server.ListenAddr = pflag.Arg(0)
	}
	if pflag.CommandLine.Changed("engine") {
		cfg.Engine.Kind = engineKind.String()
	}
	if pflag.CommandLine.Changed("model") {
		cfg.Engine.ModelPath = *modelPath
	}
	if pflag.CommandLine.Changed("gpu") {
		cfg.Engine.GPU = gpuFlag
	}
	if pflag.CommandLine.Changed("contexts") {
		cfg.Server.ContextsLimit = *contextsFlag
	}
	if pflag.CommandLine.Changed("cache-size") {
		cfg.Server.CacheSize = *cacheSizeFlag
	}
	if pflag.CommandLine.Changed("metrics-listen-addr") {
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		syntaxExit(err.Error())
	}
	if *printConfig {
		if err := cfg.Write(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	var defaultModel []byte
	if cfg.Engine.ModelPath != "" {
		var err error
		defaultModel, err = os.ReadFile(cfg.Engine.ModelPath)
		if err != nil {
			logger.Fatal(ctx, err)
		}
	}

	metricsProvider, err := metrics.NewProvider()
	if err != nil {
		logger.Fatal(ctx, err)
	}
	otel.SetMeterProvider(metricsProvider.MeterProvider)
	sessionMetrics, err := streaming.NewMetrics(metricsProvider.MeterProvider)
	if err != nil {
		logger.Fatal(ctx, err)
	}

	listener, err := getListener(ctx, cfg.Server.ListenAddr)
	if err != nil {
		logger.Fatal(ctx, err)
	}

	srv := server.NewServer(
		defaultModel,
		cfg.Server.ContextsLimit,
		cfg.Server.CacheSize,
		server.OptionEngine(cfg.SpeechEngine()),
		server.OptionVAD(cfg.VADEngine()),
		server.OptionMetrics{Metrics: sessionMetrics},
		server.OptionQueueSize(cfg.Stream.QueueSize),
		server.OptionMaxRecvMsgSize(cfg.Server.MaxRecvMsgSize),
	)

	var metricsServer *http.Server
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsProvider.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof(gctx, "started at %v", listener.Addr())
		return srv.Serve(gctx, listener)
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Infof(gctx, "serving metrics at %s", metricsServer.Addr)
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof(ctx, "shutting down")
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Errorf(ctx, "unable to shutdown the metrics server: %v", err)
			}
		}
		if err := srv.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the server: %v", err)
		}
		return metricsProvider.Shutdown(context.WithoutCancel(ctx))
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal(ctx, err)
	}
}
