package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Azunyan1111/go-frame-extractor/internal"
	"github.com/Azunyan1111/go-frame-extractor/internal/vpxdec"
)

func main() {
	cfg, fs, err := internal.LoadConfig(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		if fs != nil {
			fs.Usage()
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *internal.Config) error {
	logger, err := internal.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	// シグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := internal.NewDecoderRegistry()
	for _, codec := range vpxdec.Codecs {
		registry.Register(codec, vpxdec.New)
	}
	logger.Debug("initializing all the containers, codecs and protocols",
		zap.Strings("codecs", registry.Codecs()))

	sink, err := internal.NewSink(cfg)
	if err != nil {
		logger.Error("cannot prepare output", zap.Error(err))
		return err
	}

	pipeline := internal.NewPipeline(internal.OpenSource, registry.NewDecoder, sink, logger)
	pipeline.SetFallback(internal.OpenFFmpegSource)
	n, runErr := pipeline.Run(ctx, cfg)

	if cfg.MetricsFile != "" {
		if err := pipeline.Metrics().WriteFile(cfg.MetricsFile); err != nil {
			logger.Warn("cannot write metrics file", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}

	if runErr != nil {
		logger.Error("extraction failed", zap.Int("frames_written", n), zap.Error(runErr))
		return runErr
	}
	logger.Info("extraction finished",
		zap.Int("frames_written", n),
		zap.String("output_dir", cfg.OutputDir),
	)
	return nil
}
