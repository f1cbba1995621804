package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/krau/imagenetbench/bench"
	"github.com/krau/imagenetbench/config"
	"github.com/krau/imagenetbench/imagenet"
	"github.com/krau/imagenetbench/onnx"
	"github.com/krau/imagenetbench/results"
	"github.com/krau/imagenetbench/server"
	"github.com/krau/imagenetbench/zoo"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if errors.Is(err, config.ErrUsage) {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		return 1
	}
	setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	arch, err := zoo.Resolve(cfg.ModelName)
	if err != nil {
		slog.Error("Failed to resolve model", slog.String("error", err.Error()))
		return 1
	}
	slog.Info("Starting benchmark",
		slog.String("test", cfg.TestName),
		slog.String("model", arch.Name),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Int("max_num_batches", cfg.MaxNumBatches))

	res := results.New()
	if cfg.StatusAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		status := server.New(cfg.StatusAddr, cfg.StatusToken, cfg.TestName, cfg.ModelName, res)
		status.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				slog.Error("Failed to stop status server", slog.String("error", err.Error()))
			}
		}()
	}

	model := &bench.Model{Arch: arch}
	if cfg.TestName == config.TestForward {
		destroy, err := onnx.InitEnvironment(cfg.Libonnx)
		if err != nil {
			slog.Error("Failed to initialize ONNX Runtime", slog.String("error", err.Error()))
			return 1
		}
		defer destroy()

		clf, err := openClassifier(ctx, cfg, arch)
		if err != nil {
			slog.Error("Failed to load model", slog.String("error", err.Error()))
			return 1
		}
		defer func() {
			if err := clf.Close(); err != nil {
				slog.Error("Failed to release model", slog.String("error", err.Error()))
			}
		}()
		model.Classifier = clf
	}

	pre, err := imagenet.NewPreprocessor(arch.Preprocessing, arch.InputSize)
	if err != nil {
		slog.Error("Failed to set up preprocessing", slog.String("error", err.Error()))
		return 1
	}
	open := func(ctx context.Context) (bench.Source, error) {
		l, err := imagenet.LoadValidation(ctx, cfg.InputDir, cfg.BatchSize, pre,
			imagenet.WithWorkers(cfg.Workers),
			imagenet.WithQueueCapacity(cfg.QueueCapacity))
		if err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := bench.Run(ctx, cfg, model, open, res, os.Stdout); err != nil {
		slog.Error("Benchmark failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func openClassifier(ctx context.Context, cfg config.RunConfig, arch *zoo.Architecture) (*onnx.Classifier, error) {
	src, ok := cfg.Models[cfg.ModelName]
	if !ok || src.File == "" {
		return nil, fmt.Errorf("no weights configured for %s", cfg.ModelName)
	}
	path := filepath.Join(cfg.ModelDir, src.File)
	if err := onnx.EnsureWeights(ctx, src.URL, path); err != nil {
		return nil, err
	}
	return onnx.NewClassifier(path, arch, cfg.BatchSize, onnx.ClassifierOptions{IntraOpThreads: cfg.Threads})
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
