// Package bench runs the benchmark modes against a resolved model.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/krau/imagenetbench/config"
	"github.com/krau/imagenetbench/imagenet"
	"github.com/krau/imagenetbench/results"
	"github.com/krau/imagenetbench/zoo"
)

var ErrNoClassifier = errors.New("model has no classifier")

type Classifier interface {
	Predict(ctx context.Context, b imagenet.Batch) ([][]float32, error)
}

// Source yields batches until closed. Close stops and joins any background
// workers.
type Source interface {
	Next(ctx context.Context) (imagenet.Batch, error)
	Close() error
}

type SourceFunc func(ctx context.Context) (Source, error)

// Model is a resolved architecture and, for modes that run inference, the
// classifier executing its pretrained weights.
type Model struct {
	Arch       *zoo.Architecture
	Classifier Classifier
}

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

func flush(w io.Writer) {
	switch f := w.(type) {
	case flusher:
		_ = f.Flush()
	case syncer:
		_ = f.Sync()
	}
}

// Forward runs at most cfg.MaxNumBatches timed inference calls and
// prints the running aggregate after each. The source is closed, and its
// workers joined, before it returns.
func Forward(ctx context.Context, cfg config.RunConfig, m *Model, open SourceFunc, res *results.Results, out io.Writer) (err error) {
	if m.Classifier == nil {
		return ErrNoClassifier
	}
	src, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open validation data: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to stop data loader: %w", cerr)
		}
	}()

	for i := 0; i < cfg.MaxNumBatches; i++ {
		b, err := src.Next(ctx)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}

		res.StartTimer()
		preds, err := m.Classifier.Predict(ctx, b)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		if _, err := res.EndTimer(); err != nil {
			return err
		}
		slog.Debug("Batch predictions", slog.Int("batch", i), slog.Any("preds", preds), slog.Any("labels", b.Labels))

		if err := res.RecordAcc(preds, b.Labels); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		if err := res.PrintResults(out); err != nil {
			return err
		}
		flush(out)
	}
	return nil
}

// Run dispatches on cfg.TestName.
func Run(ctx context.Context, cfg config.RunConfig, m *Model, open SourceFunc, res *results.Results, out io.Writer) error {
	switch cfg.TestName {
	case config.TestModelSize:
		_, err := PrintModelSize(out, m.Arch)
		return err
	case config.TestForward:
		return Forward(ctx, cfg, m, open, res, out)
	case config.TestBackward:
		// Accepted on the command line but never implemented.
		slog.Warn("Backward pass benchmark is not implemented; nothing to do", slog.String("model", cfg.ModelName))
		return nil
	default:
		return fmt.Errorf("unknown test %q", cfg.TestName)
	}
}
