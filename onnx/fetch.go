package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	fetchTimeout  = 30 * time.Minute
	maxRetryCount = 3
	retryDelay    = time.Second
)

var ErrNoWeights = errors.New("model weights not found")

// EnsureWeights downloads url to path unless path already exists. The file is
// written under a temporary name and renamed once complete.
func EnsureWeights(ctx context.Context, url, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if url == "" {
		return fmt.Errorf("%w at %s and no download url configured", ErrNoWeights, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}
	tmp := path + ".part"
	defer os.Remove(tmp)

	slog.Info("Downloading model weights", slog.String("url", url), slog.String("path", path))
	client := resty.New().
		SetTimeout(fetchTimeout).
		SetRetryCount(maxRetryCount).
		SetRetryWaitTime(retryDelay)

	resp, err := client.R().SetContext(ctx).SetOutput(tmp).Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to download %s: %s", url, resp.Status())
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move weights into place: %w", err)
	}
	slog.Info("Downloaded model weights", slog.String("path", path), slog.Duration("took", resp.Time()))
	return nil
}
