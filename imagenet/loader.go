// Package imagenet reads an ImageNet-style validation directory and serves
// preprocessed batches from a pool of background decode workers.
package imagenet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoImages = errors.New("no images found")
	ErrClosed   = errors.New("loader closed")
)

// decodable lists the MIME types with a registered image decoder.
var decodable = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
	"image/avif",
}

// Batch holds Size samples in NHWC order and their class indices.
type Batch struct {
	Images []float32
	Labels []int
	Size   int
	Height int
	Width  int
}

type entry struct {
	path  string
	label int
}

type sample struct {
	pixels []float32
	label  int
}

type options struct {
	workers       int
	queueCapacity int
}

type Option func(*options)

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

type Loader struct {
	batchSize  int
	preprocess Preprocessor
	classes    []string
	files      []entry

	cancel  context.CancelFunc
	samples chan sample
	done    chan struct{}
	err     error
}

// LoadValidation scans dir, whose subdirectories are ImageNet synsets, and
// starts the decode workers. The class index of an image is the position of
// its synset directory in lexicographic order. Batches loop over the
// directory indefinitely until Close is called.
func LoadValidation(ctx context.Context, dir string, batchSize int, preprocess Preprocessor, opts ...Option) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size %d", batchSize)
	}
	o := options{workers: 4, queueCapacity: 64}
	for _, opt := range opts {
		opt(&o)
	}

	classes, files, err := scan(dir)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded validation set",
		slog.String("dir", dir),
		slog.Int("classes", len(classes)),
		slog.Int("images", len(files)),
		slog.Int("workers", o.workers))

	ctx, cancel := context.WithCancel(ctx)
	l := &Loader{
		batchSize:  batchSize,
		preprocess: preprocess,
		classes:    classes,
		files:      files,
		cancel:     cancel,
		samples:    make(chan sample, o.queueCapacity),
		done:       make(chan struct{}),
	}
	l.start(ctx, o.workers)
	return l, nil
}

func scan(dir string) ([]string, []entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	var classes []string
	var files []entry
	for _, d := range dirEntries {
		if !d.IsDir() {
			continue
		}
		label := len(classes)
		classes = append(classes, d.Name())

		classDir := filepath.Join(dir, d.Name())
		images, err := os.ReadDir(classDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read class dir %s: %w", classDir, err)
		}
		for _, img := range images {
			if img.IsDir() {
				continue
			}
			path := filepath.Join(classDir, img.Name())
			mt, err := mimetype.DetectFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to detect type of %s: %w", path, err)
			}
			if !slices.ContainsFunc(decodable, mt.Is) {
				slog.Debug("Skipping undecodable file", slog.String("path", path), slog.String("mime", mt.String()))
				continue
			}
			files = append(files, entry{path: path, label: label})
		}
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	return classes, files, nil
}

func (l *Loader) start(ctx context.Context, workers int) {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan entry)

	g.Go(func() error {
		for i := 0; ; i = (i + 1) % len(l.files) {
			select {
			case jobs <- l.files[i]:
			case <-ctx.Done():
				return nil
			}
		}
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				var e entry
				select {
				case e = <-jobs:
				case <-ctx.Done():
					return nil
				}
				img, err := decode(e.path)
				if err != nil {
					return fmt.Errorf("failed to decode %s: %w", e.path, err)
				}
				s := sample{pixels: l.preprocess.Process(img), label: e.label}
				select {
				case l.samples <- s:
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	go func() {
		l.err = g.Wait()
		close(l.samples)
		close(l.done)
	}()
}

func (l *Loader) Classes() []string {
	return l.classes
}

func (l *Loader) NumImages() int {
	return len(l.files)
}

// Next blocks until batchSize samples are available. A cancelled ctx wins
// over samples already queued.
func (l *Loader) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	b := Batch{
		Images: make([]float32, 0, l.batchSize*l.preprocess.SampleLen()),
		Labels: make([]int, 0, l.batchSize),
		Size:   l.batchSize,
		Height: l.preprocess.Size,
		Width:  l.preprocess.Size,
	}
	for len(b.Labels) < l.batchSize {
		select {
		case s, ok := <-l.samples:
			if !ok {
				<-l.done
				if l.err != nil {
					return Batch{}, l.err
				}
				return Batch{}, ErrClosed
			}
			b.Images = append(b.Images, s.pixels...)
			b.Labels = append(b.Labels, s.label)
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		}
	}
	return b, nil
}

// Close signals every worker to stop and waits for all of them to exit. It
// returns the first worker error, if any.
func (l *Loader) Close() error {
	l.cancel()
	<-l.done
	for range l.samples {
	}
	return l.err
}

// Done is closed once every worker has exited.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}
