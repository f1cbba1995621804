package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	TestModelSize = "model_size"
	TestForward   = "forward"
	TestBackward  = "backward"

	ModelVGG16       = "vgg_16"
	ModelInceptionV3 = "inception_v3"
)

var (
	TestNames  = []string{TestModelSize, TestForward, TestBackward}
	ModelNames = []string{ModelVGG16, ModelInceptionV3}

	ErrUsage = errors.New("usage")
)

type ModelSource struct {
	URL  string `toml:"url" mapstructure:"url"`
	File string `toml:"file" mapstructure:"file"`
}

// File is the optional config.toml. Every field only supplies a default; CLI
// flags win.
type File struct {
	Libonnx       string                 `toml:"libonnx" mapstructure:"libonnx"`
	ModelDir      string                 `toml:"model_dir" mapstructure:"model_dir"`
	InputDir      string                 `toml:"input_dir" mapstructure:"input_dir"`
	Workers       int                    `toml:"workers" mapstructure:"workers"`
	QueueCapacity int                    `toml:"queue_capacity" mapstructure:"queue_capacity"`
	Threads       int                    `toml:"intra_op_threads" mapstructure:"intra_op_threads"`
	StatusAddr    string                 `toml:"status_addr" mapstructure:"status_addr"`
	Token         string                 `toml:"token" mapstructure:"token"`
	LogLevel      string                 `toml:"log_level" mapstructure:"log_level"`
	Models        map[string]ModelSource `toml:"models" mapstructure:"models"`
}

// RunConfig is built once at startup and passed to every component.
type RunConfig struct {
	TestName      string
	ModelName     string
	InputDir      string
	BatchSize     int
	MaxNumBatches int

	Workers       int
	QueueCapacity int
	Threads       int
	StatusAddr    string
	StatusToken   string
	LogLevel      string
	Libonnx       string
	ModelDir      string
	Models        map[string]ModelSource
}

func defaults() File {
	return File{
		ModelDir:      "models",
		InputDir:      "/home/ubuntu/imagenet/",
		Workers:       4,
		QueueCapacity: 64,
		LogLevel:      "info",
		Models: map[string]ModelSource{
			// Keras applications exported with tf2onnx. Set url to fetch them on
			// first use.
			ModelVGG16:       {File: "vgg16.onnx"},
			ModelInceptionV3: {File: "inception_v3.onnx"},
		},
	}
}

// LoadFile reads path on top of the built-in defaults. A missing file is not
// an error.
func LoadFile(path string) (File, error) {
	f := defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	fromFile := File{}
	if err := toml.Unmarshal(data, &fromFile); err != nil {
		return f, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	merge(&f, fromFile)
	return f, nil
}

func merge(dst *File, src File) {
	if src.Libonnx != "" {
		dst.Libonnx = src.Libonnx
	}
	if src.ModelDir != "" {
		dst.ModelDir = src.ModelDir
	}
	if src.InputDir != "" {
		dst.InputDir = src.InputDir
	}
	if src.Workers > 0 {
		dst.Workers = src.Workers
	}
	if src.QueueCapacity > 0 {
		dst.QueueCapacity = src.QueueCapacity
	}
	if src.Threads > 0 {
		dst.Threads = src.Threads
	}
	if src.StatusAddr != "" {
		dst.StatusAddr = src.StatusAddr
	}
	if src.Token != "" {
		dst.Token = src.Token
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	for name, m := range src.Models {
		cur := dst.Models[name]
		if m.URL != "" {
			cur.URL = m.URL
		}
		if m.File != "" {
			cur.File = m.File
		}
		dst.Models[name] = cur
	}
}

// Parse builds a RunConfig from command-line arguments (without the program
// name). Usage problems wrap ErrUsage.
func Parse(args []string, stderr io.Writer) (RunConfig, error) {
	fs := flag.NewFlagSet("imagenetbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: imagenetbench [flags] {%s} {%s}\n",
			joinChoices(TestNames), joinChoices(ModelNames))
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "config.toml", "Path to an optional TOML config file.")
	inputDir := fs.String("input_dir", "", "Input directory with images.")
	batchSize := fs.Int("batch_size", 8, "How many images process at one time.")
	maxNumBatches := fs.Int("max_num_batches", 2, "Max number of batches to evaluate.")
	workers := fs.Int("workers", 0, "Number of image decoding workers.")
	queueCapacity := fs.Int("queue_capacity", 0, "Capacity of the decoded image queue.")
	statusAddr := fs.String("status_addr", "", "Serve run status over HTTP on this address.")
	logLevel := fs.String("log_level", "", "Log level: debug, info, warn or error.")

	if err := fs.Parse(args); err != nil {
		return RunConfig{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return RunConfig{}, fmt.Errorf("%w: expected test_name and model_name, got %d arguments", ErrUsage, fs.NArg())
	}
	testName, modelName := fs.Arg(0), fs.Arg(1)
	if !slices.Contains(TestNames, testName) {
		return RunConfig{}, fmt.Errorf("%w: invalid test_name %q (choose from %s)", ErrUsage, testName, joinChoices(TestNames))
	}
	if !slices.Contains(ModelNames, modelName) {
		return RunConfig{}, fmt.Errorf("%w: invalid model_name %q (choose from %s)", ErrUsage, modelName, joinChoices(ModelNames))
	}
	if *batchSize <= 0 {
		return RunConfig{}, fmt.Errorf("%w: batch_size must be positive", ErrUsage)
	}
	if *maxNumBatches < 0 {
		return RunConfig{}, fmt.Errorf("%w: max_num_batches must not be negative", ErrUsage)
	}

	f, err := LoadFile(*configPath)
	if err != nil {
		return RunConfig{}, err
	}

	cfg := RunConfig{
		TestName:      testName,
		ModelName:     modelName,
		InputDir:      f.InputDir,
		BatchSize:     *batchSize,
		MaxNumBatches: *maxNumBatches,
		Workers:       f.Workers,
		QueueCapacity: f.QueueCapacity,
		Threads:       f.Threads,
		StatusAddr:    f.StatusAddr,
		StatusToken:   f.Token,
		LogLevel:      f.LogLevel,
		Libonnx:       f.Libonnx,
		ModelDir:      f.ModelDir,
		Models:        f.Models,
	}
	if *inputDir != "" {
		cfg.InputDir = *inputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *queueCapacity > 0 {
		cfg.QueueCapacity = *queueCapacity
	}
	if *statusAddr != "" {
		cfg.StatusAddr = *statusAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	return cfg, nil
}

func joinChoices(choices []string) string {
	return strings.Join(choices, ",")
}
