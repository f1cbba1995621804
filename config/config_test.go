package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noConfig(t *testing.T) string {
	return "--config=" + filepath.Join(t.TempDir(), "missing.toml")
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{noConfig(t), "forward", "vgg_16"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, TestForward, cfg.TestName)
	assert.Equal(t, ModelVGG16, cfg.ModelName)
	assert.Equal(t, "/home/ubuntu/imagenet/", cfg.InputDir)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 2, cfg.MaxNumBatches)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "vgg16.onnx", cfg.Models[ModelVGG16].File)
	assert.Equal(t, "inception_v3.onnx", cfg.Models[ModelInceptionV3].File)
}

func TestParse_Flags(t *testing.T) {
	cfg, err := Parse([]string{
		noConfig(t),
		"--input_dir=/data/val",
		"--batch_size", "32",
		"--max_num_batches=10",
		"--workers=2",
		"--status_addr=:9090",
		"model_size", "inception_v3",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, TestModelSize, cfg.TestName)
	assert.Equal(t, ModelInceptionV3, cfg.ModelName)
	assert.Equal(t, "/data/val", cfg.InputDir)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 10, cfg.MaxNumBatches)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, ":9090", cfg.StatusAddr)
}

func TestParse_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
libonnx = "/opt/onnxruntime/lib/libonnxruntime.so"
model_dir = "/var/models"
input_dir = "/data/imagenet/val"
workers = 8
token = "secret"
log_level = "debug"

[models.vgg_16]
url = "https://example.com/vgg16.onnx"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Parse([]string{"--config", path, "--workers=3", "forward", "vgg_16"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "/opt/onnxruntime/lib/libonnxruntime.so", cfg.Libonnx)
	assert.Equal(t, "/var/models", cfg.ModelDir)
	assert.Equal(t, "/data/imagenet/val", cfg.InputDir)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, "secret", cfg.StatusToken)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ModelSource{URL: "https://example.com/vgg16.onnx", File: "vgg16.onnx"}, cfg.Models[ModelVGG16])
}

func TestParse_BadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("workers = ["), 0o644))

	_, err := Parse([]string{"--config", path, "forward", "vgg_16"}, io.Discard)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUsage)
}

func TestParse_Usage(t *testing.T) {
	cases := map[string][]string{
		"missing model":   {"forward"},
		"extra argument":  {"forward", "vgg_16", "extra"},
		"bad test":        {"training", "vgg_16"},
		"unknown model":   {"forward", "resnet_50"},
		"zero batch size": {"--batch_size=0", "forward", "vgg_16"},
		"negative max":    {"--max_num_batches=-1", "forward", "vgg_16"},
		"unknown flag":    {"--nope", "forward", "vgg_16"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(append([]string{noConfig(t)}, args...), io.Discard)
			assert.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestParse_BackwardAccepted(t *testing.T) {
	cfg, err := Parse([]string{noConfig(t), "backward", "vgg_16"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, TestBackward, cfg.TestName)
}
