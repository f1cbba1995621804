package onnx

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// LibPath resolves the ONNX Runtime shared library: the configured path, then
// ONNXRUNTIME_LIB, then the platform default.
func LibPath(configured string) string {
	if configured != "" {
		return configured
	}
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "linux":
		return "/usr/local/lib/libonnxruntime.so"
	case "darwin":
		return "/usr/local/lib/libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return ""
	}
}

// InitEnvironment loads the runtime library. The returned func destroys the
// environment.
func InitEnvironment(configured string) (func(), error) {
	path := LibPath(configured)
	if path == "" {
		return nil, fmt.Errorf("ONNX Runtime library path could not be determined for %s", runtime.GOOS)
	}
	slog.Info("Using ONNX Runtime library", slog.String("path", path))

	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	return func() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Error("Failed to destroy ONNX Runtime environment", slog.String("error", err.Error()))
		}
	}, nil
}
