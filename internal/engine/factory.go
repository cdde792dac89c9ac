package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/models"
)

// ErrNativeEngineUnavailable indicates the binary was built without the whisper.cpp backend.
var ErrNativeEngineUnavailable = errors.New("engine: native backend unavailable (build with -tags whispercpp)")

// ErrUnsupportedDevice is returned for any device other than cpu.
var ErrUnsupportedDevice = errors.New("engine: unsupported device")

// Open resolves the requested model and returns a ready Engine together with
// the model file it loaded. The path is empty for the stub engine.
func Open(ctx context.Context, cfg config.Config, manager *models.Manager, logger *slog.Logger, opts LoadOptions) (Engine, string, error) {
	manifest, err := models.DefaultManifest()
	if err != nil {
		return nil, "", err
	}
	return open(ctx, cfg, manager, logger, opts, engineOptions{
		ensure: models.EnsureOptions{
			Manifest:      manifest,
			ComputeType:   opts.ComputeType,
			Override:      opts.ModelPath,
			AllowDownload: cfg.DownloadsAllowed(),
		},
	})
}

type engineOptions struct {
	ensure models.EnsureOptions
}

func open(ctx context.Context, cfg config.Config, manager *models.Manager, logger *slog.Logger, opts LoadOptions, eo engineOptions) (Engine, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	device := strings.ToLower(strings.TrimSpace(opts.Device))
	if device != "" && device != DeviceCPU {
		return nil, "", fmt.Errorf("%w %q", ErrUnsupportedDevice, opts.Device)
	}

	decoder := audio.NewDecoder(cfg.FFmpegPath, logger)

	if cfg.UseStubEngine {
		logger.Warn("stub engine forced by configuration")
		return NewStubEngine(logger, opts.ModelVariant, decoder), "", nil
	}

	if !NativeAvailable() {
		return nil, "", ErrNativeEngineUnavailable
	}
	if manager == nil {
		return nil, "", errors.New("engine: model manager unavailable")
	}
	if len(eo.ensure.Manifest.Variants) == 0 {
		return nil, "", errors.New("models: manifest is empty")
	}

	modelPath, err := manager.EnsureVariant(ctx, opts.ModelVariant, eo.ensure)
	if err != nil {
		return nil, "", err
	}

	native, err := NewNativeEngine(NativeOptions{
		ModelPath: modelPath,
		Threads:   opts.Threads,
		Decoder:   decoder,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("native engine initialisation failed", "error", err, "model_path", modelPath)
		return nil, modelPath, err
	}
	logger.Info("native engine ready", "model_path", modelPath, "compute_type", opts.ComputeType)
	return native, modelPath, nil
}
