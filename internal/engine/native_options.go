package engine

import (
	"log/slog"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
)

// NativeOptions configures the whisper.cpp backend.
type NativeOptions struct {
	ModelPath string
	// Threads is the inference thread count; zero uses every CPU.
	Threads int
	Decoder *audio.Decoder
	Logger  *slog.Logger
}
