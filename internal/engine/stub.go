package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/workerinfo"
)

const (
	// StubLanguage is reported by the stub when asked to detect.
	StubLanguage = "en"
	// StubLanguageProbability accompanies StubLanguage.
	StubLanguageProbability = 0.9
)

// StubEngine produces deterministic transcripts without invoking Whisper.
// It runs the real decode and VAD pipeline and emits one segment per speech chunk.
type StubEngine struct {
	log          *slog.Logger
	modelVariant string
	decoder      *audio.Decoder
}

// NewStubEngine returns an Engine that generates placeholder transcripts.
func NewStubEngine(logger *slog.Logger, modelVariant string, decoder *audio.Decoder) *StubEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if decoder == nil {
		decoder = audio.NewDecoder("", logger)
	}
	return &StubEngine{
		log: logger.With(
			"component", "engine.stub",
			"worker", workerinfo.Info.Slug,
			"model_variant", modelVariant,
		),
		modelVariant: modelVariant,
		decoder:      decoder,
	}
}

// Close implements the Engine interface.
func (e *StubEngine) Close() error {
	return nil
}

// Transcribe implements the Engine interface.
func (e *StubEngine) Transcribe(ctx context.Context, path string, opts Options) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared, err := prepareAudio(ctx, e.decoder, path, opts)
	if err != nil {
		return nil, err
	}

	info := Info{
		Language:            StubLanguage,
		LanguageProbability: StubLanguageProbability,
		Duration:            prepared.duration,
		DurationAfterVAD:    prepared.durationAfterVAD(),
	}
	if opts.Language != "" {
		info.Language = opts.Language
		info.LanguageProbability = 1
	}

	chunks := prepared.collectedChunks()
	e.log.Debug("stub transcribe", "path", path, "chunks", len(chunks), "language", info.Language)

	return newLazyStream(info, prepared.timestamps, func() ([]Segment, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segments := make([]Segment, 0, len(chunks))
		for i, c := range chunks {
			segments = append(segments, Segment{
				Start: c[0],
				End:   c[1],
				Text:  fmt.Sprintf(" [stub:%s] speech %d ", e.modelVariant, i+1),
			})
		}
		return segments, nil
	}), nil
}
