// Package transcriber runs one transcription request against an engine and
// shapes the outcome into the worker's JSON result.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/telemetry"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/workerinfo"
)

const (
	// ActionTranscribe is the only supported action.
	ActionTranscribe = "transcribe"
	// LanguageAuto asks the engine to detect the spoken language.
	LanguageAuto = "auto"
)

// Decoding policy applied to every request.
const (
	BeamSize             = 1
	VADFilter            = true
	MinSilenceDurationMs = 500
)

// ErrUnsupportedAction is returned for any action other than transcribe.
var ErrUnsupportedAction = errors.New("unsupported action")

// Request is a single validated invocation.
type Request struct {
	Action      string
	FilePath    string
	Language    string
	ModelSize   string
	ComputeType string
}

// Opener loads an engine for the given options.
type Opener func(ctx context.Context, opts engine.LoadOptions) (engine.Engine, error)

// Transcriber executes requests.
type Transcriber struct {
	open    Opener
	threads int
	log     *slog.Logger
	metrics *telemetry.Recorder
}

// New returns a Transcriber that loads engines through open with the given
// CPU thread hint. recorder may be nil.
func New(open Opener, threads int, logger *slog.Logger, recorder *telemetry.Recorder) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		open:    open,
		threads: threads,
		log:     logger.With("component", "transcriber"),
		metrics: recorder,
	}
}

// Run transcribes req.FilePath. Partial results are discarded on error.
func (t *Transcriber) Run(ctx context.Context, req Request) (result Result, err error) {
	if req.Action != ActionTranscribe {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedAction, req.Action)
	}

	// Only the exact sentinel selects detection; any other hint is forwarded as given.
	language := req.Language
	if language == LanguageAuto {
		language = ""
	}

	run := t.metrics.StartRun(workerinfo.RunMetadata(req.ModelSize, req.ComputeType, req.Language))
	defer func() { run.Finish(err) }()

	eng, err := t.open(ctx, engine.LoadOptions{
		ModelVariant: req.ModelSize,
		Device:       engine.DeviceCPU,
		ComputeType:  req.ComputeType,
		Threads:      t.threads,
	})
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			t.log.Warn("engine close failed", "error", cerr)
		}
	}()

	stream, err := eng.Transcribe(ctx, req.FilePath, engine.Options{
		Language:             language,
		BeamSize:             BeamSize,
		VADFilter:            VADFilter,
		MinSilenceDurationMs: MinSilenceDurationMs,
		Observer:             run,
	})
	if err != nil {
		return Result{}, err
	}

	segments := []Segment{}
	texts := []string{}
	for {
		seg, nextErr := stream.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return Result{}, nextErr
		}
		text := strings.TrimSpace(seg.Text)
		segments = append(segments, Segment{
			Start: Round(seg.Start, 2),
			End:   Round(seg.End, 2),
			Text:  text,
		})
		texts = append(texts, text)
		run.RecordSegment(text)
	}

	// Info is final only once the stream is drained.
	info := stream.Info()
	run.RecordAudio(info.Duration)
	t.log.Debug("transcription drained",
		"segments", len(segments),
		"language", info.Language,
		"duration_after_vad", info.DurationAfterVAD,
	)

	return Result{
		DetectedLanguage:    info.Language,
		LanguageProbability: Round(info.LanguageProbability, 3),
		Duration:            Round(info.Duration, 2),
		Text:                strings.Join(texts, " "),
		SegmentCount:        len(segments),
		Segments:            segments,
	}, nil
}
