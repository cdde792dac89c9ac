package engine

import (
	"context"
	"time"
)

// Engine transcribes whole audio files with a Whisper-family model.
type Engine interface {
	// Transcribe prepares the audio at path and returns a lazily decoded
	// stream of segments.
	Transcribe(ctx context.Context, path string, opts Options) (Stream, error)
	// Close releases underlying resources.
	Close() error
}

// Stream yields segments in non-decreasing start order.
type Stream interface {
	// Next returns the next segment, or io.EOF once the stream is exhausted.
	Next() (Segment, error)
	// Info describes the transcription. It is final once Next has returned io.EOF.
	Info() Info
}

// Options configures decoding for a single file.
type Options struct {
	// Language forces the spoken language; empty means detect.
	Language string
	// BeamSize is the decoding search breadth; 1 is greedy decoding.
	BeamSize int
	// VADFilter drops non-speech regions before decoding.
	VADFilter bool
	// MinSilenceDurationMs is the pause length that closes a speech chunk.
	MinSilenceDurationMs int
	// Observer receives stage timings when set.
	Observer StageObserver
}

// LoadOptions selects and loads a model.
type LoadOptions struct {
	ModelVariant string
	// ModelPath bypasses variant resolution when set.
	ModelPath   string
	Device      string
	ComputeType string
	// Threads is the CPU thread hint; zero lets the engine decide.
	Threads int
}

// Segment is a transcribed span of the original audio, in seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Info summarises a transcription.
type Info struct {
	Language            string
	LanguageProbability float64
	// Duration is the length of the input audio in seconds.
	Duration float64
	// DurationAfterVAD is the length of audio actually decoded.
	DurationAfterVAD float64
}

// DeviceCPU is the only supported inference device.
const DeviceCPU = "cpu"

// StageObserver receives the duration of each pipeline stage.
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration)
}

// Pipeline stage names reported to a StageObserver.
const (
	StageDecodeAudio    = "decode_audio"
	StageVAD            = "vad"
	StageDetectLanguage = "detect_language"
	StageDecodeSegments = "decode_segments"
)

func observe(o StageObserver, stage string, started time.Time) {
	if o == nil {
		return
	}
	o.ObserveStage(stage, time.Since(started))
}
