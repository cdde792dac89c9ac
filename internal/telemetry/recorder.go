package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Recorder tracks worker-level telemetry across transcription runs.
type Recorder struct {
	log *slog.Logger

	totalRuns       atomic.Uint64
	activeRuns      atomic.Int64
	failedRuns      atomic.Uint64
	totalSegments   atomic.Uint64
	totalRunes      atomic.Uint64
	totalAudioMilli atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalRuns      uint64
	ActiveRuns     int64
	FailedRuns     uint64
	TotalSegments  uint64
	TotalRunes     uint64
	TotalAudioTime time.Duration
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalRuns:      r.totalRuns.Load(),
		ActiveRuns:     r.activeRuns.Load(),
		FailedRuns:     r.failedRuns.Load(),
		TotalSegments:  r.totalSegments.Load(),
		TotalRunes:     r.totalRunes.Load(),
		TotalAudioTime: time.Duration(r.totalAudioMilli.Load()) * time.Millisecond,
	}
}

// RunMetrics accumulates statistics for a single transcription run.
type RunMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	started time.Time

	mu       sync.Mutex
	stages   map[string]time.Duration
	segments int
	runes    int
	audio    float64
	closed   atomic.Bool
}

// StartRun initialises a RunMetrics instance bound to the recorder.
func (r *Recorder) StartRun(metadata map[string]string) *RunMetrics {
	if r == nil {
		return nil
	}

	runLogger := r.log
	if cloned := cloneMetadata(metadata); len(cloned) > 0 {
		runLogger = runLogger.With("metadata", cloned)
	}

	r.totalRuns.Add(1)
	r.activeRuns.Add(1)

	return &RunMetrics{
		recorder: r,
		log:      runLogger,
		started:  time.Now(),
		stages:   make(map[string]time.Duration),
	}
}

// ObserveStage accumulates the time spent in a pipeline stage.
func (m *RunMetrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.stages[stage] += elapsed
	m.mu.Unlock()

	m.log.Debug("stage completed", "stage", stage, "elapsed_ms", elapsed.Milliseconds())
}

// RecordSegment counts an emitted segment.
func (m *RunMetrics) RecordSegment(text string) {
	if m == nil {
		return
	}
	runes := utf8.RuneCountInString(text)
	m.mu.Lock()
	m.segments++
	m.runes += runes
	m.mu.Unlock()

	m.recorder.totalSegments.Add(1)
	m.recorder.totalRunes.Add(uint64(runes))
}

// RecordAudio stores the input duration in seconds.
func (m *RunMetrics) RecordAudio(seconds float64) {
	if m == nil || seconds <= 0 {
		return
	}
	m.mu.Lock()
	m.audio = seconds
	m.mu.Unlock()
	m.recorder.totalAudioMilli.Add(uint64(seconds * 1000))
}

// Stage returns the accumulated duration of a stage.
func (m *RunMetrics) Stage(stage string) time.Duration {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stages[stage]
}

// Finish logs a summary and updates active run counters. Only the first call has effect.
func (m *RunMetrics) Finish(err error) {
	if m == nil {
		return
	}
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	defer m.recorder.activeRuns.Add(-1)

	m.mu.Lock()
	args := []any{
		"duration_ms", time.Since(m.started).Milliseconds(),
		"segments", m.segments,
		"runes", m.runes,
		"audio_seconds", m.audio,
	}
	for stage, elapsed := range m.stages {
		args = append(args, "stage_"+stage+"_ms", elapsed.Milliseconds())
	}
	m.mu.Unlock()

	if err != nil {
		m.recorder.failedRuns.Add(1)
		m.log.Error("transcription failed", append(args, "error", err)...)
		return
	}
	m.log.Info("transcription completed", args...)
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
