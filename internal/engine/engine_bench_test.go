package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio/audiotest"
)

func BenchmarkStubTranscribe(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.wav")
	samples := audiotest.Concat(
		audiotest.Tone(5, 300, 0.4, audio.SampleRate),
		audiotest.Silence(1, audio.SampleRate),
		audiotest.Tone(5, 300, 0.4, audio.SampleRate),
	)
	audiotest.WriteWAV(b, path, samples, audio.SampleRate, 1)

	eng := NewStubEngine(discardLogger(), "tiny", nil)
	opts := Options{BeamSize: 1, VADFilter: true, MinSilenceDurationMs: 500}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stream, err := eng.Transcribe(context.Background(), path, opts)
		if err != nil {
			b.Fatalf("Transcribe: %v", err)
		}
		for {
			if _, err := stream.Next(); err != nil {
				break
			}
		}
	}
}
