//go:build whispercpp

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio/audiotest"
)

// Set WHISPER_TEST_MODEL to a ggml model file to run these tests.
func nativeTestModel(t *testing.T) string {
	t.Helper()
	path := os.Getenv("WHISPER_TEST_MODEL")
	if path == "" {
		t.Skip("WHISPER_TEST_MODEL not set")
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not available: %v", err)
	}
	return path
}

func TestNativeEngineSilence(t *testing.T) {
	modelPath := nativeTestModel(t)
	eng, err := NewNativeEngine(NativeOptions{ModelPath: modelPath, Threads: 2, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewNativeEngine: %v", err)
	}
	defer eng.Close()

	path := filepath.Join(t.TempDir(), "silence.wav")
	audiotest.WriteWAV(t, path, audiotest.Silence(2, audio.SampleRate), audio.SampleRate, 1)

	stream, err := eng.Transcribe(context.Background(), path, Options{BeamSize: 1, VADFilter: true, MinSilenceDurationMs: 500})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if segments := drain(t, stream); len(segments) != 0 {
		t.Fatalf("expected no segments for silence, got %+v", segments)
	}
	if got := stream.Info().Language; got == "" {
		t.Fatalf("expected a language")
	}
}

func TestNativeEngineForcedLanguage(t *testing.T) {
	modelPath := nativeTestModel(t)
	eng, err := NewNativeEngine(NativeOptions{ModelPath: modelPath, Threads: 2, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewNativeEngine: %v", err)
	}
	defer eng.Close()

	path := filepath.Join(t.TempDir(), "tone.wav")
	audiotest.WriteWAV(t, path, audiotest.Tone(2, 440, 0.3, audio.SampleRate), audio.SampleRate, 1)

	stream, err := eng.Transcribe(context.Background(), path, Options{Language: "th", BeamSize: 1, VADFilter: true})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	segments := drain(t, stream)
	for _, seg := range segments {
		if seg.End < seg.Start || seg.End > 2.0001 {
			t.Fatalf("segment outside audio: %+v", seg)
		}
	}
	if native, ok := eng.(*NativeEngine); ok && native.multilingual {
		if info := stream.Info(); info.Language != "th" || info.LanguageProbability != 1 {
			t.Fatalf("unexpected info: %+v", info)
		}
	}
}

func TestNativeEngineRejectsUnknownLanguageCode(t *testing.T) {
	modelPath := nativeTestModel(t)
	eng, err := NewNativeEngine(NativeOptions{ModelPath: modelPath, Threads: 2, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewNativeEngine: %v", err)
	}
	defer eng.Close()
	if native, ok := eng.(*NativeEngine); !ok || !native.multilingual {
		t.Skip("english-only model ignores the language")
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	audiotest.WriteWAV(t, path, audiotest.Tone(1, 440, 0.3, audio.SampleRate), audio.SampleRate, 1)

	if _, err := eng.Transcribe(context.Background(), path, Options{Language: "FR", VADFilter: true}); err == nil {
		t.Fatalf("expected upper-case language code to be rejected")
	}
}

func TestNativeEngineCancelled(t *testing.T) {
	modelPath := nativeTestModel(t)
	eng, err := NewNativeEngine(NativeOptions{ModelPath: modelPath, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewNativeEngine: %v", err)
	}
	defer eng.Close()

	path := filepath.Join(t.TempDir(), "tone.wav")
	audiotest.WriteWAV(t, path, audiotest.Tone(2, 440, 0.3, audio.SampleRate), audio.SampleRate, 1)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := eng.Transcribe(ctx, path, Options{Language: "en", VADFilter: true})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	cancel()
	if _, err := stream.Next(); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
