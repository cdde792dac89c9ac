// Package audiotest builds synthetic audio fixtures for tests.
package audiotest

import (
	"math"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Tone returns a sine wave of the given length.
func Tone(seconds float64, freq float64, amplitude float32, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// Silence returns a zeroed buffer of the given length.
func Silence(seconds float64, sampleRate int) []float32 {
	return make([]float32, int(seconds*float64(sampleRate)))
}

// Concat joins sample buffers.
func Concat(parts ...[]float32) []float32 {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]float32, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// WriteWAV stores interleaved samples as 16-bit PCM WAV at path.
func WriteWAV(t testing.TB, path string, samples []float32, sampleRate, channels int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		v := int(math.Round(float64(s) * 32767))
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		data[i] = v
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}
