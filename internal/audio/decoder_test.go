package audio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio/audiotest"
)

func newTestDecoder(ffmpeg string) *Decoder {
	return NewDecoder(ffmpeg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDecodeWAVMono16k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	tone := audiotest.Tone(1, 440, 0.5, SampleRate)
	audiotest.WriteWAV(t, path, tone, SampleRate, 1)

	samples, err := newTestDecoder("").Decode(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, samples, len(tone))
	assert.InDelta(t, 1.0, Duration(samples), 1e-9)
	for i := 0; i < len(tone); i += 997 {
		assert.InDelta(t, tone[i], samples[i], 1e-3)
	}
}

func TestDecodeWAVStereo44kIsResampled(t *testing.T) {
	const rate = 44100
	mono := audiotest.Tone(0.5, 220, 0.4, rate)
	stereo := make([]float32, 0, len(mono)*2)
	for _, s := range mono {
		stereo = append(stereo, s, s)
	}
	path := filepath.Join(t.TempDir(), "stereo.wav")
	audiotest.WriteWAV(t, path, stereo, rate, 2)

	samples, err := newTestDecoder("").Decode(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, Duration(samples), 0.001)
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := newTestDecoder("").Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
}

func TestDecodeDirectory(t *testing.T) {
	_, err := newTestDecoder("").Decode(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestDecodeNonWAVWithoutFFmpeg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3 not really mp3"), 0o644))

	_, err := newTestDecoder(filepath.Join(t.TempDir(), "no-ffmpeg")).Decode(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg")
}

func TestPCM16ToFloat32(t *testing.T) {
	buf := []byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80, 0x01}
	got := PCM16ToFloat32(buf)
	require.Len(t, got, 3, "trailing odd byte is ignored")
	assert.Equal(t, float32(0), got[0])
	assert.InDelta(t, 32767.0/32768.0, got[1], 1e-7)
	assert.Equal(t, float32(-1), got[2])
	assert.Nil(t, PCM16ToFloat32([]byte{0x01}))
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0}, got)

	mono := []float32{0.1, 0.2}
	assert.Equal(t, mono, Downmix(mono, 1))
}

func TestResample(t *testing.T) {
	in := make([]float32, 32000)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 50))
	}
	out := Resample(in, 32000, SampleRate)
	require.Len(t, out, 16000)
	assert.InDelta(t, in[200], out[100], 1e-6)

	assert.Equal(t, in, Resample(in, SampleRate, SampleRate))
	assert.Empty(t, Resample(nil, 8000, SampleRate))
}
