package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// Decoder turns an audio file into mono float32 samples at SampleRate.
// RIFF/WAVE PCM is decoded in-process; other containers go through ffmpeg.
type Decoder struct {
	ffmpeg string
	log    *slog.Logger
}

// NewDecoder returns a Decoder that shells out to ffmpegPath for non-WAV input.
func NewDecoder(ffmpegPath string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Decoder{
		ffmpeg: ffmpegPath,
		log:    logger.With("component", "audio.Decoder"),
	}
}

// Decode reads the file at path and returns its samples.
func (d *Decoder) Decode(ctx context.Context, path string) ([]float32, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open audio file: %s is a directory", path)
	}

	samples, ok, err := d.decodeWAV(path)
	if err != nil {
		return nil, err
	}
	if ok {
		return samples, nil
	}
	return d.decodeFFmpeg(ctx, path)
}

// decodeWAV reports ok=false when the file is not PCM WAV so the caller can
// fall back to ffmpeg.
func (d *Decoder) decodeWAV(path string) ([]float32, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() || dec.WavAudioFormat != wavFormatPCM {
		return nil, false, nil
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, false, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil {
		return nil, false, fmt.Errorf("decode wav %s: missing format", path)
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	samples := Resample(Downmix(normalise(buf, int(dec.BitDepth)), channels), rate, SampleRate)

	d.log.Debug("decoded wav",
		"path", path,
		"channels", channels,
		"sample_rate", rate,
		"bit_depth", dec.BitDepth,
		"samples", len(samples),
	)
	return samples, true, nil
}

func normalise(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	out := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range buf.Data {
			out[i] = float32(v-128) / 128.0
		}
		return out
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range buf.Data {
		out[i] = float32(v) / scale
	}
	return out
}

func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) ([]float32, error) {
	cmd := exec.CommandContext(ctx, d.ffmpeg,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le", "-ac", "1", "-ar", fmt.Sprint(SampleRate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("decode %s: ffmpeg not available (%s): %w", path, d.ffmpeg, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("decode %s: ffmpeg: %s", path, msg)
		}
		return nil, fmt.Errorf("decode %s: ffmpeg: %w", path, err)
	}

	samples := PCM16ToFloat32(stdout.Bytes())
	d.log.Debug("decoded via ffmpeg", "path", path, "samples", len(samples))
	return samples, nil
}
