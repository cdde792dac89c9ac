package engine

import (
	"context"
	"time"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/audio"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/vad"
)

// preparedAudio is decoded input reduced to the samples that will be decoded.
type preparedAudio struct {
	duration   float64
	speech     []float32
	chunks     []vad.Chunk
	timestamps *vad.TimestampMap
}

func (p preparedAudio) durationAfterVAD() float64 {
	return audio.Duration(p.speech)
}

func prepareAudio(ctx context.Context, decoder *audio.Decoder, path string, opts Options) (preparedAudio, error) {
	started := time.Now()
	samples, err := decoder.Decode(ctx, path)
	if err != nil {
		return preparedAudio{}, err
	}
	observe(opts.Observer, StageDecodeAudio, started)
	prepared := preparedAudio{duration: audio.Duration(samples)}

	if !opts.VADFilter {
		prepared.speech = samples
		if len(samples) > 0 {
			prepared.chunks = []vad.Chunk{{Start: 0, End: len(samples)}}
		}
		return prepared, nil
	}

	started = time.Now()
	defer observe(opts.Observer, StageVAD, started)

	vadOpts := vad.DefaultOptions()
	if opts.MinSilenceDurationMs > 0 {
		vadOpts.MinSilenceDurationMs = opts.MinSilenceDurationMs
	}
	vadOpts.SampleRate = audio.SampleRate

	prepared.chunks = vad.Detect(samples, vadOpts)
	prepared.speech = vad.Collect(samples, prepared.chunks)
	prepared.timestamps = vad.NewTimestampMap(prepared.chunks, audio.SampleRate)
	return prepared, nil
}

// collectedChunks returns the chunk boundaries on the collected-speech
// timeline, in seconds.
func (p preparedAudio) collectedChunks() [][2]float64 {
	out := make([][2]float64, 0, len(p.chunks))
	var offset int
	for _, c := range p.chunks {
		length := c.End - c.Start
		out = append(out, [2]float64{
			float64(offset) / audio.SampleRate,
			float64(offset+length) / audio.SampleRate,
		})
		offset += length
	}
	return out
}
