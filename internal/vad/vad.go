// Package vad removes non-speech regions from 16 kHz mono audio before
// decoding and maps decoded timestamps back onto the original timeline.
package vad

import (
	"math"
	"sort"
)

// Options configures speech detection. Durations are expressed on the
// original audio timeline.
type Options struct {
	// Threshold is the speech probability above which a window counts as speech.
	Threshold float32
	// MinSpeechDurationMs drops speech chunks shorter than this.
	MinSpeechDurationMs int
	// MaxSpeechDurationS splits chunks longer than this; zero means unbounded.
	MaxSpeechDurationS float64
	// MinSilenceDurationMs is how long a pause must last before a chunk is closed.
	MinSilenceDurationMs int
	// SpeechPadMs extends each chunk on both sides.
	SpeechPadMs int
	// WindowSizeSamples is the analysis window length.
	WindowSizeSamples int
	SampleRate        int
}

// DefaultOptions returns the detector defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:            0.5,
		MinSpeechDurationMs:  250,
		MaxSpeechDurationS:   0,
		MinSilenceDurationMs: 2000,
		SpeechPadMs:          400,
		WindowSizeSamples:    512,
		SampleRate:           16000,
	}
}

// Chunk is a speech region in samples, End exclusive.
type Chunk struct {
	Start int
	End   int
}

const (
	// silenceFloorDB gates windows that are effectively digital silence.
	silenceFloorDB = -60.0
	// flatRangeDB is the minimum spread between noise floor and peak for the
	// relative scale to be meaningful.
	flatRangeDB = 6.0
)

// Probabilities scores each analysis window with a speech likelihood in [0, 1]
// derived from its energy relative to the recording's noise floor and peak.
func Probabilities(samples []float32, window int) []float32 {
	if window <= 0 || len(samples) == 0 {
		return nil
	}
	n := (len(samples) + window - 1) / window
	levels := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * window
		end := start + window
		if end > len(samples) {
			end = len(samples)
		}
		levels[i] = rmsDB(samples[start:end])
	}

	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)
	floor := percentile(sorted, 0.10)
	peak := percentile(sorted, 0.99)

	probs := make([]float32, n)
	for i, level := range levels {
		switch {
		case level < silenceFloorDB:
			probs[i] = 0
		case peak-floor < flatRangeDB:
			probs[i] = 1
		default:
			p := (level - floor) / (peak - floor)
			probs[i] = float32(math.Max(0, math.Min(1, p)))
		}
	}
	return probs
}

// Detect returns the speech chunks of samples.
func Detect(samples []float32, opts Options) []Chunk {
	opts = withDefaults(opts)
	probs := Probabilities(samples, opts.WindowSizeSamples)
	return chunksFromProbabilities(probs, len(samples), opts)
}

func chunksFromProbabilities(probs []float32, audioLength int, opts Options) []Chunk {
	var (
		sr     = opts.SampleRate
		window = opts.WindowSizeSamples

		threshold    = opts.Threshold
		negThreshold = threshold - 0.15

		minSpeech  = sr * opts.MinSpeechDurationMs / 1000
		speechPad  = sr * opts.SpeechPadMs / 1000
		minSilence = sr * opts.MinSilenceDurationMs / 1000
		// Pauses at least this long are split points when a chunk hits the
		// maximum duration.
		minSilenceAtMax = sr * 98 / 1000
	)
	maxSpeech := math.MaxInt
	if opts.MaxSpeechDurationS > 0 && !math.IsInf(opts.MaxSpeechDurationS, 1) {
		maxSpeech = int(float64(sr)*opts.MaxSpeechDurationS) - window - 2*speechPad
	}

	var (
		speeches  []Chunk
		current   Chunk
		triggered bool
		tempEnd   int
		prevEnd   int
		nextStart int
	)
	reset := func() {
		current = Chunk{}
		prevEnd, nextStart, tempEnd = 0, 0, 0
	}

	for i, prob := range probs {
		pos := window * i

		if prob >= threshold && tempEnd != 0 {
			tempEnd = 0
			if nextStart < prevEnd {
				nextStart = pos
			}
		}

		if prob >= threshold && !triggered {
			triggered = true
			current.Start = pos
			continue
		}

		if triggered && pos-current.Start > maxSpeech {
			if prevEnd != 0 {
				current.End = prevEnd
				speeches = append(speeches, current)
				start := nextStart
				restart := nextStart >= prevEnd
				reset()
				if restart {
					current.Start = start
				} else {
					triggered = false
				}
			} else {
				current.End = pos
				speeches = append(speeches, current)
				reset()
				triggered = false
				continue
			}
		}

		if prob < negThreshold && triggered {
			if tempEnd == 0 {
				tempEnd = pos
			}
			if pos-tempEnd > minSilenceAtMax {
				prevEnd = tempEnd
			}
			if pos-tempEnd < minSilence {
				continue
			}
			current.End = tempEnd
			if current.End-current.Start > minSpeech {
				speeches = append(speeches, current)
			}
			reset()
			triggered = false
			continue
		}
	}

	if triggered && audioLength-current.Start > minSpeech {
		current.End = audioLength
		speeches = append(speeches, current)
	}

	for i := range speeches {
		if i == 0 {
			speeches[i].Start = max(0, speeches[i].Start-speechPad)
		}
		if i != len(speeches)-1 {
			silence := speeches[i+1].Start - speeches[i].End
			if silence < 2*speechPad {
				speeches[i].End += silence / 2
				speeches[i+1].Start = max(0, speeches[i+1].Start-silence/2)
			} else {
				speeches[i].End = min(audioLength, speeches[i].End+speechPad)
				speeches[i+1].Start = max(0, speeches[i+1].Start-speechPad)
			}
		} else {
			speeches[i].End = min(audioLength, speeches[i].End+speechPad)
		}
	}
	return speeches
}

// Collect concatenates the speech chunks of samples.
func Collect(samples []float32, chunks []Chunk) []float32 {
	var total int
	for _, c := range chunks {
		total += c.End - c.Start
	}
	out := make([]float32, 0, total)
	for _, c := range chunks {
		out = append(out, samples[c.Start:c.End]...)
	}
	return out
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.MinSilenceDurationMs <= 0 {
		opts.MinSilenceDurationMs = def.MinSilenceDurationMs
	}
	if opts.SpeechPadMs < 0 {
		opts.SpeechPadMs = 0
	}
	if opts.MinSpeechDurationMs < 0 {
		opts.MinSpeechDurationMs = 0
	}
	if opts.WindowSizeSamples <= 0 {
		opts.WindowSizeSamples = def.WindowSizeSamples
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	return opts
}

func rmsDB(frame []float32) float64 {
	if len(frame) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	v := sorted[idx]
	if math.IsInf(v, -1) {
		return silenceFloorDB
	}
	return v
}
