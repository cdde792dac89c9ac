package transcriber

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/telemetry"
)

type fakeStream struct {
	segments []engine.Segment
	info     engine.Info
	failAt   int
	err      error
	pos      int
	drained  bool
}

func (s *fakeStream) Next() (engine.Segment, error) {
	if s.err != nil && s.pos == s.failAt {
		return engine.Segment{}, s.err
	}
	if s.pos >= len(s.segments) {
		s.drained = true
		return engine.Segment{}, io.EOF
	}
	seg := s.segments[s.pos]
	s.pos++
	return seg, nil
}

// Info is only meaningful after draining, like a real lazy stream.
func (s *fakeStream) Info() engine.Info {
	if !s.drained {
		return engine.Info{}
	}
	return s.info
}

type fakeEngine struct {
	stream  *fakeStream
	err     error
	gotPath string
	gotOpts engine.Options
	closed  bool
}

func (e *fakeEngine) Transcribe(_ context.Context, path string, opts engine.Options) (engine.Stream, error) {
	e.gotPath = path
	e.gotOpts = opts
	if e.err != nil {
		return nil, e.err
	}
	if opts.Observer != nil {
		opts.Observer.ObserveStage(engine.StageDecodeSegments, time.Millisecond)
	}
	return e.stream, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

func newTestTranscriber(eng *fakeEngine, gotLoad *engine.LoadOptions) *Transcriber {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	open := func(_ context.Context, opts engine.LoadOptions) (engine.Engine, error) {
		if gotLoad != nil {
			*gotLoad = opts
		}
		return eng, nil
	}
	return New(open, 2, logger, telemetry.NewRecorder(logger))
}

func transcribeRequest(lang string) Request {
	return Request{
		Action:      ActionTranscribe,
		FilePath:    "/tmp/a.wav",
		Language:    lang,
		ModelSize:   "tiny",
		ComputeType: "int8",
	}
}

func TestRunBuildsResult(t *testing.T) {
	eng := &fakeEngine{stream: &fakeStream{
		segments: []engine.Segment{
			{Start: 0.004, End: 2.345, Text: " สวัสดี "},
			{Start: 2.345, End: 4.1, Text: "ครับ"},
		},
		info: engine.Info{Language: "th", LanguageProbability: 0.98765, Duration: 5.678},
	}}
	var load engine.LoadOptions
	result, err := newTestTranscriber(eng, &load).Run(context.Background(), transcribeRequest("th"))
	require.NoError(t, err)

	assert.Equal(t, engine.LoadOptions{ModelVariant: "tiny", Device: "cpu", ComputeType: "int8", Threads: 2}, load)
	assert.Equal(t, "/tmp/a.wav", eng.gotPath)
	assert.Equal(t, "th", eng.gotOpts.Language)
	assert.Equal(t, 1, eng.gotOpts.BeamSize)
	assert.True(t, eng.gotOpts.VADFilter)
	assert.Equal(t, 500, eng.gotOpts.MinSilenceDurationMs)
	assert.True(t, eng.closed)

	assert.Equal(t, "th", result.DetectedLanguage)
	assert.Equal(t, Number(0.988), result.LanguageProbability)
	assert.Equal(t, Number(5.68), result.Duration)
	assert.Equal(t, "สวัสดี ครับ", result.Text)
	assert.Equal(t, 2, result.SegmentCount)
	assert.Equal(t, []Segment{
		{Start: 0, End: 2.35, Text: "สวัสดี"},
		{Start: 2.35, End: 4.1, Text: "ครับ"},
	}, result.Segments)
}

func TestRunAutoLanguageDetects(t *testing.T) {
	eng := &fakeEngine{stream: &fakeStream{info: engine.Info{Language: "ja", LanguageProbability: 0.5}}}
	result, err := newTestTranscriber(eng, nil).Run(context.Background(), transcribeRequest("auto"))
	require.NoError(t, err)

	assert.Empty(t, eng.gotOpts.Language)
	assert.Equal(t, "ja", result.DetectedLanguage)
	assert.NotNil(t, result.Segments)
	assert.Empty(t, result.Segments)
	assert.Zero(t, result.SegmentCount)
	assert.Empty(t, result.Text)
}

func TestRunPassesLanguageVerbatim(t *testing.T) {
	for _, lang := range []string{"en", "FR", "AUTO", " auto", "Auto"} {
		eng := &fakeEngine{stream: &fakeStream{}}
		_, err := newTestTranscriber(eng, nil).Run(context.Background(), transcribeRequest(lang))
		require.NoError(t, err)
		assert.Equal(t, lang, eng.gotOpts.Language, "only the exact %q sentinel selects detection", LanguageAuto)
	}
}

func TestRunUnsupportedAction(t *testing.T) {
	opened := false
	tr := New(func(context.Context, engine.LoadOptions) (engine.Engine, error) {
		opened = true
		return nil, errors.New("unreachable")
	}, 2, nil, nil)

	req := transcribeRequest("th")
	req.Action = "translate"
	_, err := tr.Run(context.Background(), req)
	require.ErrorIs(t, err, ErrUnsupportedAction)
	assert.False(t, opened)
}

func TestRunOpenFailure(t *testing.T) {
	boom := errors.New("model not found: tiny")
	tr := New(func(context.Context, engine.LoadOptions) (engine.Engine, error) {
		return nil, boom
	}, 2, nil, nil)
	_, err := tr.Run(context.Background(), transcribeRequest("th"))
	require.ErrorIs(t, err, boom)
}

func TestRunTranscribeFailure(t *testing.T) {
	boom := errors.New("open audio file: no such file")
	eng := &fakeEngine{err: boom}
	_, err := newTestTranscriber(eng, nil).Run(context.Background(), transcribeRequest("th"))
	require.ErrorIs(t, err, boom)
	assert.True(t, eng.closed)
}

func TestRunMidStreamFailureDiscardsSegments(t *testing.T) {
	boom := errors.New("decode failed")
	eng := &fakeEngine{stream: &fakeStream{
		segments: []engine.Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}},
		failAt:   1,
		err:      boom,
	}}
	result, err := newTestTranscriber(eng, nil).Run(context.Background(), transcribeRequest("th"))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Result{}, result)
}

func TestRound(t *testing.T) {
	tests := []struct {
		in       float64
		decimals int
		want     Number
	}{
		{2.675, 2, 2.67},
		{0.125, 2, 0.12},
		{0.375, 2, 0.38},
		{1.0005, 3, 1.0},
		{0.98765, 3, 0.988},
		{3, 2, 3},
		{-0.001, 2, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, float64(tc.want), float64(Round(tc.in, tc.decimals)), "Round(%v, %d)", tc.in, tc.decimals)
	}
}

func TestEmitResult(t *testing.T) {
	var buf bytes.Buffer
	err := Emit(&buf, Result{
		DetectedLanguage:    "th",
		LanguageProbability: 1,
		Duration:            3.5,
		Text:                "สวัสดี <b>&",
		SegmentCount:        0,
		Segments:            []Segment{},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"detected_language":"th","language_probability":1.0,"duration":3.5,"text":"สวัสดี <b>&","segmentCount":0,"segments":[]}`,
		buf.String())
}

func TestEmitEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Emit(&buf, Envelope{Error: "ไม่พบไฟล์"}))
	assert.Equal(t, `{"error":"ไม่พบไฟล์"}`, buf.String())
}

func TestNumberMarshal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Emit(&buf, []Number{0, 2, 0.01, 12.34, 1e21, 0.00001}))
	assert.Equal(t, `[0.0,2.0,0.01,12.34,1e+21,1e-05]`, buf.String())
}
