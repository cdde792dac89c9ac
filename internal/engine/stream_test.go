package engine

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/vad"
)

func TestLazyStreamDecodesOnce(t *testing.T) {
	calls := 0
	stream := newLazyStream(Info{Language: "en", DurationAfterVAD: 10}, nil, func() ([]Segment, error) {
		calls++
		return []Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}}, nil
	})
	assert.Zero(t, calls, "decode must wait for the first Next")

	segments := drain(t, stream)
	require.Len(t, segments, 2)
	_, err := stream.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "en", stream.Info().Language)
}

func TestLazyStreamStickyError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	stream := newLazyStream(Info{}, nil, func() ([]Segment, error) {
		calls++
		return nil, boom
	})
	_, err := stream.Next()
	require.ErrorIs(t, err, boom)
	_, err = stream.Next()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestLazyStreamRestoresTimestamps(t *testing.T) {
	// Two chunks: [1s,2s) and [3s,4s) of the original audio.
	chunks := []vad.Chunk{{Start: 16000, End: 32000}, {Start: 48000, End: 64000}}
	timestamps := vad.NewTimestampMap(chunks, 16000)

	stream := newLazyStream(Info{DurationAfterVAD: 2}, timestamps, func() ([]Segment, error) {
		return []Segment{
			{Start: 0, End: 1, Text: "first"},
			{Start: 1.5, End: 2.5, Text: "second"},
		}, nil
	})
	segments := drain(t, stream)
	require.Len(t, segments, 2)

	assert.InDelta(t, 1, segments[0].Start, 1e-9)
	assert.InDelta(t, 2, segments[0].End, 1e-9)
	assert.InDelta(t, 3.5, segments[1].Start, 1e-9)
	// End is clamped to the decoded length before mapping.
	assert.InDelta(t, 4, segments[1].End, 1e-9)
}
