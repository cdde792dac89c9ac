package engine

import (
	"io"

	"github.com/nupi-ai/plugin-stt-whisper-worker/internal/vad"
)

// lazyStream decodes on the first call to Next and then replays the decoded
// segments with timestamps restored onto the original timeline.
type lazyStream struct {
	decode     func() ([]Segment, error)
	timestamps *vad.TimestampMap
	limit      float64
	info       Info

	started  bool
	segments []Segment
	pos      int
	err      error
}

func newLazyStream(info Info, timestamps *vad.TimestampMap, decode func() ([]Segment, error)) *lazyStream {
	return &lazyStream{
		decode:     decode,
		timestamps: timestamps,
		limit:      info.DurationAfterVAD,
		info:       info,
	}
}

func (s *lazyStream) Next() (Segment, error) {
	if s.err != nil {
		return Segment{}, s.err
	}
	if !s.started {
		s.started = true
		segments, err := s.decode()
		if err != nil {
			s.err = err
			return Segment{}, err
		}
		s.segments = segments
	}
	if s.pos >= len(s.segments) {
		return Segment{}, io.EOF
	}
	seg := s.restore(s.segments[s.pos])
	s.pos++
	return seg, nil
}

func (s *lazyStream) Info() Info {
	return s.info
}

func (s *lazyStream) restore(seg Segment) Segment {
	if s.limit > 0 && seg.End > s.limit {
		seg.End = s.limit
	}
	if seg.Start > seg.End {
		seg.Start = seg.End
	}
	if s.timestamps == nil {
		return seg
	}
	seg.Start = s.timestamps.OriginalTime(seg.Start, false)
	seg.End = s.timestamps.OriginalTime(seg.End, true)
	if seg.Start > seg.End {
		seg.Start = seg.End
	}
	return seg
}
