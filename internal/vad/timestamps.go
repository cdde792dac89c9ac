package vad

import (
	"math"
	"sort"
)

// TimestampMap converts times measured on collected speech back to the
// original audio timeline.
type TimestampMap struct {
	sampleRate         int
	chunkEndSample     []int
	totalSilenceBefore []float64
}

// NewTimestampMap builds a map for chunks produced by Detect.
func NewTimestampMap(chunks []Chunk, sampleRate int) *TimestampMap {
	m := &TimestampMap{sampleRate: sampleRate}
	var previousEnd, silent int
	for _, c := range chunks {
		silent += c.Start - previousEnd
		previousEnd = c.End
		m.chunkEndSample = append(m.chunkEndSample, c.End-silent)
		m.totalSilenceBefore = append(m.totalSilenceBefore, float64(silent)/float64(sampleRate))
	}
	return m
}

// OriginalTime returns the original position of t (seconds of collected
// speech). End timestamps falling exactly on a chunk boundary stay in the
// chunk they close.
func (m *TimestampMap) OriginalTime(t float64, isEnd bool) float64 {
	if m == nil || len(m.chunkEndSample) == 0 {
		return t
	}
	return m.totalSilenceBefore[m.chunkIndex(t, isEnd)] + t
}

func (m *TimestampMap) chunkIndex(t float64, isEnd bool) int {
	// The epsilon absorbs float error when t was itself derived from a sample count.
	sample := int(math.Floor(t*float64(m.sampleRate) + 1e-6))
	if isEnd {
		for i, end := range m.chunkEndSample {
			if end == sample {
				return i
			}
		}
	}
	idx := sort.Search(len(m.chunkEndSample), func(i int) bool {
		return m.chunkEndSample[i] > sample
	})
	return min(idx, len(m.chunkEndSample)-1)
}
