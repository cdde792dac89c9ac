package transcriber

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
)

// Result is the success document written to stdout.
type Result struct {
	DetectedLanguage    string    `json:"detected_language"`
	LanguageProbability Number    `json:"language_probability"`
	Duration            Number    `json:"duration"`
	Text                string    `json:"text"`
	SegmentCount        int       `json:"segmentCount"`
	Segments            []Segment `json:"segments"`
}

// Segment is one transcribed span.
type Segment struct {
	Start Number `json:"start"`
	End   Number `json:"end"`
	Text  string `json:"text"`
}

// Envelope is the failure document written to stdout.
type Envelope struct {
	Error string `json:"error"`
}

// Number is a float written in the shortest round-trip form that always
// keeps a fractional part or exponent, so 3 is written as 3.0.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	if abs := math.Abs(f); abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return []byte(strconv.FormatFloat(f, 'e', -1, 64)), nil
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}

// Round rounds v to the given number of decimals. Halfway cases are resolved
// on the exact binary value, so Round(2.675, 2) is 2.67.
func Round(v float64, decimals int) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number(v)
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return Number(v)
	}
	return Number(rounded)
}

// Emit writes v as a single JSON document without HTML escaping or a
// trailing newline.
func Emit(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}
