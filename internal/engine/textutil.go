package engine

import "strings"

const blankAudioMarker = "[BLANK_AUDIO]"

// isBlankMarker reports whether whisper emitted its placeholder for silence.
func isBlankMarker(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), blankAudioMarker)
}
