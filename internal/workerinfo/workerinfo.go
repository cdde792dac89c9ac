package workerinfo

// Metadata captures static identifiers for the worker binary.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	Version     string
}

// Info describes the current worker.
var Info = Metadata{
	Name:        "Nupi Whisper Worker",
	BinaryName:  "whisper-worker",
	Slug:        "stt-whisper-worker",
	Description: "Transcribes one audio file with a local Whisper model and prints a JSON summary.",
	Version:     "1.0.0",
}

// Version returns the worker version string.
func Version() string {
	return Info.Version
}

// RunMetadata produces the log attributes attached to a transcription run.
func RunMetadata(modelVariant, computeType, language string) map[string]string {
	return map[string]string{
		"worker":        Info.Slug,
		"model_variant": modelVariant,
		"compute_type":  computeType,
		"language":      language,
	}
}
