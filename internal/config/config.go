package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultLanguage    = "th"
	DefaultModel       = "tiny"
	DefaultComputeType = "int8"
	DefaultThreads     = 2
	DefaultLogLevel    = "warn"
	DefaultFFmpegPath  = "ffmpeg"
	// DefaultModelDir is used when the user cache directory cannot be determined.
	DefaultModelDir = "data/models"
)

// Config captures worker configuration extracted from environment variables,
// an optional env file and an optional JSON payload (`WHISPER_WORKER_CONFIG`).
type Config struct {
	// Language, ModelVariant and ComputeType are the defaults for the
	// matching command-line options.
	Language     string `env:"DEFAULT_LANG"`
	ModelVariant string `env:"WHISPER_MODEL"`
	ComputeType  string `env:"WHISPER_COMPUTE_TYPE"`

	// Threads is the CPU thread hint forwarded to the engine. Zero lets the
	// engine pick.
	Threads *int `env:"OMP_NUM_THREADS"`

	ModelDir      string `env:"WHISPER_MODEL_DIR"`
	ModelPath     string `env:"WHISPER_MODEL_PATH"`
	AllowDownload *bool  `env:"WHISPER_ALLOW_DOWNLOAD"`
	UseStubEngine bool   `env:"WHISPER_USE_STUB_ENGINE"`
	FFmpegPath    string `env:"FFMPEG_BIN"`
	LogLevel      string `env:"WHISPER_LOG_LEVEL"`
}

// Validate applies defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.ModelVariant == "" {
		c.ModelVariant = DefaultModel
	}
	if c.ComputeType == "" {
		c.ComputeType = DefaultComputeType
	}
	if c.Threads == nil {
		threads := DefaultThreads
		c.Threads = &threads
	}
	if *c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", *c.Threads)
	}
	if c.ModelDir == "" {
		c.ModelDir = DefaultModelDirectory()
	}
	if c.AllowDownload == nil {
		allow := true
		c.AllowDownload = &allow
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = DefaultFFmpegPath
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return nil
}

// ThreadCount returns the configured thread hint, or DefaultThreads before
// Validate has run.
func (c Config) ThreadCount() int {
	if c.Threads == nil {
		return DefaultThreads
	}
	return *c.Threads
}

// DownloadsAllowed reports whether missing model files may be fetched.
func (c Config) DownloadsAllowed() bool {
	return c.AllowDownload == nil || *c.AllowDownload
}

// DefaultModelDirectory returns the model cache used when WHISPER_MODEL_DIR is
// unset: the user cache directory, or DefaultModelDir if that is unknown.
func DefaultModelDirectory() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		return DefaultModelDir
	}
	return filepath.Join(base, "whisper-worker", "models")
}
