package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// EnvFileVar names an optional dotenv file merged beneath the process environment.
	EnvFileVar = "WHISPER_ENV_FILE"
	// PayloadVar carries an optional JSON document injected by the parent process.
	PayloadVar = "WHISPER_WORKER_CONFIG"
)

// Loader loads configuration from environment variables. Tests can set
// Environ to inject deterministic maps.
type Loader struct {
	Environ map[string]string
}

// Load retrieves the worker configuration and validates it.
// Priority: environment variables > JSON payload > env file > defaults.
func (l Loader) Load() (Config, error) {
	environ := l.Environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	environ, err := mergeEnvFile(environ)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if raw, ok := environ[PayloadVar]; ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: trimmed(environ)}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeEnvFile(environ map[string]string) (map[string]string, error) {
	path := strings.TrimSpace(environ[EnvFileVar])
	if path == "" {
		return environ, nil
	}
	fileEnv, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	merged := make(map[string]string, len(environ)+len(fileEnv))
	for k, v := range fileEnv {
		merged[k] = v
	}
	for k, v := range environ {
		merged[k] = v
	}
	return merged, nil
}

// trimmed drops blank values so that an exported-but-empty variable does not
// clobber the payload or the defaults.
func trimmed(environ map[string]string) map[string]string {
	out := make(map[string]string, len(environ))
	for k, v := range environ {
		if value := strings.TrimSpace(v); value != "" {
			out[k] = value
		}
	}
	return out
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		Language      string `json:"language"`
		ModelVariant  string `json:"model_variant"`
		ComputeType   string `json:"compute_type"`
		Threads       *int   `json:"threads"`
		ModelDir      string `json:"model_dir"`
		ModelPath     string `json:"model_path"`
		AllowDownload *bool  `json:"allow_download"`
		UseStubEngine bool   `json:"use_stub_engine"`
		FFmpegPath    string `json:"ffmpeg_path"`
		LogLevel      string `json:"log_level"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode %s: %w", PayloadVar, err)
	}
	cfg.Language = payload.Language
	cfg.ModelVariant = payload.ModelVariant
	cfg.ComputeType = payload.ComputeType
	cfg.Threads = payload.Threads
	cfg.ModelDir = payload.ModelDir
	cfg.ModelPath = payload.ModelPath
	cfg.AllowDownload = payload.AllowDownload
	cfg.UseStubEngine = payload.UseStubEngine
	cfg.FFmpegPath = payload.FFmpegPath
	cfg.LogLevel = payload.LogLevel
	return nil
}
