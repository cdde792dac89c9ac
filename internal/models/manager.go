package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrModelNotFound indicates that the model file is not present locally and
// downloads are disabled.
var ErrModelNotFound = errors.New("models: model file not found")

// Manager keeps model files in a local directory and fetches missing ones.
type Manager struct {
	dir    string
	log    *slog.Logger
	client *http.Client
}

// EnsureOptions controls how EnsureVariant resolves a model file.
type EnsureOptions struct {
	Manifest    Manifest
	ComputeType string
	// Override is an explicit model file path that bypasses the manifest.
	Override      string
	AllowDownload bool
}

// NewManager creates the model directory when needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("models: directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create %s: %w", dir, err)
	}
	return &Manager{
		dir:    dir,
		log:    logger.With("component", "models.Manager"),
		client: &http.Client{Timeout: 30 * time.Minute},
	}, nil
}

// ModelsDir returns the directory holding downloaded files.
func (m *Manager) ModelsDir() string {
	return m.dir
}

// SetHTTPClient replaces the client used for downloads.
func (m *Manager) SetHTTPClient(client *http.Client) {
	if client != nil {
		m.client = client
	}
}

// EnsureVariant returns a local path for the requested variant, downloading
// the file when it is missing and downloads are allowed. A variant that names
// an existing file is used as-is.
func (m *Manager) EnsureVariant(ctx context.Context, variant string, opts EnsureOptions) (string, error) {
	if override := strings.TrimSpace(opts.Override); override != "" {
		if err := requireFile(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if isFile(variant) {
		return variant, nil
	}

	sel, err := opts.Manifest.Select(variant, opts.ComputeType)
	if err != nil {
		return "", err
	}
	if sel.Fallback {
		m.log.Warn("requested compute type not published for variant; using fallback precision",
			"variant", sel.Variant,
			"compute_type", opts.ComputeType,
			"precision", sel.Precision,
		)
	}

	path := filepath.Join(m.dir, sel.File.Filename)
	if isFile(path) {
		m.log.Debug("model file present", "path", path, "precision", sel.Precision)
		return path, nil
	}
	if !opts.AllowDownload {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if sel.File.URL == "" {
		return "", fmt.Errorf("%w: %s (no download URL)", ErrModelNotFound, path)
	}
	if err := m.download(ctx, sel.File, path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) download(ctx context.Context, file File, dest string) error {
	started := time.Now()
	m.log.Info("downloading model", "url", file.URL, "path", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("models: create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("models: download %s: %w", file.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %s: unexpected status %s", file.URL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("models: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return fmt.Errorf("models: write %s: %w", tmpPath, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("models: close %s: %w", tmpPath, closeErr)
	}

	if file.SizeBytes > 0 && written != file.SizeBytes {
		return fmt.Errorf("models: size mismatch for %s: want %d, got %d", file.Filename, file.SizeBytes, written)
	}
	if want := strings.ToLower(strings.TrimSpace(file.SHA256)); want != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); got != want {
			return fmt.Errorf("models: checksum mismatch for %s: want %s, got %s", file.Filename, want, got)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("models: install %s: %w", dest, err)
	}
	m.log.Info("model downloaded",
		"path", dest,
		"bytes", written,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("models: model path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("models: model path %s is a directory", path)
	}
	return nil
}

func isFile(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
