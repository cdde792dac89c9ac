package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
)

// Fingerprint streams url and returns the SHA-256 and length of its body.
func Fingerprint(ctx context.Context, client *http.Client, url string) (string, int64, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("models: create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("models: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("models: fetch %s: unexpected status %s", url, resp.Status)
	}

	hasher := sha256.New()
	written, err := io.Copy(hasher, resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("models: read %s: %w", url, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}

// Refresh recomputes the checksum and size of every file that has a URL.
// Files that cannot be fetched keep their previous values and are reported
// through onError.
func (m Manifest) Refresh(ctx context.Context, client *http.Client, onError func(variant, precision string, err error)) Manifest {
	for _, name := range m.VariantNames() {
		variant := m.Variants[name]
		for precision, file := range variant.Files {
			if file.URL == "" {
				continue
			}
			sum, size, err := Fingerprint(ctx, client, file.URL)
			if err != nil {
				if onError != nil {
					onError(name, precision, err)
				}
				continue
			}
			file.SHA256 = sum
			file.SizeBytes = size
			variant.Files[precision] = file
		}
		m.Variants[name] = variant
	}
	return m
}
