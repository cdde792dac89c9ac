package models

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var embeddedManifest []byte

var (
	// ErrUnknownVariant is returned when a model variant is not listed in the manifest.
	ErrUnknownVariant = errors.New("models: unknown model variant")
	// ErrUnsupportedComputeType is returned when a compute type has no matching precision.
	ErrUnsupportedComputeType = errors.New("models: unsupported compute type")
)

// Manifest lists the downloadable model files per variant and maps compute
// types onto the quantisation of the files.
type Manifest struct {
	Variants          map[string]Variant `yaml:"variants"`
	Aliases           map[string]string  `yaml:"aliases,omitempty"`
	ComputeTypes      map[string]string  `yaml:"compute_types"`
	FallbackPrecision string             `yaml:"fallback_precision"`
}

// Variant describes one pretrained model size.
type Variant struct {
	DisplayName string          `yaml:"display_name"`
	EnglishOnly bool            `yaml:"english_only"`
	Files       map[string]File `yaml:"files"`
}

// File is a single ggml model file.
type File struct {
	Filename  string `yaml:"filename"`
	URL       string `yaml:"url"`
	SHA256    string `yaml:"sha256,omitempty"`
	SizeBytes int64  `yaml:"size_bytes,omitempty"`
}

// Selection is the outcome of resolving a variant and compute type.
type Selection struct {
	Variant     string
	Precision   string
	EnglishOnly bool
	File        File
	// Fallback is set when the requested precision is not published for the
	// variant and FallbackPrecision was used instead.
	Fallback bool
}

// DefaultManifest parses the manifest embedded in the binary.
func DefaultManifest() (Manifest, error) {
	return LoadManifest(bytes.NewReader(embeddedManifest))
}

// LoadManifest decodes and validates a YAML manifest.
func LoadManifest(r io.Reader) (Manifest, error) {
	var manifest Manifest
	if err := yaml.NewDecoder(r).Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("models: decode manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Validate checks that every variant lists at least one usable file.
func (m Manifest) Validate() error {
	if len(m.Variants) == 0 {
		return errors.New("models: manifest is empty")
	}
	for name, variant := range m.Variants {
		if len(variant.Files) == 0 {
			return fmt.Errorf("models: variant %q has no files", name)
		}
		for precision, file := range variant.Files {
			if strings.TrimSpace(file.Filename) == "" {
				return fmt.Errorf("models: variant %q precision %q has no filename", name, precision)
			}
		}
	}
	for alias, target := range m.Aliases {
		if _, ok := m.Variants[target]; !ok {
			return fmt.Errorf("models: alias %q points to unknown variant %q", alias, target)
		}
	}
	return nil
}

// VariantNames returns the sorted list of variant names.
func (m Manifest) VariantNames() []string {
	names := make([]string, 0, len(m.Variants))
	for name := range m.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves a variant name (or alias) and a compute type to a model file.
// A compute type may also name a precision directly, e.g. "q5_1".
func (m Manifest) Select(variantName, computeType string) (Selection, error) {
	name := strings.TrimSpace(variantName)
	if target, ok := m.Aliases[name]; ok {
		name = target
	}
	variant, ok := m.Variants[name]
	if !ok {
		return Selection{}, fmt.Errorf("%w %q, expected one of: %s", ErrUnknownVariant, variantName, strings.Join(m.VariantNames(), ", "))
	}

	computeType = strings.ToLower(strings.TrimSpace(computeType))
	precision, ok := m.ComputeTypes[computeType]
	if !ok {
		if _, direct := variant.Files[computeType]; !direct {
			return Selection{}, fmt.Errorf("%w %q", ErrUnsupportedComputeType, computeType)
		}
		precision = computeType
	}

	sel := Selection{
		Variant:     name,
		Precision:   precision,
		EnglishOnly: variant.EnglishOnly,
	}
	if file, ok := variant.Files[precision]; ok {
		sel.File = file
		return sel, nil
	}

	fallback, ok := variant.Files[m.FallbackPrecision]
	if !ok {
		return Selection{}, fmt.Errorf("%w %q for variant %q", ErrUnsupportedComputeType, computeType, name)
	}
	sel.Precision = m.FallbackPrecision
	sel.File = fallback
	sel.Fallback = true
	return sel, nil
}

// Encode writes the manifest as YAML.
func (m Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("models: encode manifest: %w", err)
	}
	return enc.Close()
}
