// Package manifest loads blocked mod manifests: the serialized form of the
// entry set a resolution session is constructed with.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/addityasingh/modmatch/pkg/hashing"
	"github.com/addityasingh/modmatch/pkg/registry"
)

// Mod is one blocked entry as written in a manifest file.
type Mod struct {
	Name string `json:"name" yaml:"name"`
	Hash string `json:"hash" yaml:"hash"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Manifest is a parsed, validated blocked mod manifest.
type Manifest struct {
	// Algorithm names the digest scheme every hash in the manifest uses.
	// Defaults to sha1.
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Mods      []Mod  `json:"mods" yaml:"mods"`
}

// Load reads and validates the manifest at path. The format is chosen by
// extension: .json, or .yaml/.yml.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q (use .json, .yaml, or .yml)", ext)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Algorithm == "" {
		m.Algorithm = hashing.DefaultAlgorithm
	}
	m.Algorithm = strings.ToLower(strings.TrimSpace(m.Algorithm))
	if !hashing.IsSupported(m.Algorithm) {
		return fmt.Errorf("unsupported hash algorithm %q (supported: %s)",
			m.Algorithm, strings.Join(hashing.Supported(), ", "))
	}

	if len(m.Mods) == 0 {
		return fmt.Errorf("manifest lists no mods")
	}

	wantLen := 2 * hashing.DigestSize(m.Algorithm)
	for i := range m.Mods {
		mod := &m.Mods[i]
		mod.Name = strings.TrimSpace(mod.Name)
		mod.Hash = strings.ToLower(strings.TrimSpace(mod.Hash))
		mod.URL = strings.TrimSpace(mod.URL)

		if mod.Name == "" {
			return fmt.Errorf("mod %d: name is required", i)
		}
		if mod.Hash == "" {
			return fmt.Errorf("mod %q: hash is required", mod.Name)
		}
		if len(mod.Hash) != wantLen || !isHex(mod.Hash) {
			return fmt.Errorf("mod %q: hash must be %d hex characters for %s, got %q",
				mod.Name, wantLen, m.Algorithm, mod.Hash)
		}
	}
	return nil
}

// Entries converts the manifest mods into registry entries, preserving order.
func (m *Manifest) Entries() []registry.BlockedMod {
	entries := make([]registry.BlockedMod, len(m.Mods))
	for i, mod := range m.Mods {
		entries[i] = registry.BlockedMod{
			Name: mod.Name,
			Hash: mod.Hash,
			URL:  mod.URL,
		}
	}
	return entries
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
