// Package config loads modmatch configuration: the default directories to
// watch and scan tuning knobs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	defaultDownloadDir = "~/Downloads"
	defaultConcurrency = 10
	defaultDebounceMS  = 250
)

// Paths contains the directories watched by default.
type Paths struct {
	// DownloadDir is where browsers drop files; it is always watched.
	DownloadDir string `toml:"download_dir"`
	// ModsDir is an optional central mods directory; empty means none.
	ModsDir string `toml:"mods_dir"`
}

// Scan contains tuning for the hashing pipeline.
type Scan struct {
	// Concurrency bounds how many files are hashed at once.
	Concurrency int `toml:"concurrency"`
	// DebounceMS is how long a directory must stay quiet before a change
	// notification triggers a rescan.
	DebounceMS int `toml:"debounce_ms"`
}

// Config encapsulates all configuration values for modmatch.
type Config struct {
	Paths Paths `toml:"paths"`
	Scan  Scan  `toml:"scan"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
		},
		Scan: Scan{
			Concurrency: defaultConcurrency,
			DebounceMS:  defaultDebounceMS,
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/modmatch/config.toml")
}

// Load locates, parses, and validates a configuration file. An empty path
// falls back to the default location; a missing file yields the defaults.
// The returned config has all path fields expanded.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error

	c.Paths.DownloadDir = strings.TrimSpace(c.Paths.DownloadDir)
	if c.Paths.DownloadDir == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = ExpandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}

	c.Paths.ModsDir = strings.TrimSpace(c.Paths.ModsDir)
	if c.Paths.ModsDir != "" {
		if c.Paths.ModsDir, err = ExpandPath(c.Paths.ModsDir); err != nil {
			return fmt.Errorf("paths.mods_dir: %w", err)
		}
	}

	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = defaultConcurrency
	}
	if c.Scan.DebounceMS == 0 {
		c.Scan.DebounceMS = defaultDebounceMS
	}
	return nil
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	if c.Scan.Concurrency < 0 {
		return errors.New("scan.concurrency must be positive")
	}
	if c.Scan.DebounceMS < 0 {
		return errors.New("scan.debounce_ms must not be negative")
	}
	return nil
}

// WatchDirs returns the configured default directories, download dir first.
func (c *Config) WatchDirs() []string {
	dirs := []string{c.Paths.DownloadDir}
	if c.Paths.ModsDir != "" {
		dirs = append(dirs, c.Paths.ModsDir)
	}
	return dirs
}

// Debounce returns the debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Scan.DebounceMS) * time.Millisecond
}

// CreateSample writes the embedded sample configuration to target.
func CreateSample(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ to the current user's home directory and
// returns an absolute path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is empty")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
