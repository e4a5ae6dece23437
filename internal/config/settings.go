// Package config persists lineidx settings as a versioned JSON envelope:
//
//	{"version": 1, "settings": { ... }}
//
// Writes are atomic via temp file + rename with round-trip validation.
// Command-line flags and environment variables take precedence over the
// stored values; that resolution happens in cmd/lineidx.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const currentVersion = 1

// Settings are the persisted defaults. Empty fields mean "not set".
type Settings struct {
	IndexDir   string `json:"index_dir,omitempty"`
	LogLevel   string `json:"log_level,omitempty"`
	LogFormat  string `json:"log_format,omitempty"`
	ServerAddr string `json:"server_addr,omitempty"`
	// WatchPoll is a time.ParseDuration string such as "30s".
	WatchPoll string `json:"watch_poll,omitempty"`
}

// PollInterval parses WatchPoll. An unset value returns def.
func (s Settings) PollInterval(def time.Duration) (time.Duration, error) {
	if s.WatchPoll == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s.WatchPoll)
	if err != nil {
		return 0, fmt.Errorf("parse watch_poll %q: %w", s.WatchPoll, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("watch_poll must be positive, got %s", d)
	}
	return d, nil
}

// envelope is the versioned on-disk format.
type envelope struct {
	Version  int       `json:"version"`
	Settings *Settings `json:"settings"`
}

// Store reads and writes the settings file.
type Store struct {
	path string
}

// NewStore creates a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields zero Settings.
func (s *Store) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Settings{}, fmt.Errorf("parse config file: %w", err)
	}
	if env.Version == 0 {
		return Settings{}, fmt.Errorf("unversioned config file %s", s.path)
	}
	if env.Version > currentVersion {
		return Settings{}, fmt.Errorf("config file version %d is newer than supported version %d", env.Version, currentVersion)
	}
	if env.Settings == nil {
		return Settings{}, nil
	}
	return *env.Settings, nil
}

// Save atomically replaces the settings file.
func (s *Store) Save(settings Settings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	env := envelope{Version: currentVersion, Settings: &settings}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil { //nolint:gosec // G306: settings are not secret
		return fmt.Errorf("write temp file: %w", err)
	}

	// Round-trip validation: re-read and verify valid JSON.
	check, err := os.ReadFile(tmpPath) //nolint:gosec // G304: path derives from the home directory
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("read-back temp file: %w", err)
	}
	var verify envelope
	if err := json.Unmarshal(check, &verify); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("round-trip validation failed: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}
