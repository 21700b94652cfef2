package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// DefaultFileName is the settings file looked for next to the executable when
// no explicit path is given.
const DefaultFileName = "sync_settings.toml"

// Manager loads and saves the settings file. Save rewrites the whole file, so
// callers must load the latest copy before mutating to avoid clobbering
// fields written by an earlier step of the same invocation.
type Manager struct {
	fs   afero.Fs
	path string
}

// NewManager creates a manager backed by the OS filesystem.
func NewManager(path string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), path)
}

// NewManagerWithFs creates a manager on the given filesystem, used by tests.
func NewManagerWithFs(fs afero.Fs, path string) *Manager {
	return &Manager{fs: fs, path: path}
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

// Load reads and decodes the settings file. A missing file is
// ErrConfigMissing; field presence is not validated here.
func (m *Manager) Load() (*Settings, error) {
	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, m.path)
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var settings Settings
	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", m.path, err)
	}
	return &settings, nil
}

// Save encodes the settings and overwrites the file.
func (m *Manager) Save(settings *Settings) error {
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := afero.WriteFile(m.fs, m.path, data, 0o600); err != nil {
		return &WriteError{Path: m.path, Err: err}
	}
	return nil
}
