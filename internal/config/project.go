package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// ProjectFileName is the per-directory settings file for publish and pull.
	ProjectFileName = "modsync.sync.toml"
	// StateFileName records what the directory last synced to.
	StateFileName = "modsync.state.toml"
)

// ProjectConfig binds a local directory to a modpack on a server.
type ProjectConfig struct {
	ModpackID string   `toml:"modpack_id"`
	ServerURL string   `toml:"server_url"`
	APIKey    string   `toml:"api_key,omitempty"` // only needed to publish
	Include   []string `toml:"include,omitempty"` // globs; empty means everything
	Exclude   []string `toml:"exclude,omitempty"` // ignore patterns
}

// ProjectState is the last manifest a directory observed on the server.
type ProjectState struct {
	SyncVersion int64             `toml:"sync_version"`
	Files       map[string]string `toml:"files"`
}

// LoadProject reads dir's project config.
func LoadProject(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, ProjectFileName)
	var cfg ProjectConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading project config %s: %w", path, err)
	}
	if cfg.ModpackID == "" {
		return nil, fmt.Errorf("%s: modpack_id must be set", path)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%s: server_url must be set", path)
	}
	return &cfg, nil
}

// SaveProject writes dir's project config. The file may hold an API key.
func SaveProject(dir string, cfg *ProjectConfig) error {
	return writeTOML(filepath.Join(dir, ProjectFileName), cfg, 0600)
}

// LoadState reads dir's sync state. A directory that never synced gets an
// empty state at version 0.
func LoadState(dir string) (*ProjectState, error) {
	path := filepath.Join(dir, StateFileName)
	state := &ProjectState{Files: map[string]string{}}
	if _, err := toml.DecodeFile(path, state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("reading sync state %s: %w", path, err)
	}
	if state.Files == nil {
		state.Files = map[string]string{}
	}
	return state, nil
}

// SaveState writes dir's sync state.
func SaveState(dir string, state *ProjectState) error {
	return writeTOML(filepath.Join(dir, StateFileName), state, 0644)
}
