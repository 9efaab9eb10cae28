package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate the server's files.
const (
	EnvConfigPath = "MODSYNC_CONFIG_PATH"
	EnvHome       = "MODSYNC_HOME"
)

// Paths are the default locations of the server's config and data.
type Paths struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// DefaultPaths resolves Paths from MODSYNC_CONFIG_PATH and MODSYNC_HOME,
// then the XDG base directories, then the home directory.
func DefaultPaths() (*Paths, error) {
	return resolvePaths(os.Getenv, os.UserHomeDir)
}

func resolvePaths(getenv func(string) string, home func() (string, error)) (*Paths, error) {
	xdgDir := func(xdg string, fallback ...string) (string, error) {
		if v := getenv(xdg); v != "" {
			return v, nil
		}
		h, err := home()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(append([]string{h}, fallback...)...), nil
	}

	configPath := getenv(EnvConfigPath)
	if configPath == "" {
		configDir, err := xdgDir("XDG_CONFIG_HOME", ".config")
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(configDir, "modsync.toml")
	}

	baseDir := getenv(EnvHome)
	if baseDir == "" {
		dataDir, err := xdgDir("XDG_DATA_HOME", ".local", "share")
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(dataDir, "modsync")
	}

	return &Paths{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
