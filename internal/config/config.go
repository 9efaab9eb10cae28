package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultFileSizeLimit caps a single upload body at 250 MiB.
const DefaultFileSizeLimit int64 = 250 << 20

// Config represents the server configuration for modsync.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // debug, info, warn or error
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	BlobStore  BlobStoreConfig  `toml:"blob_store"`
	Encryption EncryptionConfig `toml:"encryption"`
	Staging    StagingConfig    `toml:"staging"`
	Sync       SyncConfig       `toml:"sync"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen         string   `toml:"listen"`
	MasterKey      string   `toml:"master_key"`
	FileSizeLimit  int64    `toml:"file_size_limit"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DatabaseConfig represents configuration for the version store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "postgres"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	DSN     string `toml:"dsn,omitempty"`      // only used for type=postgres
}

// BlobStoreConfig represents configuration for the content store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobStoreConfig struct {
	Type      string `toml:"type"` // "memory", "filesystem", "s3" or "minio"
	Encrypted bool   `toml:"encrypted"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket       string `toml:"s3_bucket,omitempty"`
	S3Prefix       string `toml:"s3_prefix,omitempty"`
	S3Region       string `toml:"s3_region,omitempty"`
	S3Endpoint     string `toml:"s3_endpoint,omitempty"`
	S3AccessKey    string `toml:"s3_access_key,omitempty"`
	S3SecretKey    string `toml:"s3_secret_key,omitempty"`
	S3UsePathStyle bool   `toml:"s3_use_path_style,omitempty"`

	// MinIO-specific fields (only used when Type == "minio")
	MinioEndpoint  string `toml:"minio_endpoint,omitempty"`
	MinioBucket    string `toml:"minio_bucket,omitempty"`
	MinioPrefix    string `toml:"minio_prefix,omitempty"`
	MinioAccessKey string `toml:"minio_access_key,omitempty"`
	MinioSecretKey string `toml:"minio_secret_key,omitempty"`
	MinioUseSSL    bool   `toml:"minio_use_ssl,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for blobs at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// StagingConfig represents configuration for the upload staging area.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StagingConfig struct {
	Type       string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir string `toml:"staging_dir,omitempty"` // only used for type=filesystem
	MaxSize    int64  `toml:"max_size"`              // max total size in bytes; must be positive
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// ShareContentAcrossModpacks lets a publish reuse content uploaded to
	// any modpack instead of only its own.
	ShareContentAcrossModpacks bool `toml:"share_content_across_modpacks"`
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Server: ServerConfig{
			Listen:        "127.0.0.1:8080",
			FileSizeLimit: DefaultFileSizeLimit,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		BlobStore: BlobStoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "blobs"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "modsync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "modsync.key"),
		},
		Staging: StagingConfig{
			Type:       "filesystem",
			StagingDir: filepath.Join(baseDir, "staging"),
			MaxSize:    2 * DefaultFileSizeLimit,
		},
	}
}

// Environment overrides applied on top of the config file.
const (
	EnvDatabaseURL          = "MODSYNC_DATABASE_URL"
	EnvMasterKey            = "MODSYNC_MASTER_KEY"
	EnvListen               = "MODSYNC_LISTEN"
	EnvEncryptionPassphrase = "MODSYNC_ENCRYPTION_PASSPHRASE"
)

// ApplyEnv overlays environment overrides onto cfg. A database URL switches
// the store to postgres.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if dsn := getenv(EnvDatabaseURL); dsn != "" {
		c.Database = DatabaseConfig{Type: "postgres", DSN: dsn}
	}
	if key := getenv(EnvMasterKey); key != "" {
		c.Server.MasterKey = key
	}
	if listen := getenv(EnvListen); listen != "" {
		c.Server.Listen = listen
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set")
	}
	if c.Server.MasterKey == "" {
		return fmt.Errorf("server.master_key must be set (or %s)", EnvMasterKey)
	}
	if c.Server.FileSizeLimit <= 0 {
		return fmt.Errorf("server.file_size_limit must be positive, got %d", c.Server.FileSizeLimit)
	}
	if c.Staging.MaxSize <= 0 {
		return fmt.Errorf("staging.max_size must be positive, got %d", c.Staging.MaxSize)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeTOML encodes v into path, creating parent directories.
func writeTOML(path string, v any, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
// The file holds the master key, so it is only readable by its owner.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeTOML(path, cfg, 0600); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
