package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:  "/srv/modsync",
		LogDir:   "/srv/modsync/log",
		LogLevel: "debug",
		Server: ServerConfig{
			Listen:         "0.0.0.0:9000",
			MasterKey:      "secret",
			FileSizeLimit:  1024,
			AllowedOrigins: []string{"https://launcher.example"},
		},
		Database:  DatabaseConfig{Type: "postgres", DSN: "postgres://u:p@db/modsync"},
		BlobStore: BlobStoreConfig{Type: "s3", S3Bucket: "mods", S3Prefix: "blobs", S3Region: "eu-west-1", Encrypted: true},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/srv/modsync/keys/modsync.pub",
			PrivateKeyPath: "/srv/modsync/keys/modsync.key",
		},
		Staging: StagingConfig{Type: "memory", MaxSize: 2048},
		Sync:    SyncConfig{ShareContentAcrossModpacks: true},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.Server.Listen != "0.0.0.0:9000" || got.Server.MasterKey != "secret" || got.Server.FileSizeLimit != 1024 {
		t.Errorf("Server = %+v", got.Server)
	}
	if len(got.Server.AllowedOrigins) != 1 {
		t.Errorf("len(AllowedOrigins) = %d, want 1", len(got.Server.AllowedOrigins))
	}
	if got.Database.Type != "postgres" || got.Database.DSN != original.Database.DSN {
		t.Errorf("Database = %+v", got.Database)
	}
	if got.BlobStore.Type != "s3" || got.BlobStore.S3Bucket != "mods" || !got.BlobStore.Encrypted {
		t.Errorf("BlobStore = %+v", got.BlobStore)
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
	if got.Staging.MaxSize != 2048 {
		t.Errorf("Staging.MaxSize = %d, want %d", got.Staging.MaxSize, 2048)
	}
	if !got.Sync.ShareContentAcrossModpacks {
		t.Error("Sync.ShareContentAcrossModpacks = false, want true")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/modsync")

	if cfg.BaseDir != "/data/modsync" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/modsync")
	}
	if cfg.LogDir != "/data/modsync/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/modsync/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/modsync/db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.BlobStore.FSRoot != "/data/modsync/blobs" {
		t.Errorf("BlobStore.FSRoot = %q", cfg.BlobStore.FSRoot)
	}
	if cfg.Encryption.PublicKeyPath != "/data/modsync/keys/modsync.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Server.FileSizeLimit != DefaultFileSizeLimit {
		t.Errorf("FileSizeLimit = %d, want %d", cfg.Server.FileSizeLimit, DefaultFileSizeLimit)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDatabaseURL: "postgres://db/modsync",
		EnvMasterKey:   "from-env",
		EnvListen:      ":7000",
	}
	cfg := NewConfig("/data")
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Database.Type != "postgres" || cfg.Database.DSN != "postgres://db/modsync" {
		t.Errorf("Database = %+v, want postgres from env", cfg.Database)
	}
	if cfg.Server.MasterKey != "from-env" {
		t.Errorf("MasterKey = %q", cfg.Server.MasterKey)
	}
	if cfg.Server.Listen != ":7000" {
		t.Errorf("Listen = %q", cfg.Server.Listen)
	}

	untouched := NewConfig("/data")
	untouched.ApplyEnv(func(string) string { return "" })
	if untouched.Database.Type != "sqlite" {
		t.Errorf("empty env should not change the database, got %q", untouched.Database.Type)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing master key", func(c *Config) { c.Server.MasterKey = "" }, true},
		{"missing listen", func(c *Config) { c.Server.Listen = "" }, true},
		{"zero file size limit", func(c *Config) { c.Server.FileSizeLimit = 0 }, true},
		{"zero staging size", func(c *Config) { c.Staging.MaxSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data")
			cfg.Server.MasterKey = "k"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "modsync.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "modsync.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "modsync.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/modsync.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
