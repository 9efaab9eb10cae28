package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"modsync/internal/blobstore"
	"modsync/internal/config"
	"modsync/internal/database"
	"modsync/internal/encryption"
	"modsync/internal/modsync"
	"modsync/internal/staging"
)

// PassphraseFunc supplies the passphrase that unlocks the blob encryption key.
type PassphraseFunc func() (string, error)

// App is the application layer between the CLI and SyncService.
// It constructs all dependencies from config and manages their lifecycle.
type App struct {
	cfg     *config.Config
	db      *database.SQLDatabase
	blobs   modsync.BlobStore
	staging modsync.StagingArea
	service *modsync.SyncService
	logger  modsync.Logger
	op      *Operation
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "serve", "migrate").
// passphrase is only consulted when blobs are encrypted; nil leaves the
// store write-only. The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string, passphrase PassphraseFunc) (*App, error) {
	op := NewOperation(operation, time.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := NewLogger(slogger)

	a := &App{cfg: cfg, logger: logger, op: op, logFile: logFile}
	if err := a.init(ctx, passphrase); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, passphrase PassphraseFunc) error {
	db, err := database.NewDatabaseFromConfig(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db

	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, a.cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}
	if a.cfg.BlobStore.Encrypted {
		blobs, err = a.encrypt(blobs, passphrase)
		if err != nil {
			return err
		}
	}
	a.blobs = blobs

	sa, err := staging.NewStagingAreaFromConfig(a.cfg.Staging)
	if err != nil {
		return fmt.Errorf("creating staging area: %w", err)
	}
	a.staging = sa

	a.service = modsync.NewSyncService(db, sa, blobs, a.logger, modsync.RealClock{}, modsync.UUIDGenerator{}, modsync.Settings{
		ShareContentAcrossModpacks: a.cfg.Sync.ShareContentAcrossModpacks,
	})
	return nil
}

func (a *App) encrypt(inner modsync.BlobStore, passphrase PassphraseFunc) (modsync.BlobStore, error) {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("blob_store.encrypted is set but no keys exist (run `modsync keys init`)")
	}

	var dec modsync.DecryptionContext
	if passphrase != nil {
		p, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		dec, err = enc.Unlock(p)
		if err != nil {
			return nil, fmt.Errorf("unlocking encryption key: %w", err)
		}
	} else {
		a.logger.Warn("encryption key locked, downloads will fail")
	}

	return blobstore.NewEncryptedStore(inner, enc, dec, os.TempDir()), nil
}

// Service returns the wired reconciliation engine.
func (a *App) Service() *modsync.SyncService { return a.service }

// Logger returns the application logger.
func (a *App) Logger() modsync.Logger { return a.logger }

// Config returns the config the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// CheckReady verifies the schema is current and the blob store is reachable.
func (a *App) CheckReady(ctx context.Context) error {
	if err := a.db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date (run `modsync migrate`): %w", err)
	}
	if err := a.blobs.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("blob store not ready: %w", err)
	}
	return nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate() error {
	if err := a.db.Migrate(); err != nil {
		a.op.Fail(err)
		return fmt.Errorf("migrating database: %w", err)
	}
	a.logger.Info("database migrated", "dialect", a.db.Dialect())
	return nil
}

// BackupDatabase writes a consistent copy of a SQLite store to destPath.
func (a *App) BackupDatabase(destPath string) error {
	if err := a.db.BackupTo(destPath); err != nil {
		a.op.Fail(err)
		return fmt.Errorf("backing up database: %w", err)
	}
	a.logger.Info("database backed up", "dest", destPath)
	return nil
}

// Fail marks the running operation as failed.
func (a *App) Fail(err error) { a.op.Fail(err) }

// Close finalizes the operation and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	a.op.Finish(a.logger, time.Now())
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// SetupKeys generates the blob encryption key pair, protected by passphrase.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	return nil
}
