package modsync

import (
	"context"
	"time"

	"modsync/internal/model"
)

// Database is the version store. It owns exactly two relations, modpacks and
// files, and is the only place where a modpack's sync version changes.
type Database interface {
	// Modpack operations

	// CreateModpack inserts a new modpack at version 0.
	// Returns ErrAlreadyExists if the name is taken.
	CreateModpack(ctx context.Context, modpack *model.Modpack) error

	// FindModpack returns a modpack by ID, or nil if it does not exist.
	FindModpack(ctx context.Context, id string) (*model.Modpack, error)

	// FindModpackByName returns a modpack by its unique name, or nil.
	FindModpackByName(ctx context.Context, name string) (*model.Modpack, error)

	// ListModpacks returns all modpacks ordered by name.
	ListModpacks(ctx context.Context) ([]*model.Modpack, error)

	// UpdateModpackMetadata rewrites the descriptive fields of a modpack.
	// The sync version is left untouched.
	UpdateModpackMetadata(ctx context.Context, modpack *model.Modpack) error

	// DeleteModpack removes a modpack and, by cascade, its whole file history.
	DeleteModpack(ctx context.Context, id string) error

	// Versioned manifest

	// Snapshot atomically reads the modpack's version and its live entries.
	// Returns ErrNotFound for an unknown modpack.
	Snapshot(ctx context.Context, modpackID string) (*Snapshot, error)

	// Commit applies ops in one transaction if the stored version still equals
	// expectedVersion, incrementing it by exactly one. On a version mismatch it
	// returns *StaleVersionError and changes nothing. Any failure leaves both
	// the version and the rows as they were.
	Commit(ctx context.Context, modpackID string, expectedVersion int64, ops []CommitOp) (int64, error)

	// File operations

	// FindFile returns a file entry by ID, or nil.
	FindFile(ctx context.Context, id string) (*model.FileEntry, error)

	// FindFileHistory returns every row ever recorded for a path, newest first.
	FindFileHistory(ctx context.Context, modpackID, path string) ([]*model.FileEntry, error)

	// FindFilesChangedSince returns rows whose sync version is greater than
	// version, tombstones included, ordered by version then path.
	FindFilesChangedSince(ctx context.Context, modpackID string, version int64) ([]*model.FileEntry, error)

	// FindUploadedByHash returns any row with uploaded content for hash.
	// An empty modpackID searches every modpack. Returns nil if none exists.
	FindUploadedByHash(ctx context.Context, modpackID, hash string) (*model.FileEntry, error)

	// MarkUploaded moves a pending_upload row to current with uploaded set.
	// It reports false, without error, when the row was no longer pending.
	MarkUploaded(ctx context.Context, fileID string, at time.Time) (bool, error)

	// CheckMigrations verifies the schema is at the latest migration.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}

// Snapshot is a consistent view of a modpack's live manifest.
type Snapshot struct {
	ModpackID string
	Version   int64
	Entries   map[string]*model.FileEntry // live rows keyed by path
}

// Manifest returns the path to hash view of the snapshot.
func (s *Snapshot) Manifest() model.Manifest {
	m := make(model.Manifest, len(s.Entries))
	for path, e := range s.Entries {
		m[path] = e.Hash
	}
	return m
}

// OpKind identifies the kind of row mutation in a commit.
type OpKind int

const (
	// OpInsert creates a new live row.
	OpInsert OpKind = iota
	// OpRemove turns an existing live row into a tombstone.
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// CommitOp is a single row mutation applied inside Commit.
// Removes are applied before inserts.
type CommitOp struct {
	Kind OpKind

	// Entry is the row to insert (OpInsert). ID, Path, Hash, State, Uploaded
	// and CreatedAt are taken from it; the sync version is assigned by Commit.
	Entry *model.FileEntry

	// FileID is the live row to tombstone (OpRemove).
	FileID string
	Path   string
}
