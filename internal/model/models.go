package model

import "time"

// FileState is the lifecycle state of a file entry row.
type FileState string

const (
	// StatePendingUpload marks an entry whose content has been declared but not yet verified.
	StatePendingUpload FileState = "pending_upload"
	// StateCurrent marks an entry whose content is durable and part of the published modpack.
	StateCurrent FileState = "current"
	// StateRemoved marks a tombstone. Removed rows are never reused.
	StateRemoved FileState = "removed"
)

// Live reports whether an entry in this state is part of the modpack's manifest.
func (s FileState) Live() bool {
	return s == StatePendingUpload || s == StateCurrent
}

// Valid reports whether s is one of the known states.
func (s FileState) Valid() bool {
	switch s {
	case StatePendingUpload, StateCurrent, StateRemoved:
		return true
	}
	return false
}

// Modpack is a named, versioned collection of files.
type Modpack struct {
	ID               string // UUID
	Name             string // Unique across the store
	Game             string
	GameVersion      string
	Modloader        string
	ModloaderVersion string
	SyncVersion      int64 // Incremented by exactly one per committed publish
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FileEntry is one row of a modpack's file history.
type FileEntry struct {
	ID          string // UUID
	ModpackID   string // Foreign key to Modpack
	Path        string // Forward-slash path relative to the modpack root
	State       FileState
	SyncVersion int64  // Modpack version at which the row was created or removed
	Hash        string // Lowercase hex SHA-256 of the content
	Uploaded    bool   // Content is durable in the blob store
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Manifest maps relative paths to content hashes.
type Manifest map[string]string
