package modsync

import (
	"errors"
	"fmt"

	"modsync/internal/model"
)

var (
	// ErrNotFound is returned when a modpack, path, file or blob is unknown.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a modpack name is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidManifest is returned for malformed paths or hashes.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrInvalidArgument is returned for malformed request fields outside a manifest.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStaleVersion matches *StaleVersionError.
	ErrStaleVersion = errors.New("stale version")
	// ErrNoChanges matches *NoChangesError.
	ErrNoChanges = errors.New("no changes")
	// ErrIntegrityMismatch matches *IntegrityMismatchError.
	ErrIntegrityMismatch = errors.New("integrity mismatch")
	// ErrStaleUpload matches *StaleUploadError.
	ErrStaleUpload = errors.New("stale upload")
)

// StaleVersionError reports that a publish was based on an outdated version.
// Current is the version the caller must re-read and re-diff against.
type StaleVersionError struct {
	ModpackID string
	Expected  int64
	Current   int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("modpack %s is at version %d, publish expected %d", e.ModpackID, e.Current, e.Expected)
}

func (e *StaleVersionError) Is(target error) bool { return target == ErrStaleVersion }

// NoChangesError reports that a publish produced an empty diff.
type NoChangesError struct {
	ModpackID string
	Version   int64
}

func (e *NoChangesError) Error() string {
	return fmt.Sprintf("modpack %s already matches manifest at version %d", e.ModpackID, e.Version)
}

func (e *NoChangesError) Is(target error) bool { return target == ErrNoChanges }

// IntegrityMismatchError reports uploaded bytes whose hash differs from the declared one.
type IntegrityMismatchError struct {
	Path     string
	Declared string
	Computed string
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("content for %s hashes to %s, declared %s", e.Path, e.Computed, e.Declared)
}

func (e *IntegrityMismatchError) Is(target error) bool { return target == ErrIntegrityMismatch }

// StaleUploadError reports an upload for an entry that no longer accepts content.
type StaleUploadError struct {
	Path  string
	Hash  string
	State model.FileState // empty when no row with this hash exists for the path
}

func (e *StaleUploadError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("no entry for %s with hash %s accepts uploads", e.Path, e.Hash)
	}
	return fmt.Sprintf("entry for %s with hash %s is %s", e.Path, e.Hash, e.State)
}

func (e *StaleUploadError) Is(target error) bool { return target == ErrStaleUpload }
