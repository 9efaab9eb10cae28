package modsync

import (
	"context"
	"fmt"
	"io"

	"modsync/internal/model"
)

// UploadRequest carries the content for one declared file entry.
type UploadRequest struct {
	ModpackID    string
	Path         string
	DeclaredHash string
	Content      io.Reader
}

// UploadResult describes the entry an upload was applied to.
type UploadResult struct {
	FileID       string
	Path         string
	Hash         string
	State        model.FileState
	Transitioned bool // this upload moved the entry from pending_upload to current
}

// Upload verifies content against the declared hash and, for a pending entry,
// makes it durable and marks the entry current.
//
// Bytes that do not hash to the declared value are rejected with
// *IntegrityMismatchError and the entry keeps waiting. Matching content for an
// entry that is already current or removed is a no-op; anything else for such
// an entry is a *StaleUploadError.
func (s *SyncService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := ValidatePath(req.Path); err != nil {
		return nil, err
	}
	if err := ValidateHash(req.DeclaredHash); err != nil {
		return nil, err
	}

	modpack, err := s.database.FindModpack(ctx, req.ModpackID)
	if err != nil {
		return nil, fmt.Errorf("finding modpack: %w", err)
	}
	if modpack == nil {
		return nil, fmt.Errorf("modpack %s: %w", req.ModpackID, ErrNotFound)
	}

	history, err := s.database.FindFileHistory(ctx, req.ModpackID, req.Path)
	if err != nil {
		return nil, fmt.Errorf("finding file history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("path %s in modpack %s: %w", req.Path, req.ModpackID, ErrNotFound)
	}

	target := uploadTarget(history, req.DeclaredHash)
	if target == nil {
		return nil, &StaleUploadError{Path: req.Path, Hash: req.DeclaredHash}
	}

	staged, err := s.staging.Stage(req.Content)
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	defer func() {
		if err := s.staging.Release(staged); err != nil {
			s.logger.Warn("releasing staged upload", "path", req.Path, "error", err)
		}
	}()

	if target.State != model.StatePendingUpload {
		if staged.Checksum == req.DeclaredHash {
			s.logger.Debug("upload for settled entry ignored", "path", req.Path, "state", target.State)
			return resultFor(target, false), nil
		}
		return nil, &StaleUploadError{Path: req.Path, Hash: req.DeclaredHash, State: target.State}
	}

	if staged.Checksum != req.DeclaredHash {
		s.logger.Warn("upload rejected",
			"modpack", req.ModpackID,
			"path", req.Path,
			"declared", req.DeclaredHash,
			"computed", staged.Checksum,
		)
		return nil, &IntegrityMismatchError{Path: req.Path, Declared: req.DeclaredHash, Computed: staged.Checksum}
	}

	return s.storeVerified(ctx, target, staged)
}

// storeVerified writes verified content to the blob store first and only then
// flips the entry. A failure between the two leaves an orphaned blob and a
// pending entry; the upload can be retried.
func (s *SyncService) storeVerified(ctx context.Context, target *model.FileEntry, staged *StagedContent) (*UploadResult, error) {
	rc, err := s.staging.Open(staged)
	if err != nil {
		return nil, fmt.Errorf("opening staged upload: %w", err)
	}
	defer rc.Close()

	if err := s.blobs.PutContent(ctx, staged.Checksum, rc, staged.Size); err != nil {
		return nil, fmt.Errorf("storing content: %w", err)
	}

	transitioned, err := s.database.MarkUploaded(ctx, target.ID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("marking entry uploaded: %w", err)
	}
	if transitioned {
		s.logger.Info("file uploaded", "modpack", target.ModpackID, "path", target.Path, "hash", target.Hash, "size", staged.Size)
		target.State = model.StateCurrent
		target.Uploaded = true
		return resultFor(target, true), nil
	}

	// Another upload or a publish got to the row first.
	row, err := s.database.FindFile(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("re-reading entry: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("file %s: %w", target.ID, ErrNotFound)
	}
	if row.Hash == staged.Checksum {
		// Current or superseded; either way the verified content is settled.
		s.logger.Debug("upload for settled entry ignored", "path", row.Path, "state", row.State)
		return resultFor(row, false), nil
	}
	return nil, &StaleUploadError{Path: row.Path, Hash: row.Hash, State: row.State}
}

// uploadTarget picks the row an upload applies to: the live row when it
// carries the declared hash, otherwise the newest row that ever did.
// history must be ordered newest first.
func uploadTarget(history []*model.FileEntry, hash string) *model.FileEntry {
	for _, e := range history {
		if e.State.Live() {
			if e.Hash == hash {
				return e
			}
			break
		}
	}
	for _, e := range history {
		if e.Hash == hash {
			return e
		}
	}
	return nil
}

func resultFor(e *model.FileEntry, transitioned bool) *UploadResult {
	return &UploadResult{
		FileID:       e.ID,
		Path:         e.Path,
		Hash:         e.Hash,
		State:        e.State,
		Transitioned: transitioned,
	}
}
