package modsync

import (
	"context"
	"fmt"
	"sort"

	"modsync/internal/model"
)

// PublishRequest is an administrator's directory scan plus the version it was
// diffed against.
type PublishRequest struct {
	ModpackID       string
	Manifest        model.Manifest
	ExpectedVersion int64
	AllowEmpty      bool // commit a new version even if nothing changed
}

// PendingUpload names an entry created by a publish whose content must still be uploaded.
type PendingUpload struct {
	Path string
	Hash string
}

// PublishResult describes a committed publish.
type PublishResult struct {
	ModpackID      string
	Version        int64
	Added          []string
	Changed        []string
	Removed        []string
	PendingUploads []PendingUpload // sorted by path
}

// Publish diffs req.Manifest against the modpack's live manifest and commits
// the difference as the next version.
//
// The stored version must equal req.ExpectedVersion; otherwise a
// *StaleVersionError carrying the current version is returned and nothing is
// written. An identical manifest returns *NoChangesError unless AllowEmpty is set.
func (s *SyncService) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if err := ValidateManifest(req.Manifest); err != nil {
		return nil, err
	}

	snap, err := s.database.Snapshot(ctx, req.ModpackID)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if snap.Version != req.ExpectedVersion {
		return nil, &StaleVersionError{ModpackID: req.ModpackID, Expected: req.ExpectedVersion, Current: snap.Version}
	}

	diff := ComputeDiff(snap.Manifest(), req.Manifest)
	if diff.Empty() && !req.AllowEmpty {
		return nil, &NoChangesError{ModpackID: req.ModpackID, Version: snap.Version}
	}

	ops, pending, err := s.buildCommitOps(ctx, req, snap, diff)
	if err != nil {
		return nil, err
	}

	// Nothing has been written yet, so a cancelled caller leaves no trace.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version, err := s.database.Commit(ctx, req.ModpackID, req.ExpectedVersion, ops)
	if err != nil {
		return nil, fmt.Errorf("committing publish: %w", err)
	}

	s.logger.Info("modpack published",
		"modpack", req.ModpackID,
		"version", version,
		"added", len(diff.Added),
		"changed", len(diff.Changed),
		"removed", len(diff.Removed),
		"pending", len(pending),
	)

	return &PublishResult{
		ModpackID:      req.ModpackID,
		Version:        version,
		Added:          diff.Added,
		Changed:        diff.Changed,
		Removed:        diff.Removed,
		PendingUploads: pending,
	}, nil
}

// buildCommitOps turns a diff into row mutations. Changed paths tombstone
// their old row and get a new one; there is never an in-place update.
func (s *SyncService) buildCommitOps(ctx context.Context, req PublishRequest, snap *Snapshot, diff *Diff) ([]CommitOp, []PendingUpload, error) {
	var ops []CommitOp
	for _, path := range append(append([]string{}, diff.Changed...), diff.Removed...) {
		ops = append(ops, CommitOp{Kind: OpRemove, FileID: snap.Entries[path].ID, Path: path})
	}

	inserts := append(append([]string{}, diff.Added...), diff.Changed...)
	sort.Strings(inserts)

	now := s.clock.Now()
	durable := make(map[string]bool)
	var pending []PendingUpload
	for _, path := range inserts {
		hash := req.Manifest[path]
		known, ok := durable[hash]
		if !ok {
			var err error
			known, err = s.contentDurable(ctx, req.ModpackID, hash)
			if err != nil {
				return nil, nil, err
			}
			durable[hash] = known
		}

		entry := &model.FileEntry{
			ID:        s.idgen.New(),
			ModpackID: req.ModpackID,
			Path:      path,
			Hash:      hash,
			State:     model.StatePendingUpload,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if known {
			entry.State = model.StateCurrent
			entry.Uploaded = true
		} else {
			pending = append(pending, PendingUpload{Path: path, Hash: hash})
		}
		ops = append(ops, CommitOp{Kind: OpInsert, Entry: entry, Path: path})
	}

	return ops, pending, nil
}

// contentDurable reports whether content for hash was already verified and
// still exists in the blob store.
func (s *SyncService) contentDurable(ctx context.Context, modpackID, hash string) (bool, error) {
	scope := modpackID
	if s.settings.ShareContentAcrossModpacks {
		scope = ""
	}

	row, err := s.database.FindUploadedByHash(ctx, scope, hash)
	if err != nil {
		return false, fmt.Errorf("checking for uploaded content: %w", err)
	}
	if row == nil {
		return false, nil
	}

	ok, err := s.blobs.HasContent(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("checking blob store: %w", err)
	}
	if !ok {
		s.logger.Warn("uploaded content missing from blob store", "hash", hash)
		return false, nil
	}

	s.logger.Debug("content deduplicated", "hash", hash)
	return true, nil
}
