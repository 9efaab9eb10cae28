package modsync

import (
	"context"
	"fmt"

	"modsync/internal/model"
)

// ChangeSet lists the rows that became effective after Since, up to and
// including Version. Tombstones are included so a client that is behind
// learns about removals.
type ChangeSet struct {
	ModpackID string
	Since     int64
	Version   int64
	Changes   []*model.FileEntry // ordered by version, then path
}

// FileHistory returns every row recorded for path, newest first.
func (s *SyncService) FileHistory(ctx context.Context, modpackID, path string) ([]*model.FileEntry, error) {
	s.logger.Debug("fetching file history", "modpack", modpackID, "path", path)

	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	modpack, err := s.database.FindModpack(ctx, modpackID)
	if err != nil {
		return nil, fmt.Errorf("finding modpack: %w", err)
	}
	if modpack == nil {
		return nil, fmt.Errorf("modpack %s: %w", modpackID, ErrNotFound)
	}

	entries, err := s.database.FindFileHistory(ctx, modpackID, path)
	if err != nil {
		return nil, fmt.Errorf("finding file history: %w", err)
	}
	return entries, nil
}

// ChangesSince returns the rows that changed after version since.
func (s *SyncService) ChangesSince(ctx context.Context, modpackID string, since int64) (*ChangeSet, error) {
	if since < 0 {
		return nil, fmt.Errorf("%w: since must not be negative", ErrInvalidArgument)
	}

	snap, err := s.database.Snapshot(ctx, modpackID)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	cs := &ChangeSet{ModpackID: modpackID, Since: since, Version: snap.Version}
	if since >= snap.Version {
		return cs, nil
	}

	rows, err := s.database.FindFilesChangedSince(ctx, modpackID, since)
	if err != nil {
		return nil, fmt.Errorf("finding changed files: %w", err)
	}
	for _, r := range rows {
		// Rows committed after the snapshot belong to the next change set.
		if r.SyncVersion <= snap.Version {
			cs.Changes = append(cs.Changes, r)
		}
	}
	return cs, nil
}
