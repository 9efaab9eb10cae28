package modsync

import (
	"context"
	"fmt"
	"io"
)

// OpenContent streams the blob for hash to w. Only content that some entry
// has verified is served.
func (s *SyncService) OpenContent(ctx context.Context, hash string, w io.Writer) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}

	row, err := s.database.FindUploadedByHash(ctx, "", hash)
	if err != nil {
		return fmt.Errorf("finding uploaded content: %w", err)
	}
	if row == nil {
		return fmt.Errorf("content %s: %w", hash, ErrNotFound)
	}

	if err := s.blobs.GetContent(ctx, hash, w); err != nil {
		return fmt.Errorf("reading content %s: %w", hash, err)
	}
	return nil
}
