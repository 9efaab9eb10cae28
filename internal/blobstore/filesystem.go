package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"modsync/internal/modsync"
)

// FileSystemStore keeps blobs as files named by checksum, fanned out by the
// first two hex digits:
//
//	<root>/
//	  content/
//	    ab/
//	      abcdef...   (content files, named by SHA-256)
type FileSystemStore struct {
	root       string
	contentDir string
}

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	contentDir := filepath.Join(root, "content")
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	return &FileSystemStore{root: root, contentDir: contentDir}, nil
}

func (s *FileSystemStore) blobPath(checksum string) (string, error) {
	if err := modsync.ValidateHash(checksum); err != nil {
		return "", err
	}
	return filepath.Join(s.contentDir, checksum[:2], checksum), nil
}

// PutContent stores content atomically. Existing blobs are left alone and
// the reader is drained so callers see the same size checks either way.
func (s *FileSystemStore) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	destPath, err := s.blobPath(checksum)
	if err != nil {
		return err
	}

	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	return writeFileAtomic(destPath, r, size)
}

func (s *FileSystemStore) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	srcPath, err := s.blobPath(checksum)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", checksum, modsync.ErrNotFound)
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	return nil
}

func (s *FileSystemStore) HasContent(ctx context.Context, checksum string) (bool, error) {
	p, err := s.blobPath(checksum)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking blob: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the content directory exists and is writable.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.contentDir)
	if err != nil {
		return fmt.Errorf("blob store not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob store path is not a directory: %s", s.contentDir)
	}

	probe, err := os.CreateTemp(s.contentDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("blob store not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFileAtomic copies r into destPath through a temp file and a rename.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ modsync.BlobStore = (*FileSystemStore)(nil)
