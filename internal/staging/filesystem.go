package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"modsync/internal/modsync"
)

// fileSystemStore keeps each spool as one file.
//
// Directory structure:
//
//	<staging_dir>/
//	  spool/
//	    <staging_id>           (closed spool)
//	    <staging_id>.partial   (being written)
type fileSystemStore struct {
	spoolDir string
}

const partialSuffix = ".partial"

// NewFileSystemStagingArea creates a filesystem-backed staging area.
// Leftover spools from a previous run are removed.
func NewFileSystemStagingArea(stagingDir string, maxSize int64) (modsync.StagingArea, error) {
	spoolDir := filepath.Join(stagingDir, "spool")

	if err := os.RemoveAll(spoolDir); err != nil {
		return nil, fmt.Errorf("clearing staging directory: %w", err)
	}
	if err := os.MkdirAll(spoolDir, 0700); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	return &stagingArea{
		store:   &fileSystemStore{spoolDir: spoolDir},
		maxSize: maxSize,
	}, nil
}

func (f *fileSystemStore) spoolPath(id string) string {
	return filepath.Join(f.spoolDir, id)
}

func (f *fileSystemStore) Create(id string) (io.WriteCloser, error) {
	file, err := os.OpenFile(f.spoolPath(id)+partialSuffix, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &fileSpool{File: file, final: f.spoolPath(id)}, nil
}

func (f *fileSystemStore) Open(id string) (io.ReadCloser, error) {
	file, err := os.Open(f.spoolPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("spool %s: %w", id, modsync.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *fileSystemStore) Remove(id string) error {
	for _, p := range []string{f.spoolPath(id), f.spoolPath(id) + partialSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (f *fileSystemStore) ContentSize() (int64, error) {
	entries, err := os.ReadDir(f.spoolDir)
	if err != nil {
		return 0, fmt.Errorf("reading staging directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), partialSuffix) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// released while we were listing
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// fileSpool renames the partial file into place on Close.
type fileSpool struct {
	*os.File
	final string
}

func (w *fileSpool) Close() error {
	if err := w.File.Close(); err != nil {
		return err
	}
	return os.Rename(w.File.Name(), w.final)
}
