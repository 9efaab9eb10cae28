// Package fs builds manifests from directory trees.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"modsync/internal/config"
	"modsync/internal/model"
	"modsync/internal/modsync"
)

// TempFilePrefix marks partially downloaded files. They are never scanned.
const TempFilePrefix = ".modsync-"

// defaultIgnorePatterns are always applied regardless of config or .modsyncignore.
var defaultIgnorePatterns = []string{
	IgnoreFileName,
	config.ProjectFileName,
	config.StateFileName,
	TempFilePrefix + "*",
}

// Scanner walks a tree and hashes every regular file it selects.
type Scanner struct {
	include []string
	ignore  *IgnoreMatcher
	workers int
}

// NewScanner creates a Scanner. An empty include list selects every file.
// An include pattern ending in "/**" selects a whole subtree; any other
// pattern is matched against the full relative path.
func NewScanner(include, exclude []string) *Scanner {
	patterns := append(append([]string{}, defaultIgnorePatterns...), exclude...)
	return &Scanner{
		include: include,
		ignore:  NewIgnoreMatcher(patterns),
		workers: runtime.NumCPU(),
	}
}

// ScanDir scans dir on the local disk, honoring its .modsyncignore.
func ScanDir(ctx context.Context, dir string, include, exclude []string) (model.Manifest, error) {
	fsys := os.DirFS(dir)
	extra, err := ParseIgnoreFile(fsys, IgnoreFileName)
	if err != nil {
		return nil, err
	}
	return NewScanner(include, append(append([]string{}, exclude...), extra...)).Scan(ctx, fsys)
}

// Scan returns the manifest of fsys. Symlinks and other non-regular files
// are skipped.
func (s *Scanner) Scan(ctx context.Context, fsys fs.FS) (model.Manifest, error) {
	paths, err := s.collect(ctx, fsys)
	if err != nil {
		return nil, err
	}

	manifest := make(model.Manifest, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := hashFile(fsys, p)
			if err != nil {
				return err
			}
			mu.Lock()
			manifest[p] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (s *Scanner) collect(ctx context.Context, fsys fs.FS) ([]string, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			if s.ignore.MatchDir(p) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.ignore.Match(p) || !s.included(p) {
			return nil
		}
		if err := modsync.ValidatePath(p); err != nil {
			return err
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

func (s *Scanner) included(p string) bool {
	if len(s.include) == 0 {
		return true
	}
	for _, pattern := range s.include {
		pattern = strings.TrimPrefix(pattern, "/")
		if pattern == "**" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}
			continue
		}
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

func hashFile(fsys fs.FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	hash, _, err := modsync.HashContent(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return hash, nil
}
