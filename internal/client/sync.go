package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"modsync/internal/config"
	localfs "modsync/internal/fs"
	"modsync/internal/model"
	"modsync/internal/modsync"
)

// PublishOptions controls PublishDir.
type PublishOptions struct {
	// Refresh diffs against the server's current version instead of the
	// version this directory last observed.
	Refresh    bool
	AllowEmpty bool
}

// PublishReport describes what PublishDir did.
type PublishReport struct {
	Result   *modsync.PublishResult // nil when the server already matched
	Version  int64
	Uploaded int
}

// PublishDir scans dir, publishes it, and uploads the content of every
// pending entry the directory holds. Uploads left over from an earlier,
// interrupted publish are retried even when nothing else changed.
func (c *Client) PublishDir(ctx context.Context, dir string, project *config.ProjectConfig, opts PublishOptions) (*PublishReport, error) {
	state, err := config.LoadState(dir)
	if err != nil {
		return nil, err
	}
	manifest, err := localfs.ScanDir(ctx, dir, project.Include, project.Exclude)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	expected := state.SyncVersion
	if opts.Refresh {
		view, err := c.GetModpack(ctx, project.ModpackID)
		if err != nil {
			return nil, err
		}
		expected = view.Modpack.SyncVersion
	}

	report := &PublishReport{}
	res, err := c.Publish(ctx, project.ModpackID, manifest, expected, opts.AllowEmpty)
	var noChanges *modsync.NoChangesError
	switch {
	case errors.As(err, &noChanges):
		report.Version = noChanges.Version
	case err != nil:
		return nil, err
	default:
		report.Result = res
		report.Version = res.Version
	}

	// The publish is committed; record it before uploading so a retry
	// does not trip over its own version.
	if err := config.SaveState(dir, &config.ProjectState{SyncVersion: report.Version, Files: manifest}); err != nil {
		return nil, err
	}

	view, err := c.GetModpack(ctx, project.ModpackID)
	if err != nil {
		return nil, err
	}
	var pending []*model.FileEntry
	for _, f := range view.Files {
		if f.State == model.StatePendingUpload && manifest[f.Path] == f.Hash {
			pending = append(pending, f)
		}
	}

	var uploaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, f := range pending {
		f := f
		g.Go(func() error {
			res, err := c.uploadFile(gctx, dir, project.ModpackID, f)
			if err != nil {
				return err
			}
			if res.Transitioned {
				uploaded.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Uploaded = int(uploaded.Load())
	return report, nil
}

func (c *Client) uploadFile(ctx context.Context, dir, modpackID string, f *model.FileEntry) (*modsync.UploadResult, error) {
	file, err := os.Open(filepath.Join(dir, filepath.FromSlash(f.Path)))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer file.Close()

	res, err := c.Upload(ctx, modpackID, f.Path, f.Hash, file)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", f.Path, err)
	}
	c.logger.Debug("uploaded", "path", f.Path, "transitioned", res.Transitioned)
	return res, nil
}

// Status scans dir and returns the plan a pull would apply.
func (c *Client) Status(ctx context.Context, dir string, project *config.ProjectConfig) (*modsync.SyncPlan, error) {
	manifest, err := localfs.ScanDir(ctx, dir, project.Include, project.Exclude)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return c.PlanSync(ctx, project.ModpackID, manifest)
}

// PullReport describes what Pull did.
type PullReport struct {
	Version int64 // target version; recorded as synced only when nothing was skipped
	Fetched int
	Deleted int
	Skipped []string // fetches whose content has not been uploaded yet
}

// Pull brings dir up to the modpack's latest version. All fetches complete
// and verify before anything is deleted, so a failed pull never leaves the
// directory with less than it had.
func (c *Client) Pull(ctx context.Context, dir string, project *config.ProjectConfig) (*PullReport, error) {
	manifest, err := localfs.ScanDir(ctx, dir, project.Include, project.Exclude)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	plan, err := c.PlanSync(ctx, project.ModpackID, manifest)
	if err != nil {
		return nil, err
	}

	report := &PullReport{Version: plan.Version}
	var fetches []modsync.Action
	for _, a := range plan.Fetches() {
		if a.Pending {
			report.Skipped = append(report.Skipped, a.Path)
			continue
		}
		fetches = append(fetches, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, a := range fetches {
		a := a
		g.Go(func() error {
			return c.fetch(gctx, dir, a.Path, a.Hash)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, a := range fetches {
		manifest[a.Path] = a.Hash
	}
	report.Fetched = len(fetches)

	for _, a := range plan.Deletes() {
		if err := removeFile(dir, a.Path); err != nil {
			return nil, err
		}
		delete(manifest, a.Path)
		report.Deleted++
	}

	// A directory missing skipped files has not reached plan.Version.
	synced := plan.Version
	if len(report.Skipped) > 0 {
		prev, err := config.LoadState(dir)
		if err != nil {
			return nil, err
		}
		synced = prev.SyncVersion
	}
	if err := config.SaveState(dir, &config.ProjectState{SyncVersion: synced, Files: manifest}); err != nil {
		return nil, err
	}
	c.logger.Info("pull finished", "modpack", project.ModpackID, "version", plan.Version,
		"fetched", report.Fetched, "deleted", report.Deleted, "skipped", len(report.Skipped))
	return report, nil
}

// fetch downloads hash into a temp file beside rel, verifies it and renames
// it into place.
func (c *Client) fetch(ctx context.Context, dir, rel, hash string) error {
	dest := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), localfs.TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", rel, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	err = c.Download(ctx, hash, io.MultiWriter(tmp, hasher))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", rel, err)
	}

	if got := hex.EncodeToString(hasher.Sum(nil)); got != hash {
		return &modsync.IntegrityMismatchError{Path: rel, Declared: hash, Computed: got}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", rel, err)
	}
	c.logger.Debug("fetched", "path", rel)
	return nil
}

// removeFile deletes rel and any parent directories it leaves empty.
func removeFile(dir, rel string) error {
	if err := os.Remove(filepath.Join(dir, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", rel, err)
	}
	for p := path.Dir(rel); p != "."; p = path.Dir(p) {
		if os.Remove(filepath.Join(dir, filepath.FromSlash(p))) != nil {
			break
		}
	}
	return nil
}
