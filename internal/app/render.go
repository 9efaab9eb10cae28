package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"modsync/internal/model"
	"modsync/internal/modsync"
)

// Manifest output formats accepted by RenderManifest.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// shortHash trims a content hash for tabular output.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func platform(mp *model.Modpack) string {
	var parts []string
	for _, pair := range [][2]string{{mp.Game, mp.GameVersion}, {mp.Modloader, mp.ModloaderVersion}} {
		if s := strings.TrimSpace(pair[0] + " " + pair[1]); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// RenderModpacks writes one line per modpack.
func RenderModpacks(w io.Writer, modpacks []*model.Modpack) {
	if len(modpacks) == 0 {
		fmt.Fprintln(w, "No modpacks.")
		return
	}
	for _, mp := range modpacks {
		fmt.Fprintf(w, "%s  %s  v%d  %s\n", mp.ID, mp.Name, mp.SyncVersion, platform(mp))
	}
}

// RenderModpack writes a modpack's metadata followed by its live files.
func RenderModpack(w io.Writer, view *modsync.ModpackView) {
	mp := view.Modpack
	fmt.Fprintf(w, "Modpack:  %s (%s)\n", mp.Name, mp.ID)
	fmt.Fprintf(w, "Platform: %s\n", platform(mp))
	fmt.Fprintf(w, "Version:  %d\n", mp.SyncVersion)
	fmt.Fprintf(w, "Updated:  %s\n", mp.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Files:    %d\n", len(view.Files))
	for _, f := range view.Files {
		fmt.Fprintf(w, "  %-14s  %s  %s\n", f.State, shortHash(f.Hash), f.Path)
	}
}

// RenderPublish summarizes a committed publish.
func RenderPublish(w io.Writer, res *modsync.PublishResult) {
	fmt.Fprintf(w, "Published version %d of %s\n", res.Version, res.ModpackID)
	fmt.Fprintf(w, "  added    %d\n", len(res.Added))
	fmt.Fprintf(w, "  changed  %d\n", len(res.Changed))
	fmt.Fprintf(w, "  removed  %d\n", len(res.Removed))
	if len(res.PendingUploads) == 0 {
		return
	}
	fmt.Fprintf(w, "Pending uploads: %d\n", len(res.PendingUploads))
	for _, p := range res.PendingUploads {
		fmt.Fprintf(w, "  %s\n", p.Path)
	}
}

// RenderPlan lists the actions a pull would take.
func RenderPlan(w io.Writer, plan *modsync.SyncPlan) {
	if len(plan.Actions) == 0 {
		fmt.Fprintf(w, "Up to date at version %d\n", plan.Version)
		return
	}
	fmt.Fprintf(w, "Version %d: %d to fetch, %d to delete\n", plan.Version, len(plan.Fetches()), len(plan.Deletes()))
	for _, a := range plan.Actions {
		line := fmt.Sprintf("  %-6s  %s", a.Kind, a.Path)
		if a.Pending {
			line += " (pending upload)"
		}
		fmt.Fprintln(w, line)
	}
}

// RenderHistory lists every row recorded for path, newest first.
func RenderHistory(w io.Writer, path string, history []*model.FileEntry) {
	if len(history) == 0 {
		fmt.Fprintf(w, "No history for %s\n", path)
		return
	}
	fmt.Fprintf(w, "History of %s\n", path)
	for _, e := range history {
		fmt.Fprintf(w, "  v%-4d  %-14s  %s\n", e.SyncVersion, e.State, shortHash(e.Hash))
	}
}

// RenderChanges lists rows that changed after a version.
func RenderChanges(w io.Writer, cs *modsync.ChangeSet) {
	if len(cs.Changes) == 0 {
		fmt.Fprintf(w, "No changes since version %d (now %d)\n", cs.Since, cs.Version)
		return
	}
	fmt.Fprintf(w, "Changes since version %d (now %d)\n", cs.Since, cs.Version)
	for _, e := range cs.Changes {
		fmt.Fprintf(w, "  v%-4d  %-14s  %s  %s\n", e.SyncVersion, e.State, shortHash(e.Hash), e.Path)
	}
}

// RenderManifest writes m in the given format. Text output matches sha256sum.
func RenderManifest(w io.Writer, m model.Manifest, format string) error {
	switch format {
	case FormatText, "":
		paths := make([]string, 0, len(m))
		for p := range m {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if _, err := fmt.Fprintf(w, "%s  %s\n", m[p], p); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		data, err := json.MarshalIndent(map[string]string(m), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding manifest: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]string(m)); err != nil {
			return fmt.Errorf("encoding manifest: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
