package modsync

import (
	"sort"

	"modsync/internal/model"
)

// Diff partitions the paths that differ between a published manifest and a
// new one. The three sets are disjoint and each is sorted.
type Diff struct {
	Added   []string // in the new manifest only
	Changed []string // in both, with a different hash
	Removed []string // in the published manifest only
}

// Empty reports whether the manifests were identical.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// ComputeDiff compares the published manifest against next.
// Paths present in both with equal hashes appear in no set.
func ComputeDiff(published, next model.Manifest) *Diff {
	d := &Diff{}
	for path, hash := range next {
		old, ok := published[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case old != hash:
			d.Changed = append(d.Changed, path)
		}
	}
	for path := range published {
		if _, ok := next[path]; !ok {
			d.Removed = append(d.Removed, path)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	return d
}
