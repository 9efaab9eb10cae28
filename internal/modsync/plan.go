package modsync

import (
	"context"
	"fmt"
	"sort"

	"modsync/internal/model"
)

// ActionKind is the kind of step a client takes to converge.
type ActionKind string

const (
	ActionFetch  ActionKind = "fetch"
	ActionDelete ActionKind = "delete"
)

// Action is one step of a sync plan.
type Action struct {
	Kind ActionKind
	Path string
	Hash string // content to fetch; empty for deletes
	// Pending is set when the entry's content has not been uploaded yet,
	// so a fetch may have to be retried later.
	Pending bool
}

// SyncPlan is the ordered list of actions that brings a client manifest to
// the modpack's latest version. All fetches come before all deletes.
type SyncPlan struct {
	ModpackID string
	Version   int64
	Actions   []Action
}

// Fetches returns the fetch actions of the plan.
func (p *SyncPlan) Fetches() []Action { return p.filter(ActionFetch) }

// Deletes returns the delete actions of the plan.
func (p *SyncPlan) Deletes() []Action { return p.filter(ActionDelete) }

func (p *SyncPlan) filter(kind ActionKind) []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// PlanSync diffs a client's manifest against the modpack's live manifest.
func (s *SyncService) PlanSync(ctx context.Context, modpackID string, client model.Manifest) (*SyncPlan, error) {
	if err := ValidateManifest(client); err != nil {
		return nil, err
	}

	snap, err := s.database.Snapshot(ctx, modpackID)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	plan := &SyncPlan{
		ModpackID: modpackID,
		Version:   snap.Version,
		Actions:   ComputeActions(snap, client),
	}

	s.logger.Debug("sync planned",
		"modpack", modpackID,
		"version", snap.Version,
		"fetch", len(plan.Fetches()),
		"delete", len(plan.Deletes()),
	)
	return plan, nil
}

// ComputeActions returns the fetches for every live path the client lacks or
// holds with a different hash, followed by deletes for every client path that
// is not live. Renames surface as one fetch plus one delete.
func ComputeActions(snap *Snapshot, client model.Manifest) []Action {
	var fetches, deletes []Action
	for path, e := range snap.Entries {
		if have, ok := client[path]; ok && have == e.Hash {
			continue
		}
		fetches = append(fetches, Action{
			Kind:    ActionFetch,
			Path:    path,
			Hash:    e.Hash,
			Pending: e.State == model.StatePendingUpload,
		})
	}
	for path := range client {
		if _, ok := snap.Entries[path]; !ok {
			deletes = append(deletes, Action{Kind: ActionDelete, Path: path})
		}
	}

	sort.Slice(fetches, func(i, j int) bool { return fetches[i].Path < fetches[j].Path })
	sort.Slice(deletes, func(i, j int) bool { return deletes[i].Path < deletes[j].Path })
	return append(fetches, deletes...)
}
