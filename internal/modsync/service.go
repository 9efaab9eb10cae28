package modsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"modsync/internal/model"
)

// Settings tunes engine behavior that is chosen per deployment.
type Settings struct {
	// ShareContentAcrossModpacks lets a publish mark an entry current
	// immediately when another modpack already uploaded the same content.
	ShareContentAcrossModpacks bool
}

// SyncService is the reconciliation engine. It diffs published manifests
// against the version store, gates uploaded content on its hash and plans
// client convergence.
type SyncService struct {
	database Database
	staging  StagingArea
	blobs    BlobStore
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	settings Settings
}

// NewSyncService creates a SyncService with the provided dependencies.
func NewSyncService(database Database, staging StagingArea, blobs BlobStore, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *SyncService {
	return &SyncService{
		database: database,
		staging:  staging,
		blobs:    blobs,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		settings: settings,
	}
}

// ModpackInput carries the descriptive fields of a modpack.
type ModpackInput struct {
	Name             string
	Game             string
	GameVersion      string
	Modloader        string
	ModloaderVersion string
}

// ModpackView is a modpack together with its live files.
type ModpackView struct {
	Modpack *model.Modpack
	Files   []*model.FileEntry // sorted by path
}

// CreateModpack registers a new, empty modpack at version 0.
func (s *SyncService) CreateModpack(ctx context.Context, in ModpackInput) (*model.Modpack, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: modpack name is required", ErrInvalidArgument)
	}

	existing, err := s.database.FindModpackByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing modpack: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("modpack %q: %w", name, ErrAlreadyExists)
	}

	now := s.clock.Now()
	modpack := &model.Modpack{
		ID:               s.idgen.New(),
		Name:             name,
		Game:             strings.TrimSpace(in.Game),
		GameVersion:      strings.TrimSpace(in.GameVersion),
		Modloader:        strings.TrimSpace(in.Modloader),
		ModloaderVersion: strings.TrimSpace(in.ModloaderVersion),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.database.CreateModpack(ctx, modpack); err != nil {
		return nil, fmt.Errorf("creating modpack: %w", err)
	}

	s.logger.Info("modpack created", "modpack", modpack.ID, "name", modpack.Name)
	return modpack, nil
}

// GetModpack returns a modpack and its live files as of one snapshot.
func (s *SyncService) GetModpack(ctx context.Context, id string) (*ModpackView, error) {
	modpack, err := s.database.FindModpack(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding modpack: %w", err)
	}
	if modpack == nil {
		return nil, fmt.Errorf("modpack %s: %w", id, ErrNotFound)
	}

	snap, err := s.database.Snapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	modpack.SyncVersion = snap.Version

	files := make([]*model.FileEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		files = append(files, e)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &ModpackView{Modpack: modpack, Files: files}, nil
}

// ListModpacks returns every modpack ordered by name.
func (s *SyncService) ListModpacks(ctx context.Context) ([]*model.Modpack, error) {
	modpacks, err := s.database.ListModpacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing modpacks: %w", err)
	}
	return modpacks, nil
}

// UpdateModpack rewrites a modpack's descriptive fields without touching its
// version or files. Empty fields in the input keep their stored value.
func (s *SyncService) UpdateModpack(ctx context.Context, id string, in ModpackInput) (*model.Modpack, error) {
	modpack, err := s.database.FindModpack(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding modpack: %w", err)
	}
	if modpack == nil {
		return nil, fmt.Errorf("modpack %s: %w", id, ErrNotFound)
	}

	if name := strings.TrimSpace(in.Name); name != "" && name != modpack.Name {
		existing, err := s.database.FindModpackByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("checking for existing modpack: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("modpack %q: %w", name, ErrAlreadyExists)
		}
		modpack.Name = name
	}
	setIfPresent(&modpack.Game, in.Game)
	setIfPresent(&modpack.GameVersion, in.GameVersion)
	setIfPresent(&modpack.Modloader, in.Modloader)
	setIfPresent(&modpack.ModloaderVersion, in.ModloaderVersion)
	modpack.UpdatedAt = s.clock.Now()

	if err := s.database.UpdateModpackMetadata(ctx, modpack); err != nil {
		return nil, fmt.Errorf("updating modpack: %w", err)
	}

	s.logger.Info("modpack updated", "modpack", modpack.ID)
	return modpack, nil
}

// DeleteModpack removes a modpack and its entire file history.
// Blobs are left in the blob store.
func (s *SyncService) DeleteModpack(ctx context.Context, id string) error {
	modpack, err := s.database.FindModpack(ctx, id)
	if err != nil {
		return fmt.Errorf("finding modpack: %w", err)
	}
	if modpack == nil {
		return fmt.Errorf("modpack %s: %w", id, ErrNotFound)
	}

	if err := s.database.DeleteModpack(ctx, id); err != nil {
		return fmt.Errorf("deleting modpack: %w", err)
	}

	s.logger.Info("modpack deleted", "modpack", id, "name", modpack.Name)
	return nil
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
