// Package api defines the JSON bodies exchanged between the modsync server
// and its clients, and the mapping between domain errors and error bodies.
package api

import (
	"time"

	"modsync/internal/model"
	"modsync/internal/modsync"
)

// Modpack is the wire form of model.Modpack.
type Modpack struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Game             string    `json:"game,omitempty"`
	GameVersion      string    `json:"game_version,omitempty"`
	Modloader        string    `json:"modloader,omitempty"`
	ModloaderVersion string    `json:"modloader_version,omitempty"`
	SyncVersion      int64     `json:"sync_version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FileEntry is the wire form of model.FileEntry.
type FileEntry struct {
	ID          string          `json:"id"`
	ModpackID   string          `json:"modpack_id"`
	Path        string          `json:"path"`
	State       model.FileState `json:"state"`
	SyncVersion int64           `json:"sync_version"`
	Hash        string          `json:"hash"`
	Uploaded    bool            `json:"uploaded"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ModpackInput carries modpack metadata for create and update.
type ModpackInput struct {
	Name             string `json:"name"`
	Game             string `json:"game,omitempty"`
	GameVersion      string `json:"game_version,omitempty"`
	Modloader        string `json:"modloader,omitempty"`
	ModloaderVersion string `json:"modloader_version,omitempty"`
}

// ModpackView is a modpack with its live files.
type ModpackView struct {
	Modpack Modpack     `json:"modpack"`
	Files   []FileEntry `json:"files"`
}

// ModpackList is the body of GET /modpack.
type ModpackList struct {
	Modpacks []Modpack `json:"modpacks"`
}

// PublishRequest is the body of POST /modpack/:id/publish.
type PublishRequest struct {
	Files           model.Manifest `json:"files"`
	ExpectedVersion int64          `json:"expected_version"`
	AllowEmpty      bool           `json:"allow_empty,omitempty"`
}

// PendingUpload names content the publisher must upload next.
type PendingUpload struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// PublishResponse reports a committed publish.
type PublishResponse struct {
	ModpackID      string          `json:"modpack_id"`
	Version        int64           `json:"version"`
	Added          []string        `json:"added"`
	Changed        []string        `json:"changed"`
	Removed        []string        `json:"removed"`
	PendingUploads []PendingUpload `json:"pending_uploads"`
}

// UploadResponse reports the entry an upload applied to.
type UploadResponse struct {
	FileID       string          `json:"file_id"`
	Path         string          `json:"path"`
	Hash         string          `json:"hash"`
	State        model.FileState `json:"state"`
	Transitioned bool            `json:"transitioned"`
}

// SyncRequest is a client's current manifest.
type SyncRequest struct {
	Files model.Manifest `json:"files"`
}

// Action is one step of a sync plan.
type Action struct {
	Kind    modsync.ActionKind `json:"kind"`
	Path    string             `json:"path"`
	Hash    string             `json:"hash,omitempty"`
	Pending bool               `json:"pending,omitempty"`
}

// SyncResponse is the plan that converges a client.
type SyncResponse struct {
	ModpackID string   `json:"modpack_id"`
	Version   int64    `json:"version"`
	Actions   []Action `json:"actions"`
}

// ChangesResponse lists rows changed after a version.
type ChangesResponse struct {
	ModpackID string      `json:"modpack_id"`
	Since     int64       `json:"since"`
	Version   int64       `json:"version"`
	Changes   []FileEntry `json:"changes"`
}

// HistoryResponse lists every row for one path, newest first.
type HistoryResponse struct {
	ModpackID string      `json:"modpack_id"`
	Path      string      `json:"path"`
	History   []FileEntry `json:"history"`
}

// HelloResponse answers an authenticated ping.
type HelloResponse struct {
	Version string `json:"version"`
}

func FromModpack(mp *model.Modpack) Modpack {
	return Modpack{
		ID:               mp.ID,
		Name:             mp.Name,
		Game:             mp.Game,
		GameVersion:      mp.GameVersion,
		Modloader:        mp.Modloader,
		ModloaderVersion: mp.ModloaderVersion,
		SyncVersion:      mp.SyncVersion,
		CreatedAt:        mp.CreatedAt,
		UpdatedAt:        mp.UpdatedAt,
	}
}

func (m Modpack) Model() *model.Modpack {
	return &model.Modpack{
		ID:               m.ID,
		Name:             m.Name,
		Game:             m.Game,
		GameVersion:      m.GameVersion,
		Modloader:        m.Modloader,
		ModloaderVersion: m.ModloaderVersion,
		SyncVersion:      m.SyncVersion,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func FromModpacks(mps []*model.Modpack) []Modpack {
	out := make([]Modpack, len(mps))
	for i, mp := range mps {
		out[i] = FromModpack(mp)
	}
	return out
}

func FromFileEntry(e *model.FileEntry) FileEntry {
	return FileEntry{
		ID:          e.ID,
		ModpackID:   e.ModpackID,
		Path:        e.Path,
		State:       e.State,
		SyncVersion: e.SyncVersion,
		Hash:        e.Hash,
		Uploaded:    e.Uploaded,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (e FileEntry) Model() *model.FileEntry {
	return &model.FileEntry{
		ID:          e.ID,
		ModpackID:   e.ModpackID,
		Path:        e.Path,
		State:       e.State,
		SyncVersion: e.SyncVersion,
		Hash:        e.Hash,
		Uploaded:    e.Uploaded,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func FromFileEntries(entries []*model.FileEntry) []FileEntry {
	out := make([]FileEntry, len(entries))
	for i, e := range entries {
		out[i] = FromFileEntry(e)
	}
	return out
}

func ToFileEntries(entries []FileEntry) []*model.FileEntry {
	out := make([]*model.FileEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Model()
	}
	return out
}

func (in ModpackInput) Domain() modsync.ModpackInput {
	return modsync.ModpackInput{
		Name:             in.Name,
		Game:             in.Game,
		GameVersion:      in.GameVersion,
		Modloader:        in.Modloader,
		ModloaderVersion: in.ModloaderVersion,
	}
}

func FromModpackInput(in modsync.ModpackInput) ModpackInput {
	return ModpackInput{
		Name:             in.Name,
		Game:             in.Game,
		GameVersion:      in.GameVersion,
		Modloader:        in.Modloader,
		ModloaderVersion: in.ModloaderVersion,
	}
}

func FromModpackView(v *modsync.ModpackView) ModpackView {
	return ModpackView{Modpack: FromModpack(v.Modpack), Files: FromFileEntries(v.Files)}
}

func (v ModpackView) Domain() *modsync.ModpackView {
	return &modsync.ModpackView{Modpack: v.Modpack.Model(), Files: ToFileEntries(v.Files)}
}

func FromPublishResult(r *modsync.PublishResult) PublishResponse {
	pending := make([]PendingUpload, len(r.PendingUploads))
	for i, p := range r.PendingUploads {
		pending[i] = PendingUpload{Path: p.Path, Hash: p.Hash}
	}
	return PublishResponse{
		ModpackID:      r.ModpackID,
		Version:        r.Version,
		Added:          nonNil(r.Added),
		Changed:        nonNil(r.Changed),
		Removed:        nonNil(r.Removed),
		PendingUploads: pending,
	}
}

func (r PublishResponse) Domain() *modsync.PublishResult {
	var pending []modsync.PendingUpload
	for _, p := range r.PendingUploads {
		pending = append(pending, modsync.PendingUpload{Path: p.Path, Hash: p.Hash})
	}
	return &modsync.PublishResult{
		ModpackID:      r.ModpackID,
		Version:        r.Version,
		Added:          r.Added,
		Changed:        r.Changed,
		Removed:        r.Removed,
		PendingUploads: pending,
	}
}

func FromUploadResult(r *modsync.UploadResult) UploadResponse {
	return UploadResponse{FileID: r.FileID, Path: r.Path, Hash: r.Hash, State: r.State, Transitioned: r.Transitioned}
}

func (r UploadResponse) Domain() *modsync.UploadResult {
	return &modsync.UploadResult{FileID: r.FileID, Path: r.Path, Hash: r.Hash, State: r.State, Transitioned: r.Transitioned}
}

func FromSyncPlan(p *modsync.SyncPlan) SyncResponse {
	actions := make([]Action, len(p.Actions))
	for i, a := range p.Actions {
		actions[i] = Action{Kind: a.Kind, Path: a.Path, Hash: a.Hash, Pending: a.Pending}
	}
	return SyncResponse{ModpackID: p.ModpackID, Version: p.Version, Actions: actions}
}

func (r SyncResponse) Domain() *modsync.SyncPlan {
	var actions []modsync.Action
	for _, a := range r.Actions {
		actions = append(actions, modsync.Action{Kind: a.Kind, Path: a.Path, Hash: a.Hash, Pending: a.Pending})
	}
	return &modsync.SyncPlan{ModpackID: r.ModpackID, Version: r.Version, Actions: actions}
}

func FromChangeSet(cs *modsync.ChangeSet) ChangesResponse {
	return ChangesResponse{ModpackID: cs.ModpackID, Since: cs.Since, Version: cs.Version, Changes: FromFileEntries(cs.Changes)}
}

func (r ChangesResponse) Domain() *modsync.ChangeSet {
	return &modsync.ChangeSet{ModpackID: r.ModpackID, Since: r.Since, Version: r.Version, Changes: ToFileEntries(r.Changes)}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
