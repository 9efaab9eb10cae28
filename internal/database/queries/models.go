package queries

import (
	"time"
)

type Modpack struct {
	ID               string
	Name             string
	Game             string
	GameVersion      string
	Modloader        string
	ModloaderVersion string
	SyncVersion      int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type File struct {
	ID          string
	ModpackID   string
	Path        string
	State       string
	SyncVersion int64
	Hash        string
	Uploaded    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
