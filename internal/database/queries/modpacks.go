package queries

import (
	"context"
	"time"
)

const modpackColumns = `id, name, game, game_version, modloader, modloader_version, sync_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanModpack(row rowScanner) (Modpack, error) {
	var i Modpack
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Game,
		&i.GameVersion,
		&i.Modloader,
		&i.ModloaderVersion,
		&i.SyncVersion,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertModpack = `INSERT INTO modpacks (id, name, game, game_version, modloader, modloader_version, sync_version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertModpackParams struct {
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

func (q *Queries) InsertModpack(ctx context.Context, arg InsertModpackParams) error {
	_, err := q.exec(ctx, insertModpack,
		arg.ID,
		arg.Name,
		arg.Game,
		arg.GameVersion,
		arg.Modloader,
		arg.ModloaderVersion,
		arg.SyncVersion,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getModpack = `SELECT ` + modpackColumns + ` FROM modpacks WHERE id = ?`

func (q *Queries) GetModpack(ctx context.Context, id string) (Modpack, error) {
	return scanModpack(q.queryRow(ctx, getModpack, id))
}

const getModpackByName = `SELECT ` + modpackColumns + ` FROM modpacks WHERE name = ?`

func (q *Queries) GetModpackByName(ctx context.Context, name string) (Modpack, error) {
	return scanModpack(q.queryRow(ctx, getModpackByName, name))
}

const listModpacks = `SELECT ` + modpackColumns + ` FROM modpacks ORDER BY name`

func (q *Queries) ListModpacks(ctx context.Context) ([]Modpack, error) {
	rows, err := q.query(ctx, listModpacks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Modpack
	for rows.Next() {
		i, err := scanModpack(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateModpackMetadata = `UPDATE modpacks
SET name = ?, game = ?, game_version = ?, modloader = ?, modloader_version = ?, updated_at = ?
WHERE id = ?`

type UpdateModpackMetadataParams struct {
	Name             string
	Game             string
	GameVersion      string
	Modloader        string
	ModloaderVersion string
	UpdatedAt        time.Time
	ID               string
}

func (q *Queries) UpdateModpackMetadata(ctx context.Context, arg UpdateModpackMetadataParams) (int64, error) {
	result, err := q.exec(ctx, updateModpackMetadata,
		arg.Name,
		arg.Game,
		arg.GameVersion,
		arg.Modloader,
		arg.ModloaderVersion,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteModpack = `DELETE FROM modpacks WHERE id = ?`

func (q *Queries) DeleteModpack(ctx context.Context, id string) (int64, error) {
	result, err := q.exec(ctx, deleteModpack, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getModpackVersion = `SELECT sync_version FROM modpacks WHERE id = ?`

func (q *Queries) GetModpackVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := q.queryRow(ctx, getModpackVersion, id).Scan(&version)
	return version, err
}

const bumpModpackVersion = `UPDATE modpacks
SET sync_version = sync_version + 1, updated_at = ?
WHERE id = ? AND sync_version = ?`

type BumpModpackVersionParams struct {
	UpdatedAt       time.Time
	ID              string
	ExpectedVersion int64
}

// BumpModpackVersion is the compare-and-increment on a modpack's version.
// It affects zero rows when the version moved on or the modpack is gone.
func (q *Queries) BumpModpackVersion(ctx context.Context, arg BumpModpackVersionParams) (int64, error) {
	result, err := q.exec(ctx, bumpModpackVersion, arg.UpdatedAt, arg.ID, arg.ExpectedVersion)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
