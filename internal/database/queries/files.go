package queries

import (
	"context"
	"time"
)

const fileColumns = `id, modpack_id, path, state, sync_version, hash, uploaded, created_at, updated_at`

func scanFile(row rowScanner) (File, error) {
	var i File
	err := row.Scan(
		&i.ID,
		&i.ModpackID,
		&i.Path,
		&i.State,
		&i.SyncVersion,
		&i.Hash,
		&i.Uploaded,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listFiles(ctx context.Context, query string, args ...interface{}) ([]File, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []File
	for rows.Next() {
		i, err := scanFile(rows)
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

const insertFile = `INSERT INTO files (id, modpack_id, path, state, sync_version, hash, uploaded, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertFileParams struct {
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

func (q *Queries) InsertFile(ctx context.Context, arg InsertFileParams) error {
	_, err := q.exec(ctx, insertFile,
		arg.ID,
		arg.ModpackID,
		arg.Path,
		arg.State,
		arg.SyncVersion,
		arg.Hash,
		arg.Uploaded,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getFile = `SELECT ` + fileColumns + ` FROM files WHERE id = ?`

func (q *Queries) GetFile(ctx context.Context, id string) (File, error) {
	return scanFile(q.queryRow(ctx, getFile, id))
}

const listLiveFiles = `SELECT ` + fileColumns + ` FROM files
WHERE modpack_id = ? AND state IN ('pending_upload', 'current')
ORDER BY path`

func (q *Queries) ListLiveFiles(ctx context.Context, modpackID string) ([]File, error) {
	return q.listFiles(ctx, listLiveFiles, modpackID)
}

const countLiveFilesByPath = `SELECT COUNT(*) FROM files
WHERE modpack_id = ? AND path = ? AND state IN ('pending_upload', 'current')`

type CountLiveFilesByPathParams struct {
	ModpackID string
	Path      string
}

func (q *Queries) CountLiveFilesByPath(ctx context.Context, arg CountLiveFilesByPathParams) (int64, error) {
	var count int64
	err := q.queryRow(ctx, countLiveFilesByPath, arg.ModpackID, arg.Path).Scan(&count)
	return count, err
}

const removeLiveFile = `UPDATE files
SET state = 'removed', sync_version = ?, updated_at = ?
WHERE id = ? AND state IN ('pending_upload', 'current')`

type RemoveLiveFileParams struct {
	SyncVersion int64
	UpdatedAt   time.Time
	ID          string
}

func (q *Queries) RemoveLiveFile(ctx context.Context, arg RemoveLiveFileParams) (int64, error) {
	result, err := q.exec(ctx, removeLiveFile, arg.SyncVersion, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markFileUploaded = `UPDATE files
SET state = 'current', uploaded = ?, updated_at = ?
WHERE id = ? AND state = 'pending_upload'`

type MarkFileUploadedParams struct {
	Uploaded  bool
	UpdatedAt time.Time
	ID        string
}

func (q *Queries) MarkFileUploaded(ctx context.Context, arg MarkFileUploadedParams) (int64, error) {
	result, err := q.exec(ctx, markFileUploaded, arg.Uploaded, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listFileHistory = `SELECT ` + fileColumns + ` FROM files
WHERE modpack_id = ? AND path = ?
ORDER BY CASE state WHEN 'removed' THEN 1 ELSE 0 END, sync_version DESC, updated_at DESC`

type ListFileHistoryParams struct {
	ModpackID string
	Path      string
}

// ListFileHistory returns the live row first, then tombstones newest first.
func (q *Queries) ListFileHistory(ctx context.Context, arg ListFileHistoryParams) ([]File, error) {
	return q.listFiles(ctx, listFileHistory, arg.ModpackID, arg.Path)
}

const listFilesChangedSince = `SELECT ` + fileColumns + ` FROM files
WHERE modpack_id = ? AND sync_version > ?
ORDER BY sync_version, path, CASE state WHEN 'removed' THEN 0 ELSE 1 END`

type ListFilesChangedSinceParams struct {
	ModpackID   string
	SyncVersion int64
}

// ListFilesChangedSince orders a path's tombstone before its replacement.
func (q *Queries) ListFilesChangedSince(ctx context.Context, arg ListFilesChangedSinceParams) ([]File, error) {
	return q.listFiles(ctx, listFilesChangedSince, arg.ModpackID, arg.SyncVersion)
}

const getUploadedFileByHash = `SELECT ` + fileColumns + ` FROM files
WHERE hash = ? AND uploaded = ?
ORDER BY updated_at DESC
LIMIT 1`

func (q *Queries) GetUploadedFileByHash(ctx context.Context, hash string) (File, error) {
	return scanFile(q.queryRow(ctx, getUploadedFileByHash, hash, true))
}

const getUploadedFileByHashInModpack = `SELECT ` + fileColumns + ` FROM files
WHERE modpack_id = ? AND hash = ? AND uploaded = ?
ORDER BY updated_at DESC
LIMIT 1`

type GetUploadedFileByHashInModpackParams struct {
	ModpackID string
	Hash      string
}

func (q *Queries) GetUploadedFileByHashInModpack(ctx context.Context, arg GetUploadedFileByHashInModpackParams) (File, error) {
	return scanFile(q.queryRow(ctx, getUploadedFileByHashInModpack, arg.ModpackID, arg.Hash, true))
}
