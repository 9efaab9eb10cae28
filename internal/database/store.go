package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"modsync/internal/database/migrations"
	"modsync/internal/database/queries"
	"modsync/internal/model"
	"modsync/internal/modsync"
)

// SQLDatabase implements modsync.Database on top of database/sql. The same
// statements serve SQLite and PostgreSQL; only placeholders and the read
// transaction options differ.
type SQLDatabase struct {
	db      *sql.DB
	queries *queries.Queries
	dialect queries.Dialect
	path    string
	now     func() time.Time
}

func newSQLDatabase(db *sql.DB, dialect queries.Dialect, path string) *SQLDatabase {
	return &SQLDatabase{
		db:      db,
		queries: queries.New(db, dialect),
		dialect: dialect,
		path:    path,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for row timestamps.
func (s *SQLDatabase) SetClock(now func() time.Time) {
	s.now = now
}

// Dialect returns the SQL dialect of the underlying connection.
func (s *SQLDatabase) Dialect() queries.Dialect {
	return s.dialect
}

// DB exposes the underlying connection for migrations and tooling.
func (s *SQLDatabase) DB() *sql.DB {
	return s.db
}

// Path returns the database file path, ":memory:", or "" for server databases.
func (s *SQLDatabase) Path() string {
	return s.path
}

// Modpack operations

func (s *SQLDatabase) CreateModpack(ctx context.Context, modpack *model.Modpack) error {
	err := s.queries.InsertModpack(ctx, queries.InsertModpackParams{
		ID:               modpack.ID,
		Name:             modpack.Name,
		Game:             modpack.Game,
		GameVersion:      modpack.GameVersion,
		Modloader:        modpack.Modloader,
		ModloaderVersion: modpack.ModloaderVersion,
		SyncVersion:      modpack.SyncVersion,
		CreatedAt:        modpack.CreatedAt,
		UpdatedAt:        modpack.UpdatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("modpack %q: %w", modpack.Name, modsync.ErrAlreadyExists)
		}
		return fmt.Errorf("creating modpack: %w", err)
	}
	return nil
}

func (s *SQLDatabase) FindModpack(ctx context.Context, id string) (*model.Modpack, error) {
	row, err := s.queries.GetModpack(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding modpack: %w", err)
	}
	return toModpack(row), nil
}

func (s *SQLDatabase) FindModpackByName(ctx context.Context, name string) (*model.Modpack, error) {
	row, err := s.queries.GetModpackByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding modpack by name: %w", err)
	}
	return toModpack(row), nil
}

func (s *SQLDatabase) ListModpacks(ctx context.Context) ([]*model.Modpack, error) {
	rows, err := s.queries.ListModpacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing modpacks: %w", err)
	}

	result := make([]*model.Modpack, len(rows))
	for i := range rows {
		result[i] = toModpack(rows[i])
	}
	return result, nil
}

func (s *SQLDatabase) UpdateModpackMetadata(ctx context.Context, modpack *model.Modpack) error {
	n, err := s.queries.UpdateModpackMetadata(ctx, queries.UpdateModpackMetadataParams{
		Name:             modpack.Name,
		Game:             modpack.Game,
		GameVersion:      modpack.GameVersion,
		Modloader:        modpack.Modloader,
		ModloaderVersion: modpack.ModloaderVersion,
		UpdatedAt:        modpack.UpdatedAt,
		ID:               modpack.ID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("modpack %q: %w", modpack.Name, modsync.ErrAlreadyExists)
		}
		return fmt.Errorf("updating modpack: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("modpack %s: %w", modpack.ID, modsync.ErrNotFound)
	}
	return nil
}

func (s *SQLDatabase) DeleteModpack(ctx context.Context, id string) error {
	n, err := s.queries.DeleteModpack(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting modpack: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("modpack %s: %w", id, modsync.ErrNotFound)
	}
	return nil
}

// Versioned manifest

// Snapshot reads the version and the live rows inside one read transaction,
// so the pair is never torn by a concurrent commit.
func (s *SQLDatabase) Snapshot(ctx context.Context, modpackID string) (*modsync.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, s.readTxOptions())
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	mp, err := qtx.GetModpack(ctx, modpackID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("modpack %s: %w", modpackID, modsync.ErrNotFound)
		}
		return nil, fmt.Errorf("reading modpack: %w", err)
	}

	rows, err := qtx.ListLiveFiles(ctx, modpackID)
	if err != nil {
		return nil, fmt.Errorf("listing live files: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	snap := &modsync.Snapshot{
		ModpackID: modpackID,
		Version:   mp.SyncVersion,
		Entries:   make(map[string]*model.FileEntry, len(rows)),
	}
	for i := range rows {
		snap.Entries[rows[i].Path] = toFileEntry(rows[i])
	}
	return snap, nil
}

// readTxOptions gives PostgreSQL a repeatable-read snapshot. SQLite
// transactions already see a single consistent state.
func (s *SQLDatabase) readTxOptions() *sql.TxOptions {
	if s.dialect == queries.Postgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// Commit runs the version compare-and-increment and every row mutation in a
// single transaction:
//  1. Bump the modpack version if it still equals expectedVersion.
//  2. Tombstone each removed row at the new version.
//  3. Insert each new live row at the new version.
//
// Any failure rolls the whole thing back.
func (s *SQLDatabase) Commit(ctx context.Context, modpackID string, expectedVersion int64, ops []modsync.CommitOp) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	now := s.now()

	// 1. Compare-and-increment.
	n, err := qtx.BumpModpackVersion(ctx, queries.BumpModpackVersionParams{
		UpdatedAt:       now,
		ID:              modpackID,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return 0, fmt.Errorf("bumping modpack version: %w", err)
	}
	if n == 0 {
		current, err := qtx.GetModpackVersion(ctx, modpackID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, fmt.Errorf("modpack %s: %w", modpackID, modsync.ErrNotFound)
			}
			return 0, fmt.Errorf("reading modpack version: %w", err)
		}
		return 0, &modsync.StaleVersionError{
			ModpackID: modpackID,
			Expected:  expectedVersion,
			Current:   current,
		}
	}
	newVersion := expectedVersion + 1

	// 2. Tombstones.
	for _, op := range ops {
		if op.Kind != modsync.OpRemove {
			continue
		}
		n, err := qtx.RemoveLiveFile(ctx, queries.RemoveLiveFileParams{
			SyncVersion: newVersion,
			UpdatedAt:   now,
			ID:          op.FileID,
		})
		if err != nil {
			return 0, fmt.Errorf("removing %s: %w", op.Path, err)
		}
		if n != 1 {
			return 0, fmt.Errorf("removing %s: entry %s is no longer live", op.Path, op.FileID)
		}
	}

	// 3. New live rows.
	for _, op := range ops {
		if op.Kind != modsync.OpInsert {
			continue
		}
		e := op.Entry
		live, err := qtx.CountLiveFilesByPath(ctx, queries.CountLiveFilesByPathParams{
			ModpackID: modpackID,
			Path:      e.Path,
		})
		if err != nil {
			return 0, fmt.Errorf("checking live entries for %s: %w", e.Path, err)
		}
		if live != 0 {
			return 0, fmt.Errorf("inserting %s: path already has a live entry", e.Path)
		}

		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		err = qtx.InsertFile(ctx, queries.InsertFileParams{
			ID:          e.ID,
			ModpackID:   modpackID,
			Path:        e.Path,
			State:       string(e.State),
			SyncVersion: newVersion,
			Hash:        e.Hash,
			Uploaded:    e.Uploaded,
			CreatedAt:   createdAt,
			UpdatedAt:   now,
		})
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return newVersion, nil
}

// File operations

func (s *SQLDatabase) FindFile(ctx context.Context, id string) (*model.FileEntry, error) {
	row, err := s.queries.GetFile(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file: %w", err)
	}
	return toFileEntry(row), nil
}

func (s *SQLDatabase) FindFileHistory(ctx context.Context, modpackID, path string) ([]*model.FileEntry, error) {
	rows, err := s.queries.ListFileHistory(ctx, queries.ListFileHistoryParams{
		ModpackID: modpackID,
		Path:      path,
	})
	if err != nil {
		return nil, fmt.Errorf("finding file history: %w", err)
	}
	return toFileEntries(rows), nil
}

func (s *SQLDatabase) FindFilesChangedSince(ctx context.Context, modpackID string, version int64) ([]*model.FileEntry, error) {
	rows, err := s.queries.ListFilesChangedSince(ctx, queries.ListFilesChangedSinceParams{
		ModpackID:   modpackID,
		SyncVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("finding changed files: %w", err)
	}
	return toFileEntries(rows), nil
}

func (s *SQLDatabase) FindUploadedByHash(ctx context.Context, modpackID, hash string) (*model.FileEntry, error) {
	var (
		row queries.File
		err error
	)
	if modpackID == "" {
		row, err = s.queries.GetUploadedFileByHash(ctx, hash)
	} else {
		row, err = s.queries.GetUploadedFileByHashInModpack(ctx, queries.GetUploadedFileByHashInModpackParams{
			ModpackID: modpackID,
			Hash:      hash,
		})
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding uploaded content: %w", err)
	}
	return toFileEntry(row), nil
}

func (s *SQLDatabase) MarkUploaded(ctx context.Context, fileID string, at time.Time) (bool, error) {
	n, err := s.queries.MarkFileUploaded(ctx, queries.MarkFileUploadedParams{
		Uploaded:  true,
		UpdatedAt: at,
		ID:        fileID,
	})
	if err != nil {
		return false, fmt.Errorf("marking file uploaded: %w", err)
	}
	return n == 1, nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, s.dialect)
}

// Migrate applies any pending migrations.
func (s *SQLDatabase) Migrate() error {
	return migrations.MigrateUp(s.db, s.dialect)
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toModpack(row queries.Modpack) *model.Modpack {
	return &model.Modpack{
		ID:               row.ID,
		Name:             row.Name,
		Game:             row.Game,
		GameVersion:      row.GameVersion,
		Modloader:        row.Modloader,
		ModloaderVersion: row.ModloaderVersion,
		SyncVersion:      row.SyncVersion,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

func toFileEntry(row queries.File) *model.FileEntry {
	return &model.FileEntry{
		ID:          row.ID,
		ModpackID:   row.ModpackID,
		Path:        row.Path,
		State:       model.FileState(row.State),
		SyncVersion: row.SyncVersion,
		Hash:        row.Hash,
		Uploaded:    row.Uploaded,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func toFileEntries(rows []queries.File) []*model.FileEntry {
	result := make([]*model.FileEntry, len(rows))
	for i := range rows {
		result[i] = toFileEntry(rows[i])
	}
	return result
}

// isUniqueViolation reports whether err is a unique constraint failure in
// either dialect.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Compile-time check that SQLDatabase implements modsync.Database.
var _ modsync.Database = (*SQLDatabase)(nil)
