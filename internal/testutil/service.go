package testutil

import (
	"testing"

	"modsync/internal/blobstore"
	"modsync/internal/database"
	"modsync/internal/modsync"
)

// Env bundles a SyncService with the in-memory stores behind it so tests
// can inspect them directly.
type Env struct {
	Service *modsync.SyncService
	DB      *database.SQLDatabase
	Blobs   *blobstore.MemoryStore
	Staging modsync.StagingArea
	Clock   *StubClock
}

// NewTestService wires a SyncService over an in-memory database, blob store
// and staging area with a fixed clock and sequential IDs.
func NewTestService(t *testing.T, settings modsync.Settings) *Env {
	t.Helper()

	env := &Env{
		DB:      NewTestDatabase(t),
		Blobs:   NewTestBlobStore(),
		Staging: NewTestStagingArea(),
		Clock:   FixedClock(),
	}
	env.DB.SetClock(env.Clock.Now)
	env.Service = modsync.NewSyncService(env.DB, env.Staging, env.Blobs, modsync.NewNopLogger(), env.Clock, NewStubIDGenerator(), settings)
	return env
}
