package modsync_test

import (
	"context"
	"strings"
	"testing"

	"modsync/internal/model"
	"modsync/internal/modsync"
	"modsync/internal/testutil"
)

var h = testutil.Hash

func createModpack(t *testing.T, env *testutil.Env, name string) *model.Modpack {
	t.Helper()
	mp, err := env.Service.CreateModpack(context.Background(), modsync.ModpackInput{
		Name:      name,
		Game:      "minecraft",
		Modloader: "fabric",
	})
	if err != nil {
		t.Fatalf("CreateModpack() error = %v", err)
	}
	return mp
}

func publish(t *testing.T, env *testutil.Env, modpackID string, expected int64, m model.Manifest) *modsync.PublishResult {
	t.Helper()
	res, err := env.Service.Publish(context.Background(), modsync.PublishRequest{
		ModpackID:       modpackID,
		Manifest:        m,
		ExpectedVersion: expected,
	})
	if err != nil {
		t.Fatalf("Publish(v%d) error = %v", expected, err)
	}
	return res
}

func upload(t *testing.T, env *testutil.Env, modpackID, path, content string) *modsync.UploadResult {
	t.Helper()
	res, err := env.Service.Upload(context.Background(), modsync.UploadRequest{
		ModpackID:    modpackID,
		Path:         path,
		DeclaredHash: h(content),
		Content:      strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", path, err)
	}
	return res
}

// publishAndUpload publishes files (path -> content) and uploads every
// pending entry.
func publishAndUpload(t *testing.T, env *testutil.Env, modpackID string, expected int64, files map[string]string) *modsync.PublishResult {
	t.Helper()
	m := make(model.Manifest, len(files))
	for path, content := range files {
		m[path] = h(content)
	}
	res := publish(t, env, modpackID, expected, m)
	for _, p := range res.PendingUploads {
		upload(t, env, modpackID, p.Path, files[p.Path])
	}
	return res
}

func snapshot(t *testing.T, env *testutil.Env, modpackID string) *modsync.Snapshot {
	t.Helper()
	snap, err := env.DB.Snapshot(context.Background(), modpackID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

func manifestEqual(a, b model.Manifest) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// bumpTo advances an existing modpack to version target with empty publishes.
func bumpTo(t *testing.T, env *testutil.Env, modpackID string, from, target int64) {
	t.Helper()
	snap := snapshot(t, env, modpackID)
	for v := from; v < target; v++ {
		_, err := env.Service.Publish(context.Background(), modsync.PublishRequest{
			ModpackID:       modpackID,
			Manifest:        snap.Manifest(),
			ExpectedVersion: v,
			AllowEmpty:      true,
		})
		if err != nil {
			t.Fatalf("empty Publish(v%d) error = %v", v, err)
		}
	}
}
