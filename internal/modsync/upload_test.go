package modsync_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"modsync/internal/model"
	"modsync/internal/modsync"
	"modsync/internal/testutil"
)

func TestSyncService_Upload(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testutil.Env, *model.Modpack) {
		env := testutil.NewTestService(t, modsync.Settings{})
		mp := createModpack(t, env, "uploads")
		publish(t, env, mp.ID, 0, model.Manifest{"mods/a.jar": h("jar a")})
		return env, mp
	}

	t.Run("matching content marks entry current", func(t *testing.T) {
		env, mp := setup(t)

		res := upload(t, env, mp.ID, "mods/a.jar", "jar a")
		if !res.Transitioned || res.State != model.StateCurrent {
			t.Errorf("Upload() = %+v, want transitioned to current", res)
		}

		e := snapshot(t, env, mp.ID).Entries["mods/a.jar"]
		if e.State != model.StateCurrent || !e.Uploaded {
			t.Errorf("entry = %s uploaded=%v", e.State, e.Uploaded)
		}
		if e.SyncVersion != 1 {
			t.Errorf("SyncVersion = %d, want 1 (uploads do not bump versions)", e.SyncVersion)
		}
		ok, _ := env.Blobs.HasContent(ctx, h("jar a"))
		if !ok {
			t.Error("blob not stored")
		}
		if v := snapshot(t, env, mp.ID).Version; v != 1 {
			t.Errorf("modpack version = %d, want 1", v)
		}
	})

	t.Run("mismatched content is rejected every time", func(t *testing.T) {
		env, mp := setup(t)

		for i := 0; i < 3; i++ {
			_, err := env.Service.Upload(ctx, modsync.UploadRequest{
				ModpackID:    mp.ID,
				Path:         "mods/a.jar",
				DeclaredHash: h("jar a"),
				Content:      strings.NewReader("tampered"),
			})
			var mismatch *modsync.IntegrityMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("attempt %d: Upload() error = %v, want IntegrityMismatchError", i, err)
			}
			if mismatch.Declared != h("jar a") || mismatch.Computed != h("tampered") {
				t.Errorf("mismatch = %+v", mismatch)
			}
		}

		e := snapshot(t, env, mp.ID).Entries["mods/a.jar"]
		if e.State != model.StatePendingUpload || e.Uploaded {
			t.Errorf("entry = %s uploaded=%v, want still pending", e.State, e.Uploaded)
		}
		if env.Blobs.Len() != 0 {
			t.Errorf("blob store has %d blobs, want 0", env.Blobs.Len())
		}
		if size, _ := env.Staging.Size(); size != 0 {
			t.Errorf("staging size = %d, want 0", size)
		}

		// The correct bytes still get through afterwards.
		if res := upload(t, env, mp.ID, "mods/a.jar", "jar a"); !res.Transitioned {
			t.Error("valid upload after rejections did not transition")
		}
	})

	t.Run("repeat upload of current entry is a no-op", func(t *testing.T) {
		env, mp := setup(t)
		upload(t, env, mp.ID, "mods/a.jar", "jar a")

		res := upload(t, env, mp.ID, "mods/a.jar", "jar a")
		if res.Transitioned || res.State != model.StateCurrent {
			t.Errorf("Upload() = %+v, want current without transition", res)
		}
	})

	t.Run("wrong bytes for current entry are stale", func(t *testing.T) {
		env, mp := setup(t)
		upload(t, env, mp.ID, "mods/a.jar", "jar a")

		_, err := env.Service.Upload(ctx, modsync.UploadRequest{
			ModpackID:    mp.ID,
			Path:         "mods/a.jar",
			DeclaredHash: h("jar a"),
			Content:      strings.NewReader("other"),
		})
		var stale *modsync.StaleUploadError
		if !errors.As(err, &stale) || stale.State != model.StateCurrent {
			t.Errorf("Upload() error = %v, want StaleUploadError(current)", err)
		}
	})

	t.Run("upload for replaced entry", func(t *testing.T) {
		env, mp := setup(t)
		publish(t, env, mp.ID, 1, model.Manifest{"mods/a.jar": h("jar a v2")})

		res, err := env.Service.Upload(ctx, modsync.UploadRequest{
			ModpackID:    mp.ID,
			Path:         "mods/a.jar",
			DeclaredHash: h("jar a"),
			Content:      strings.NewReader("jar a"),
		})
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if res.Transitioned || res.State != model.StateRemoved {
			t.Errorf("Upload() = %+v, want removed without transition", res)
		}

		_, err = env.Service.Upload(ctx, modsync.UploadRequest{
			ModpackID:    mp.ID,
			Path:         "mods/a.jar",
			DeclaredHash: h("jar a"),
			Content:      strings.NewReader("garbage"),
		})
		var stale *modsync.StaleUploadError
		if !errors.As(err, &stale) || stale.State != model.StateRemoved {
			t.Errorf("Upload() error = %v, want StaleUploadError(removed)", err)
		}

		e := snapshot(t, env, mp.ID).Entries["mods/a.jar"]
		if e.Hash != h("jar a v2") || e.State != model.StatePendingUpload {
			t.Errorf("live entry = %s %s, want pending v2", e.Hash, e.State)
		}
	})

	t.Run("undeclared hash is stale", func(t *testing.T) {
		env, mp := setup(t)

		_, err := env.Service.Upload(ctx, modsync.UploadRequest{
			ModpackID:    mp.ID,
			Path:         "mods/a.jar",
			DeclaredHash: h("never declared"),
			Content:      strings.NewReader("never declared"),
		})
		var stale *modsync.StaleUploadError
		if !errors.As(err, &stale) || stale.State != "" {
			t.Errorf("Upload() error = %v, want StaleUploadError without state", err)
		}
		if !errors.Is(err, modsync.ErrStaleUpload) {
			t.Error("error does not match ErrStaleUpload")
		}
	})

	t.Run("unknown modpack or path", func(t *testing.T) {
		env, mp := setup(t)

		for _, req := range []modsync.UploadRequest{
			{ModpackID: "missing", Path: "mods/a.jar", DeclaredHash: h("jar a")},
			{ModpackID: mp.ID, Path: "mods/missing.jar", DeclaredHash: h("jar a")},
		} {
			req.Content = strings.NewReader("jar a")
			if _, err := env.Service.Upload(ctx, req); !errors.Is(err, modsync.ErrNotFound) {
				t.Errorf("Upload(%s/%s) error = %v, want ErrNotFound", req.ModpackID, req.Path, err)
			}
		}
	})

	t.Run("invalid request", func(t *testing.T) {
		env, mp := setup(t)

		for _, req := range []modsync.UploadRequest{
			{ModpackID: mp.ID, Path: "../a.jar", DeclaredHash: h("jar a")},
			{ModpackID: mp.ID, Path: "mods/a.jar", DeclaredHash: "abc"},
		} {
			req.Content = strings.NewReader("jar a")
			if _, err := env.Service.Upload(ctx, req); !errors.Is(err, modsync.ErrInvalidManifest) {
				t.Errorf("Upload(%s, %s) error = %v, want ErrInvalidManifest", req.Path, req.DeclaredHash, err)
			}
		}
	})

	t.Run("racing uploads transition once", func(t *testing.T) {
		env, mp := setup(t)

		const n = 8
		var wg sync.WaitGroup
		results := make([]*modsync.UploadResult, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = env.Service.Upload(ctx, modsync.UploadRequest{
					ModpackID:    mp.ID,
					Path:         "mods/a.jar",
					DeclaredHash: h("jar a"),
					Content:      bytes.NewReader([]byte("jar a")),
				})
			}()
		}
		wg.Wait()

		transitions := 0
		for i := 0; i < n; i++ {
			if errs[i] != nil {
				t.Fatalf("upload %d error = %v", i, errs[i])
			}
			if results[i].Transitioned {
				transitions++
			}
			if results[i].State != model.StateCurrent {
				t.Errorf("upload %d state = %s, want current", i, results[i].State)
			}
		}
		if transitions != 1 {
			t.Errorf("transitions = %d, want 1", transitions)
		}
	})

	t.Run("staging limit", func(t *testing.T) {
		env, mp := setup(t)
		svc := modsync.NewSyncService(env.DB, testutil.NewTestStagingAreaWithSize(3), env.Blobs, modsync.NewNopLogger(), env.Clock, modsync.UUIDGenerator{}, modsync.Settings{})

		_, err := svc.Upload(ctx, modsync.UploadRequest{
			ModpackID:    mp.ID,
			Path:         "mods/a.jar",
			DeclaredHash: h("jar a"),
			Content:      strings.NewReader("jar a"),
		})
		if err == nil {
			t.Fatal("Upload() expected staging error")
		}
		if e := snapshot(t, env, mp.ID).Entries["mods/a.jar"]; e.State != model.StatePendingUpload {
			t.Errorf("entry state = %s, want pending_upload", e.State)
		}
	})
}

func TestSyncService_Upload_Encrypted(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestService(t, modsync.Settings{})
	blobs, ciphertext := testutil.NewEncryptedBlobStore(t)
	svc := modsync.NewSyncService(env.DB, env.Staging, blobs, modsync.NewNopLogger(), env.Clock, modsync.UUIDGenerator{}, modsync.Settings{})

	mp, err := svc.CreateModpack(ctx, modsync.ModpackInput{Name: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Publish(ctx, modsync.PublishRequest{ModpackID: mp.ID, Manifest: model.Manifest{"a.jar": h("plain")}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Upload(ctx, modsync.UploadRequest{
		ModpackID:    mp.ID,
		Path:         "a.jar",
		DeclaredHash: h("plain"),
		Content:      strings.NewReader("plain"),
	}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	var stored bytes.Buffer
	if err := ciphertext.GetContent(ctx, h("plain"), &stored); err != nil {
		t.Fatalf("reading ciphertext: %v", err)
	}
	if stored.String() == "plain" {
		t.Error("blob stored in plaintext")
	}

	var got bytes.Buffer
	if err := svc.OpenContent(ctx, h("plain"), &got); err != nil {
		t.Fatalf("OpenContent() error = %v", err)
	}
	if got.String() != "plain" {
		t.Errorf("OpenContent() = %q, want %q", got.String(), "plain")
	}
}

// supersedingDB runs beforeMark once, just before the first MarkUploaded.
type supersedingDB struct {
	modsync.Database
	beforeMark func()
}

func (d *supersedingDB) MarkUploaded(ctx context.Context, fileID string, at time.Time) (bool, error) {
	if d.beforeMark != nil {
		d.beforeMark()
		d.beforeMark = nil
	}
	return d.Database.MarkUploaded(ctx, fileID, at)
}

func TestSyncService_Upload_SupersededMidUpload(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewTestService(t, modsync.Settings{})
	mp := createModpack(t, env, "superseded")
	publish(t, env, mp.ID, 0, model.Manifest{"a.jar": h("one")})

	db := &supersedingDB{
		Database: env.DB,
		beforeMark: func() {
			publish(t, env, mp.ID, 1, model.Manifest{"a.jar": h("two")})
		},
	}
	svc := modsync.NewSyncService(db, env.Staging, env.Blobs, modsync.NewNopLogger(), env.Clock, modsync.UUIDGenerator{}, modsync.Settings{})

	req := func() modsync.UploadRequest {
		return modsync.UploadRequest{
			ModpackID:    mp.ID,
			Path:         "a.jar",
			DeclaredHash: h("one"),
			Content:      strings.NewReader("one"),
		}
	}

	raced, err := svc.Upload(ctx, req())
	if err != nil {
		t.Fatalf("Upload() superseded mid-upload error = %v, want settled no-op", err)
	}
	if raced.Transitioned || raced.State != model.StateRemoved {
		t.Errorf("Upload() = %+v, want untransitioned removed entry", raced)
	}

	// The same upload after the publish has landed answers the same way.
	after, err := env.Service.Upload(ctx, req())
	if err != nil {
		t.Fatalf("Upload() after supersede error = %v", err)
	}
	if after.Transitioned != raced.Transitioned || after.State != raced.State || after.FileID != raced.FileID {
		t.Errorf("Upload() after supersede = %+v, mid-upload = %+v", after, raced)
	}

	if e := snapshot(t, env, mp.ID).Entries["a.jar"]; e.Hash != h("two") || e.State != model.StatePendingUpload {
		t.Errorf("live entry = %s %s, want pending %s", e.Hash[:8], e.State, h("two")[:8])
	}
}
