package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"modsync/internal/modsync"
)

func checksumOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// runBlobStoreTests exercises the behavior every BlobStore shares.
func runBlobStoreTests(t *testing.T, store modsync.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		data := "hello world"
		sum := checksumOf(data)

		if err := store.PutContent(ctx, sum, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}

		var buf bytes.Buffer
		if err := store.GetContent(ctx, sum, &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("content = %q, want %q", buf.String(), data)
		}

		ok, err := store.HasContent(ctx, sum)
		if err != nil {
			t.Fatalf("HasContent() error = %v", err)
		}
		if !ok {
			t.Error("HasContent() = false after put")
		}
	})

	t.Run("put is idempotent", func(t *testing.T) {
		data := "same bytes"
		sum := checksumOf(data)
		for i := 0; i < 2; i++ {
			if err := store.PutContent(ctx, sum, strings.NewReader(data), int64(len(data))); err != nil {
				t.Fatalf("PutContent() #%d error = %v", i+1, err)
			}
		}

		var buf bytes.Buffer
		if err := store.GetContent(ctx, sum, &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("content = %q, want %q", buf.String(), data)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		sum := checksumOf("")
		if err := store.PutContent(ctx, sum, strings.NewReader(""), 0); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}
		var buf bytes.Buffer
		if err := store.GetContent(ctx, sum, &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("content length = %d, want 0", buf.Len())
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		data := "short"
		if err := store.PutContent(ctx, checksumOf(data+"x"), strings.NewReader(data), 100); err == nil {
			t.Error("PutContent() expected error for size mismatch")
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		sum := checksumOf("never stored")

		var buf bytes.Buffer
		err := store.GetContent(ctx, sum, &buf)
		if !errors.Is(err, modsync.ErrNotFound) {
			t.Errorf("GetContent() error = %v, want ErrNotFound", err)
		}

		ok, err := store.HasContent(ctx, sum)
		if err != nil {
			t.Fatalf("HasContent() error = %v", err)
		}
		if ok {
			t.Error("HasContent() = true for missing blob")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runBlobStoreTests(t, store)

	if err := store.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
	if store.Len() == 0 {
		t.Error("Len() = 0 after puts")
	}
}
