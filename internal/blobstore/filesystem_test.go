package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore(t *testing.T) {
	store, err := NewFileSystemStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	runBlobStoreTests(t, store)
}

func TestFileSystemStore_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	data := "hello world"
	sum := checksumOf(data)
	if err := store.PutContent(ctx, sum, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	want := filepath.Join(root, "content", sum[:2], sum)
	if _, err := os.Stat(want); err != nil {
		t.Errorf("blob not stored at %s: %v", want, err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "content", sum[:2]))
	if err != nil {
		t.Fatalf("failed to read content dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestFileSystemStore_RejectsBadChecksum(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	for _, sum := range []string{"../../etc/passwd", "abc123", strings.Repeat("G", 64)} {
		if err := store.PutContent(ctx, sum, strings.NewReader("x"), 1); err == nil {
			t.Errorf("PutContent(%q) expected error", sum)
		}
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("valid store", func(t *testing.T) {
		store, err := NewFileSystemStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if err := store.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		store := &FileSystemStore{root: "/nonexistent/path", contentDir: "/nonexistent/path/content"}
		if err := store.ValidateSetup(ctx); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}
