package staging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"modsync/internal/config"
	"modsync/internal/modsync"
)

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// runStagingTests exercises behavior shared by every staging store.
func runStagingTests(t *testing.T, newArea func(t *testing.T, maxSize int64) modsync.StagingArea) {
	t.Run("stage computes checksum and size", func(t *testing.T) {
		sa := newArea(t, 1024)
		content := []byte("hello")

		sc, err := sa.Stage(bytes.NewReader(content))
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		if sc.Checksum != sum(content) {
			t.Errorf("Checksum = %s, want %s", sc.Checksum, sum(content))
		}
		if sc.Size != 5 {
			t.Errorf("Size = %d, want 5", sc.Size)
		}
		if sc.ID == "" {
			t.Error("ID is empty")
		}
	})

	t.Run("open returns staged bytes", func(t *testing.T) {
		sa := newArea(t, 1024)
		content := []byte("some mod jar")

		sc, err := sa.Stage(bytes.NewReader(content))
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		rc, err := sa.Open(sc)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer rc.Close()

		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("Open() content = %q, want %q", got, content)
		}
	})

	t.Run("size tracks staged content", func(t *testing.T) {
		sa := newArea(t, 1024)

		a, _ := sa.Stage(strings.NewReader("aaaa"))
		if _, err := sa.Stage(strings.NewReader("bb")); err != nil {
			t.Fatalf("Stage() error = %v", err)
		}

		size, err := sa.Size()
		if err != nil {
			t.Fatalf("Size() error = %v", err)
		}
		if size != 6 {
			t.Errorf("Size() = %d, want 6", size)
		}

		if err := sa.Release(a); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		size, _ = sa.Size()
		if size != 2 {
			t.Errorf("Size() after release = %d, want 2", size)
		}
	})

	t.Run("identical content gets separate spools", func(t *testing.T) {
		sa := newArea(t, 1024)

		a, _ := sa.Stage(strings.NewReader("same"))
		b, _ := sa.Stage(strings.NewReader("same"))
		if a.ID == b.ID {
			t.Fatal("expected distinct staging ids")
		}
		if a.Checksum != b.Checksum {
			t.Error("expected equal checksums")
		}

		sa.Release(a)
		rc, err := sa.Open(b)
		if err != nil {
			t.Fatalf("Open() after releasing twin error = %v", err)
		}
		rc.Close()
	})

	t.Run("release twice is safe", func(t *testing.T) {
		sa := newArea(t, 1024)
		sc, _ := sa.Stage(strings.NewReader("x"))

		if err := sa.Release(sc); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if err := sa.Release(sc); err != nil {
			t.Fatalf("second Release() error = %v", err)
		}
		if _, err := sa.Open(sc); !errors.Is(err, modsync.ErrNotFound) {
			t.Errorf("Open() after release error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		sa := newArea(t, 10)

		_, err := sa.Stage(strings.NewReader("this is way too big"))
		if !errors.Is(err, ErrFull) {
			t.Fatalf("Stage() error = %v, want ErrFull", err)
		}
		size, _ := sa.Size()
		if size != 0 {
			t.Errorf("Size() after rejection = %d, want 0", size)
		}
	})

	t.Run("rejects content that would overflow the area", func(t *testing.T) {
		sa := newArea(t, 10)

		if _, err := sa.Stage(strings.NewReader("123456")); err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		_, err := sa.Stage(strings.NewReader("789012"))
		if !errors.Is(err, ErrFull) {
			t.Fatalf("Stage() error = %v, want ErrFull", err)
		}
		size, _ := sa.Size()
		if size != 6 {
			t.Errorf("Size() = %d, want 6", size)
		}
	})

	t.Run("counts spools still being written", func(t *testing.T) {
		sa := newArea(t, 10)
		slow := &stallingReader{first: []byte("123456"), stalled: make(chan struct{}), resume: make(chan struct{})}

		done := make(chan error, 1)
		go func() {
			_, err := sa.Stage(slow)
			done <- err
		}()
		<-slow.stalled

		_, err := sa.Stage(strings.NewReader("789012"))
		if !errors.Is(err, ErrFull) {
			t.Errorf("Stage() during in-flight spool error = %v, want ErrFull", err)
		}

		close(slow.resume)
		if err := <-done; err != nil {
			t.Fatalf("in-flight Stage() error = %v", err)
		}
		if _, err := sa.Stage(strings.NewReader("7890")); err != nil {
			t.Errorf("Stage() into remaining space error = %v", err)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		sa := newArea(t, 10)

		sc, err := sa.Stage(strings.NewReader(""))
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		if sc.Size != 0 || sc.Checksum != sum(nil) {
			t.Errorf("Stage() = %+v", sc)
		}
	})

	t.Run("concurrent stages", func(t *testing.T) {
		sa := newArea(t, 1<<20)

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				content := bytes.Repeat([]byte{byte(i)}, 100)
				sc, err := sa.Stage(bytes.NewReader(content))
				if err != nil {
					errs <- err
					return
				}
				if sc.Checksum != sum(content) {
					errs <- errors.New("checksum mismatch")
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		size, _ := sa.Size()
		if size != 1600 {
			t.Errorf("Size() = %d, want 1600", size)
		}
	})
}

func TestMemoryStagingArea(t *testing.T) {
	runStagingTests(t, func(t *testing.T, maxSize int64) modsync.StagingArea {
		return NewMemoryStagingArea(maxSize)
	})
}

func TestFileSystemStagingArea(t *testing.T) {
	runStagingTests(t, func(t *testing.T, maxSize int64) modsync.StagingArea {
		sa, err := NewFileSystemStagingArea(t.TempDir(), maxSize)
		if err != nil {
			t.Fatalf("NewFileSystemStagingArea() error = %v", err)
		}
		return sa
	})

	t.Run("clears leftovers on startup", func(t *testing.T) {
		dir := t.TempDir()
		spool := filepath.Join(dir, "spool")
		if err := os.MkdirAll(spool, 0700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(spool, "stale"), []byte("old"), 0600); err != nil {
			t.Fatal(err)
		}

		sa, err := NewFileSystemStagingArea(dir, 1024)
		if err != nil {
			t.Fatalf("NewFileSystemStagingArea() error = %v", err)
		}
		size, _ := sa.Size()
		if size != 0 {
			t.Errorf("Size() = %d, want 0", size)
		}
	})

	t.Run("rejected content leaves no files", func(t *testing.T) {
		dir := t.TempDir()
		sa, _ := NewFileSystemStagingArea(dir, 4)

		if _, err := sa.Stage(strings.NewReader("too large")); err == nil {
			t.Fatal("expected error")
		}
		entries, _ := os.ReadDir(filepath.Join(dir, "spool"))
		if len(entries) != 0 {
			t.Errorf("spool dir has %d entries, want 0", len(entries))
		}
	})
}

func TestNewStagingAreaFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StagingConfig
		wantErr bool
	}{
		{"memory", config.StagingConfig{Type: "memory"}, false},
		{"filesystem", config.StagingConfig{Type: "filesystem", StagingDir: t.TempDir(), MaxSize: 10}, false},
		{"filesystem without dir", config.StagingConfig{Type: "filesystem"}, true},
		{"unknown", config.StagingConfig{Type: "tape"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa, err := NewStagingAreaFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStagingAreaFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && sa == nil {
				t.Error("NewStagingAreaFromConfig() returned nil")
			}
		})
	}
}

// stallingReader returns first, then blocks until resume is closed.
type stallingReader struct {
	first   []byte
	sent    bool
	stalled chan struct{}
	resume  chan struct{}
}

func (r *stallingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, r.first), nil
	}
	close(r.stalled)
	<-r.resume
	return 0, io.EOF
}
