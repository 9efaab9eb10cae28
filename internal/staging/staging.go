package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"modsync/internal/modsync"
)

// ErrFull is returned when a spool would push the staging area past its
// maximum size.
var ErrFull = errors.New("staging area full")

// stagingArea implements modsync.StagingArea using a pluggable stagingStore
// for the storage mechanics. All shared algorithm logic lives here.
type stagingArea struct {
	store   stagingStore
	maxSize int64

	mu       sync.Mutex
	inflight int64 // bytes reserved by spools still being written
}

// copyBufferSize bounds how often a spool measures the store while reserving.
const copyBufferSize = 256 << 10

var _ modsync.StagingArea = (*stagingArea)(nil)

// Stage spools r to EOF while hashing it.
func (s *stagingArea) Stage(r io.Reader) (*modsync.StagedContent, error) {
	id := uuid.New().String()

	w, err := s.store.Create(id)
	if err != nil {
		return nil, fmt.Errorf("creating spool: %w", err)
	}

	hasher := sha256.New()
	rw := &reservingWriter{area: s, w: w}
	// One byte past the limit is enough to know the body is too large.
	size, copyErr := io.CopyBuffer(io.MultiWriter(rw, hasher), io.LimitReader(r, s.maxSize+1), make([]byte, copyBufferSize))

	s.mu.Lock()
	closeErr := w.Close()
	s.inflight -= rw.reserved
	s.mu.Unlock()

	if copyErr != nil {
		s.store.Remove(id)
		return nil, fmt.Errorf("spooling content: %w", copyErr)
	}
	if closeErr != nil {
		s.store.Remove(id)
		return nil, fmt.Errorf("closing spool: %w", closeErr)
	}
	if size > s.maxSize {
		s.store.Remove(id)
		return nil, fmt.Errorf("%w: content exceeds max size of %d bytes", ErrFull, s.maxSize)
	}

	return &modsync.StagedContent{
		ID:       id,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		Size:     size,
	}, nil
}

// reserve claims n bytes for an in-flight spool. Completed spools and every
// other reservation count against maxSize.
func (s *stagingArea) reserve(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.store.ContentSize()
	if err != nil {
		return fmt.Errorf("getting current size: %w", err)
	}
	if total+s.inflight+n > s.maxSize {
		return fmt.Errorf("%w: would exceed max size of %d bytes", ErrFull, s.maxSize)
	}
	s.inflight += n
	return nil
}

// reservingWriter reserves space before passing writes through to a spool.
type reservingWriter struct {
	area     *stagingArea
	w        io.Writer
	reserved int64
}

func (rw *reservingWriter) Write(p []byte) (int, error) {
	if err := rw.area.reserve(int64(len(p))); err != nil {
		return 0, err
	}
	rw.reserved += int64(len(p))
	return rw.w.Write(p)
}

// Open returns a reader over staged content.
func (s *stagingArea) Open(sc *modsync.StagedContent) (io.ReadCloser, error) {
	rc, err := s.store.Open(sc.ID)
	if err != nil {
		return nil, fmt.Errorf("opening spool %s: %w", sc.ID, err)
	}
	return rc, nil
}

// Release discards staged content.
func (s *stagingArea) Release(sc *modsync.StagedContent) error {
	if sc == nil {
		return nil
	}
	if err := s.store.Remove(sc.ID); err != nil {
		return fmt.Errorf("removing spool %s: %w", sc.ID, err)
	}
	return nil
}

// Size returns the total size of staged content in bytes.
func (s *stagingArea) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ContentSize()
}
