package staging

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"modsync/internal/modsync"
)

// memoryStore keeps spools in a map. Useful for tests and small servers.
type memoryStore struct {
	mu     sync.Mutex
	spools map[string][]byte
}

// NewMemoryStagingArea creates an in-memory staging area.
// maxSize is the maximum total size in bytes; must be positive.
func NewMemoryStagingArea(maxSize int64) modsync.StagingArea {
	return &stagingArea{
		store:   &memoryStore{spools: make(map[string][]byte)},
		maxSize: maxSize,
	}
}

func (m *memoryStore) Create(id string) (io.WriteCloser, error) {
	return &memorySpool{store: m, id: id}, nil
}

func (m *memoryStore) Open(id string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.spools[id]
	if !ok {
		return nil, fmt.Errorf("spool %s: %w", id, modsync.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.spools, id)
	return nil
}

func (m *memoryStore) ContentSize() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, data := range m.spools {
		total += int64(len(data))
	}
	return total, nil
}

// memorySpool buffers writes and publishes them to the store on Close.
type memorySpool struct {
	store *memoryStore
	id    string
	buf   bytes.Buffer
}

func (w *memorySpool) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memorySpool) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.spools[w.id] = w.buf.Bytes()
	return nil
}
