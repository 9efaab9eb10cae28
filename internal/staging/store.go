package staging

import "io"

// stagingStore abstracts where spooled bytes live. Each spool is keyed by a
// staging ID that is unique per Stage call, so stores only need to guard
// their own bookkeeping.
type stagingStore interface {
	// Create returns a writer for a new spool. The spool counts toward
	// ContentSize once the writer is closed.
	Create(id string) (io.WriteCloser, error)

	// Open returns a reader over a closed spool.
	Open(id string) (io.ReadCloser, error)

	// Remove deletes a spool. Removing an unknown id is not an error.
	Remove(id string) error

	// ContentSize returns total bytes of all closed spools.
	ContentSize() (int64, error)
}
