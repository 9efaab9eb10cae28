package modsync

import "io"

// StagingArea spools incoming upload bodies while their checksum is computed.
// Nothing in staging is durable; content only becomes durable once it has been
// verified and copied into the blob store.
type StagingArea interface {
	// Stage reads r to EOF, computing its SHA-256 checksum and size.
	// Returns an error if the staging area would exceed its maximum size.
	Stage(r io.Reader) (*StagedContent, error)

	// Open returns a reader over previously staged content.
	Open(sc *StagedContent) (io.ReadCloser, error)

	// Release discards staged content. Releasing twice is safe.
	Release(sc *StagedContent) error

	// Size returns the total size of staged content in bytes.
	Size() (int64, error)
}

// StagedContent describes one spooled upload body.
type StagedContent struct {
	ID       string
	Checksum string
	Size     int64
}
