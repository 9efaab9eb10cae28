package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"modsync/internal/modsync"
)

// EncryptedStore encrypts content before handing it to another store.
// Blobs stay keyed by the plaintext checksum, so the version store never
// needs to know encryption is on.
type EncryptedStore struct {
	inner     modsync.BlobStore
	encryptor modsync.Encryptor
	decrypter modsync.DecryptionContext
	tmpDir    string
}

// NewEncryptedStore wraps inner. decrypter may be nil for a write-only
// server; reads then fail. Ciphertext is spooled to tmpDir to learn its
// size before upload.
func NewEncryptedStore(inner modsync.BlobStore, encryptor modsync.Encryptor, decrypter modsync.DecryptionContext, tmpDir string) *EncryptedStore {
	return &EncryptedStore{
		inner:     inner,
		encryptor: encryptor,
		decrypter: decrypter,
		tmpDir:    tmpDir,
	}
}

func (s *EncryptedStore) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(s.tmpDir, ".enc-*")
	if err != nil {
		return fmt.Errorf("creating encryption spool: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	counted := &countingReader{r: r}
	if err := s.encryptor.Encrypt(counted, tmp); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	if counted.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}

	encSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sizing encrypted blob: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding encrypted blob: %w", err)
	}

	return s.inner.PutContent(ctx, checksum, tmp, encSize)
}

func (s *EncryptedStore) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	if s.decrypter == nil {
		return fmt.Errorf("blob store is locked: no decryption key loaded")
	}

	pr, pw := io.Pipe()
	fetchErr := make(chan error, 1)
	go func() {
		err := s.inner.GetContent(ctx, checksum, pw)
		pw.CloseWithError(err)
		fetchErr <- err
	}()

	decErr := s.decrypter.Decrypt(pr, w)
	if decErr == nil {
		io.Copy(io.Discard, pr)
	}
	pr.Close()

	fErr := <-fetchErr
	if errors.Is(fErr, modsync.ErrNotFound) {
		return fErr
	}
	if decErr != nil {
		return fmt.Errorf("decrypting blob %s: %w", checksum, decErr)
	}
	return fErr
}

func (s *EncryptedStore) HasContent(ctx context.Context, checksum string) (bool, error) {
	return s.inner.HasContent(ctx, checksum)
}

// ValidateSetup checks the inner store and that keys are present.
func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !s.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys are not configured (run `modsync keys init`)")
	}
	return s.inner.ValidateSetup(ctx)
}

var _ modsync.BlobStore = (*EncryptedStore)(nil)
