package testutil

import (
	"testing"

	"modsync/internal/blobstore"
	"modsync/internal/encryption"
	"modsync/internal/modsync"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() modsync.Encryptor {
	return encryption.NewTestEncryptor()
}

// NewEncryptedBlobStore wraps a memory store with the test encryptor.
// The returned MemoryStore holds the ciphertext.
func NewEncryptedBlobStore(t *testing.T) (*blobstore.EncryptedStore, *blobstore.MemoryStore) {
	t.Helper()

	inner := blobstore.NewMemoryStore()
	enc := encryption.NewTestEncryptor()
	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("unlocking test encryptor: %v", err)
	}
	return blobstore.NewEncryptedStore(inner, enc, dec, t.TempDir()), inner
}
