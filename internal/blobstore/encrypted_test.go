package blobstore

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"modsync/internal/config"
	"modsync/internal/encryption"
)

func TestEncryptedStore(t *testing.T) {
	enc := encryption.NewTestEncryptor()
	dc, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	runBlobStoreTests(t, NewEncryptedStore(NewMemoryStore(), enc, dc, t.TempDir()))
}

func TestEncryptedStore_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	enc := encryption.NewTestEncryptor()
	dc, _ := enc.Unlock("")
	store := NewEncryptedStore(inner, enc, dc, t.TempDir())

	data := "plaintext mod bytes"
	sum := checksumOf(data)
	if err := store.PutContent(ctx, sum, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	var raw bytes.Buffer
	if err := inner.GetContent(ctx, sum, &raw); err != nil {
		t.Fatalf("inner GetContent() error = %v", err)
	}
	if raw.String() == data {
		t.Error("inner store holds plaintext")
	}
	if !strings.HasSuffix(raw.String(), data) {
		t.Error("test ciphertext should carry the plaintext after its header")
	}
}

func TestEncryptedStore_AgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	enc := encryption.NewAgeEncryptor(encryptionConfig(dir))
	if err := enc.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	dc, err := enc.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	store := NewEncryptedStore(NewMemoryStore(), enc, dc, dir)

	data := strings.Repeat("mod", 50000)
	sum := checksumOf(data)
	if err := store.PutContent(ctx, sum, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	var out bytes.Buffer
	if err := store.GetContent(ctx, sum, &out); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if out.String() != data {
		t.Errorf("round trip returned %d bytes, want %d", out.Len(), len(data))
	}
	if err := store.ValidateSetup(ctx); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestEncryptedStore_LockedReadFails(t *testing.T) {
	ctx := context.Background()
	store := NewEncryptedStore(NewMemoryStore(), encryption.NewTestEncryptor(), nil, t.TempDir())

	data := "x"
	sum := checksumOf(data)
	if err := store.PutContent(ctx, sum, strings.NewReader(data), 1); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	var out bytes.Buffer
	if err := store.GetContent(ctx, sum, &out); err == nil {
		t.Error("GetContent() expected error without a decryption key")
	}
}

func encryptionConfig(dir string) config.EncryptionConfig {
	return config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "modsync.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "modsync.key"),
	}
}
