package modsync

import "io"

// Encryptor protects blob content at rest.
// Encryption only needs the public key; decryption needs the private key,
// which is itself passphrase protected and unlocked once per server process.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	// Called by `modsync keys init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context able to decrypt
	// blobs for the lifetime of the process.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
