package modsync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"modsync/internal/model"
)

// HashLength is the length of a hex encoded SHA-256 digest.
const HashLength = sha256.Size * 2

// HashContent returns the lowercase hex SHA-256 of everything read from r.
func HashContent(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ValidateHash checks that hash is a lowercase hex SHA-256 digest.
func ValidateHash(hash string) error {
	if len(hash) != HashLength {
		return fmt.Errorf("%w: hash %q must be %d hex characters", ErrInvalidManifest, hash, HashLength)
	}
	for _, c := range hash {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return fmt.Errorf("%w: hash %q is not lowercase hex", ErrInvalidManifest, hash)
		}
	}
	return nil
}

// ValidatePath checks that path is a clean, relative, forward-slash path that
// stays inside the modpack root.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidManifest)
	}
	if strings.ContainsRune(path, '\\') {
		return fmt.Errorf("%w: path %q contains a backslash", ErrInvalidManifest, path)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: path %q contains a NUL byte", ErrInvalidManifest, path)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path %q is absolute", ErrInvalidManifest, path)
	}
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".", "..":
			return fmt.Errorf("%w: path %q has segment %q", ErrInvalidManifest, path, seg)
		}
	}
	return nil
}

// ValidateManifest checks every path and hash in m.
func ValidateManifest(m model.Manifest) error {
	for path, hash := range m {
		if err := ValidatePath(path); err != nil {
			return err
		}
		if err := ValidateHash(hash); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
