// Package cryptox implements the credential hashing schemes used by the
// identity service. A stored credential is a hash plus the pair of salts it
// was derived from; the directory persists all three and nothing else.
package cryptox

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// SaltLength is the size in bytes of both the public and private salt.
const SaltLength = 64

// Credential is the storable form of a password. The hash is always the
// output of a two-stage pipeline over the paired salts; a credential with
// any field missing is treated as absent and verification fails closed.
type Credential struct {
	Hash        []byte
	PublicSalt  []byte
	PrivateSalt []byte
}

// Complete reports whether every field required for verification is present.
func (c Credential) Complete() bool {
	return len(c.Hash) > 0 && len(c.PublicSalt) > 0 && len(c.PrivateSalt) > 0
}

// Hasher generates and verifies credentials. The sign-in engine takes a
// Hasher rather than naming an algorithm, so the orchestration never depends
// on the hashing scheme.
type Hasher interface {
	// Generate draws two fresh salts and hashes plaintext through the
	// scheme's pipeline. Two calls on the same plaintext never produce
	// equal credentials.
	Generate(plaintext string) (Credential, error)

	// Verify recomputes the pipeline with the stored salts and compares
	// in constant time. Returns false for incomplete credentials.
	Verify(plaintext string, cred Credential) bool
}

// Supported hashing schemes.
const (
	SchemeSHA1SHA512 = "sha1-sha512" // legacy directory rows
	SchemeArgon2id   = "argon2id"
)

var ErrUnknownScheme = errors.New("cryptox: unknown password scheme")

// NewHasher returns the Hasher for a configured scheme name.
func NewHasher(scheme string) (Hasher, error) {
	switch scheme {
	case SchemeSHA1SHA512, "":
		return TwoStageHasher{}, nil
	case SchemeArgon2id:
		return Argon2idHasher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

func newSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptox: draw salt: %w", err)
	}
	return salt, nil
}
