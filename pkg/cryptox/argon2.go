package cryptox

import (
	"crypto/sha512"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

const (
	argonIterations  = 3
	argonMemory      = 64 * 1024 // KiB
	argonParallelism = 4
	argonKeyLength   = 32
)

// Argon2idHasher keeps the same credential triple and two-stage pipeline but
// replaces the first stage with Argon2id, for deployments that don't carry
// legacy directory rows. Stage 2 is unchanged: SHA512(stage1 || privateSalt).
type Argon2idHasher struct{}

func (Argon2idHasher) Generate(plaintext string) (Credential, error) {
	publicSalt, err := newSalt()
	if err != nil {
		return Credential{}, err
	}
	privateSalt, err := newSalt()
	if err != nil {
		return Credential{}, err
	}

	return Credential{
		Hash:        argon2idDigest([]byte(plaintext), publicSalt, privateSalt),
		PublicSalt:  publicSalt,
		PrivateSalt: privateSalt,
	}, nil
}

func (Argon2idHasher) Verify(plaintext string, cred Credential) bool {
	if !cred.Complete() {
		return false
	}

	computed := argon2idDigest([]byte(plaintext), cred.PublicSalt, cred.PrivateSalt)
	return subtle.ConstantTimeCompare(computed, cred.Hash) == 1
}

func argon2idDigest(plaintext, publicSalt, privateSalt []byte) []byte {
	first := argon2.IDKey(plaintext, publicSalt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	second := sha512.Sum512(combineSalt(first, privateSalt))
	return second[:]
}
