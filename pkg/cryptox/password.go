package cryptox

import (
	"crypto/sha1" // #nosec G505 -- storage format of the existing user directory
	"crypto/sha512"
	"crypto/subtle"
)

// TwoStageHasher is the salted two-stage scheme the existing directory rows
// were written with: stage1 = SHA1(plaintext || publicSalt), then
// hash = SHA512(stage1 || privateSalt). Stage 2 consumes the raw 20-byte
// SHA-1 digest; base64 only appears at the storage boundary.
type TwoStageHasher struct{}

func (TwoStageHasher) Generate(plaintext string) (Credential, error) {
	publicSalt, err := newSalt()
	if err != nil {
		return Credential{}, err
	}
	privateSalt, err := newSalt()
	if err != nil {
		return Credential{}, err
	}

	return Credential{
		Hash:        twoStageDigest([]byte(plaintext), publicSalt, privateSalt),
		PublicSalt:  publicSalt,
		PrivateSalt: privateSalt,
	}, nil
}

func (TwoStageHasher) Verify(plaintext string, cred Credential) bool {
	if !cred.Complete() {
		return false
	}

	computed := twoStageDigest([]byte(plaintext), cred.PublicSalt, cred.PrivateSalt)
	return subtle.ConstantTimeCompare(computed, cred.Hash) == 1
}

func twoStageDigest(plaintext, publicSalt, privateSalt []byte) []byte {
	first := sha1.Sum(combineSalt(plaintext, publicSalt)) // #nosec G401
	second := sha512.Sum512(combineSalt(first[:], privateSalt))
	return second[:]
}

func combineSalt(material, salt []byte) []byte {
	combined := make([]byte, 0, len(material)+len(salt))
	combined = append(combined, material...)
	return append(combined, salt...)
}
