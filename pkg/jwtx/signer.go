package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoKey       = errors.New("jwtx: signing key not configured")
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Signer is our interface for anything that can sign access claims.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
	Validate() error
}

// HS256Signer signs tokens with a shared symmetric key. Key length is
// enforced by configuration validation before the signer is constructed;
// Validate only guards against an empty key slipping through.
type HS256Signer struct {
	key []byte
}

// NewSignerHS256 creates an HS256 signer from raw key material.
func NewSignerHS256(key []byte) *HS256Signer {
	return &HS256Signer{key: key}
}

func (s *HS256Signer) Alg() string { return "HS256" }

func (s *HS256Signer) Validate() error {
	if len(s.key) == 0 {
		return ErrNoKey
	}
	return nil
}

func (s *HS256Signer) Sign(c Claims) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}
	return signed, nil
}
