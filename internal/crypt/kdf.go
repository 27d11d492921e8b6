package crypt

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2 work factor for credential-derived KEKs.
const DefaultIterations = 100_000

// DeriveKey stretches a member credential into a KEK with
// PBKDF2-HMAC-SHA-256. The same (secret, saltContext, iterations) always
// yields the same key, since KEKs are re-derived every session and never
// stored.
func DeriveKey(secret, saltContext string, iterations int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key([]byte(secret), []byte(saltContext), iterations, KeySize, sha256.New)
}

// ExpandCode turns high-entropy code bytes into a KEK with HKDF-SHA-256.
// The salt is public and unique per invite.
func ExpandCode(code, salt []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, code, salt, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: key expansion: %v", ErrCrypto, err)
	}
	return key, nil
}
