// Package crypt holds the primitives the vault is built on: AES-256-GCM
// sealing with per-call random IVs, and key derivation for member
// credentials (PBKDF2) and invite codes (HKDF).
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the length of content keys and KEKs (AES-256).
	KeySize = 32

	// IVSize is the GCM nonce length (96 bits).
	IVSize = 12

	// CodeSize is the number of random bytes in an invite code (128 bits).
	CodeSize = 16

	// Algorithm names the AEAD stamped on encrypted records.
	Algorithm = "AES-GCM"
)

var (
	// ErrCrypto indicates the RNG or cipher setup failed. Not retried.
	ErrCrypto = errors.New("cryptographic failure")

	// ErrAuthenticationFailed covers every decryption failure: bad tag,
	// wrong key and malformed input all look the same to callers.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// randReader is swapped in tests that simulate RNG failure.
var randReader io.Reader = rand.Reader

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random IV.
// The GCM tag is appended to the returned ciphertext.
func Seal(key, plaintext []byte) (ciphertext, iv []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrCrypto, KeySize, len(key))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	iv = make([]byte, IVSize)
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to generate iv: %v", ErrCrypto, err)
	}

	return gcm.Seal(nil, iv, plaintext, nil), iv, nil
}

// Open decrypts and authenticates ciphertext. Every failure returns
// ErrAuthenticationFailed without detail.
func Open(key, ciphertext, iv []byte) ([]byte, error) {
	if len(key) != KeySize || len(iv) != IVSize {
		return nil, ErrAuthenticationFailed
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// NewContentKey returns a fresh random 256-bit key.
func NewContentKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(randReader, key); err != nil {
		return nil, fmt.Errorf("%w: failed to generate key: %v", ErrCrypto, err)
	}
	return key, nil
}

// NewInviteCode returns CodeSize random bytes, hex encoded.
func NewInviteCode() (string, error) {
	raw := make([]byte, CodeSize)
	if _, err := io.ReadFull(randReader, raw); err != nil {
		return "", fmt.Errorf("%w: failed to generate invite code: %v", ErrCrypto, err)
	}
	return hex.EncodeToString(raw), nil
}

// Zero overwrites b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
