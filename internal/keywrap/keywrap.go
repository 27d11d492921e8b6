// Package keywrap wraps a household content key for one member under a KEK
// derived from that member's credential.
package keywrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/models"
)

// ErrAccessDenied means the credential does not open the record, usually
// because it was wrapped for a different principal or the credential changed.
var ErrAccessDenied = errors.New("access denied")

// Wrapper derives KEKs and wraps content keys. The zero value uses
// crypt.DefaultIterations.
type Wrapper struct {
	// Iterations is the PBKDF2 work factor. Tests lower it.
	Iterations int
}

// SaltContext is the non-secret, household-scoped KDF salt.
func SaltContext(householdID string) string {
	return "household-" + householdID
}

func (w Wrapper) kek(credential, householdID string) []byte {
	return crypt.DeriveKey(credential, SaltContext(householdID), w.Iterations)
}

// WrapForPrincipal encrypts contentKey under the KEK derived from
// (credential, householdID).
func (w Wrapper) WrapForPrincipal(contentKey []byte, credential, householdID, principalID string) (*models.WrappedKeyRecord, error) {
	if len(contentKey) != crypt.KeySize {
		return nil, fmt.Errorf("%w: content key must be %d bytes", crypt.ErrCrypto, crypt.KeySize)
	}
	kek := w.kek(credential, householdID)
	defer crypt.Zero(kek)

	ct, iv, err := crypt.Seal(kek, contentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap content key: %w", err)
	}

	return &models.WrappedKeyRecord{
		HouseholdID:  householdID,
		PrincipalID:  principalID,
		EncryptedKey: ct,
		IV:           iv,
		KeyVersion:   models.CurrentKeyVersion,
		CreatedAt:    time.Now().Unix(),
	}, nil
}

// UnwrapForPrincipal re-derives the KEK and recovers the content key.
func (w Wrapper) UnwrapForPrincipal(record *models.WrappedKeyRecord, credential, householdID string) ([]byte, error) {
	if record == nil {
		return nil, ErrAccessDenied
	}
	kek := w.kek(credential, householdID)
	defer crypt.Zero(kek)

	key, err := crypt.Open(kek, record.EncryptedKey, record.IV)
	if err != nil {
		return nil, ErrAccessDenied
	}
	if len(key) != crypt.KeySize {
		crypt.Zero(key)
		return nil, ErrAccessDenied
	}
	return key, nil
}
