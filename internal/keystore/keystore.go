// Package keystore manages the per-member wrapped content keys of each
// household.
package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/hearth/internal/keywrap"
	"github.com/mmynk/hearth/internal/storage"
)

// ErrNoRecord means the principal holds no wrapped key for the household.
var ErrNoRecord = errors.New("no key record for member")

// KeyStore wraps content keys for members and persists the records.
type KeyStore struct {
	store   storage.KeyStore
	wrapper keywrap.Wrapper
}

// New creates a KeyStore over the given storage.
func New(store storage.KeyStore, wrapper keywrap.Wrapper) *KeyStore {
	return &KeyStore{store: store, wrapper: wrapper}
}

// Wrapper returns the key wrapper, for callers that build records inside
// their own transaction (invite redemption).
func (k *KeyStore) Wrapper() keywrap.Wrapper {
	return k.wrapper
}

// AddMember wraps contentKey for the principal and stores the record,
// replacing any previous one.
func (k *KeyStore) AddMember(ctx context.Context, householdID, principalID, credential string, contentKey []byte) error {
	record, err := k.wrapper.WrapForPrincipal(contentKey, credential, householdID, principalID)
	if err != nil {
		return err
	}
	if err := k.store.PutKeyRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to add member %s: %w", principalID, err)
	}
	return nil
}

// Unlock fetches the principal's record and unwraps the content key.
// It returns ErrNoRecord when there is no record and
// keywrap.ErrAccessDenied when the credential does not open it.
func (k *KeyStore) Unlock(ctx context.Context, householdID, principalID, credential string) ([]byte, error) {
	record, err := k.store.GetKeyRecord(ctx, householdID, principalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key record: %w", err)
	}
	return k.wrapper.UnwrapForPrincipal(record, credential, householdID)
}

// RemoveMember deletes the principal's record. The content key itself is
// unchanged, so this only closes one access path.
func (k *KeyStore) RemoveMember(ctx context.Context, householdID, principalID string) error {
	err := k.store.DeleteKeyRecord(ctx, householdID, principalID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoRecord
	}
	return err
}

// Members lists the principal IDs holding a record, sorted.
func (k *KeyStore) Members(ctx context.Context, householdID string) ([]string, error) {
	records, err := k.store.ListKeyRecords(ctx, householdID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.PrincipalID
	}
	return ids, nil
}

// IsMember reports whether the principal holds a record.
func (k *KeyStore) IsMember(ctx context.Context, householdID, principalID string) (bool, error) {
	_, err := k.store.GetKeyRecord(ctx, householdID, principalID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
