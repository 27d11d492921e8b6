package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

// PutKeyRecord creates or replaces a member's wrapped key.
func (s *BadgerStore) PutKeyRecord(ctx context.Context, record *models.WrappedKeyRecord) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, keyRecordKey(record.HouseholdID, record.PrincipalID), record)
	})
}

// GetKeyRecord retrieves a member's wrapped key.
func (s *BadgerStore) GetKeyRecord(ctx context.Context, householdID, principalID string) (*models.WrappedKeyRecord, error) {
	var record models.WrappedKeyRecord
	if err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyRecordKey(householdID, principalID), &record)
	}); err != nil {
		return nil, fmt.Errorf("key record %s/%s: %w", householdID, principalID, err)
	}
	record.HouseholdID = householdID
	record.PrincipalID = principalID
	return &record, nil
}

// DeleteKeyRecord removes a member's wrapped key.
func (s *BadgerStore) DeleteKeyRecord(ctx context.Context, householdID, principalID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		key := keyRecordKey(householdID, principalID)
		found, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key record %s/%s: %w", householdID, principalID, storage.ErrNotFound)
		}
		return txn.Delete(key)
	})
}

// ListKeyRecords retrieves all wrapped keys of a household, ordered by
// principal ID.
func (s *BadgerStore) ListKeyRecords(ctx context.Context, householdID string) ([]*models.WrappedKeyRecord, error) {
	var records []*models.WrappedKeyRecord
	prefix := keyRecordPrefix(householdID)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			record := &models.WrappedKeyRecord{}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, record)
			}); err != nil {
				return fmt.Errorf("failed to decode key record: %w", err)
			}
			record.HouseholdID = householdID
			record.PrincipalID = strings.TrimPrefix(string(item.KeyCopy(nil)), string(prefix))
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list key records: %w", err)
	}
	return records, nil
}
