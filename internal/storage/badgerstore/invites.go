package badgerstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

func getInvite(txn *badger.Txn, codeHash string) (*models.Invite, error) {
	var invite models.Invite
	if err := getJSON(txn, inviteKey(codeHash), &invite); err != nil {
		return nil, err
	}
	invite.CodeHash = codeHash
	return &invite, nil
}

func deleteInvite(txn *badger.Txn, invite *models.Invite) error {
	if err := txn.Delete(inviteKey(invite.CodeHash)); err != nil {
		return err
	}
	return txn.Delete(inviteIndexKey(invite.HouseholdID, invite.CodeHash))
}

// CreateInvite persists a new invite and its household index entry.
func (s *BadgerStore) CreateInvite(ctx context.Context, invite *models.Invite) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, inviteKey(invite.CodeHash))
		if err != nil {
			return err
		}
		if taken {
			return storage.ErrAlreadyExists
		}
		if err := setJSON(txn, inviteKey(invite.CodeHash), invite); err != nil {
			return fmt.Errorf("failed to store invite: %w", err)
		}
		return txn.Set(inviteIndexKey(invite.HouseholdID, invite.CodeHash), nil)
	})
}

// GetInvite retrieves an invite by code hash.
func (s *BadgerStore) GetInvite(ctx context.Context, codeHash string) (*models.Invite, error) {
	var invite *models.Invite
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		invite, err = getInvite(txn, codeHash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// RedeemInvite consumes an invite in a single transaction. A successful
// redemption deletes the invite whatever its maxUses. A concurrent
// redemption touching the same keys aborts with ErrConflict and is retried
// against the committed state, where the invite is gone.
func (s *BadgerStore) RedeemInvite(ctx context.Context, codeHash string, fn storage.RedeemFunc) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		invite, err := getInvite(txn, codeHash)
		if err != nil {
			return err
		}

		record, err := fn(invite)
		if err != nil {
			return err
		}
		if err := setJSON(txn, keyRecordKey(record.HouseholdID, record.PrincipalID), record); err != nil {
			return fmt.Errorf("failed to store key record: %w", err)
		}

		return deleteInvite(txn, invite)
	})
}

// ListInvites retrieves all invites of a household.
func (s *BadgerStore) ListInvites(ctx context.Context, householdID string) ([]*models.Invite, error) {
	var invites []*models.Invite
	prefix := inviteIndexPrefixFor(householdID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			codeHash := string(it.Item().KeyCopy(nil)[len(prefix):])
			invite, err := getInvite(txn, codeHash)
			if err != nil {
				return fmt.Errorf("invite %s: %w", codeHash, err)
			}
			invites = append(invites, invite)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}

// DeleteInvite removes an invite by code hash.
func (s *BadgerStore) DeleteInvite(ctx context.Context, codeHash string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		invite, err := getInvite(txn, codeHash)
		if err != nil {
			return err
		}
		return deleteInvite(txn, invite)
	})
}
