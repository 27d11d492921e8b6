// Package badgerstore provides a Badger-backed implementation of the
// storage.Store interface. Records are JSON values under prefixed keys;
// Badger's serializable transactions give invite redemption its atomicity.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

// Ensure BadgerStore implements storage.Store
var _ storage.Store = (*BadgerStore)(nil)

// maxTxnRetries bounds retries after badger.ErrConflict.
const maxTxnRetries = 5

const (
	userPrefix        = "user/"
	userEmailPrefix   = "user-email/"
	householdPrefix   = "household/"
	keyPrefix         = "key/"
	blobPrefix        = "blob/"
	invitePrefix      = "invite/"
	inviteIndexPrefix = "household-invite/"
)

func userKey(id string) []byte            { return []byte(userPrefix + id) }
func userEmailKey(email string) []byte    { return []byte(userEmailPrefix + email) }
func householdKey(id string) []byte       { return []byte(householdPrefix + id) }
func keyRecordPrefix(hid string) []byte   { return []byte(keyPrefix + hid + "/") }
func keyRecordKey(hid, pid string) []byte { return []byte(keyPrefix + hid + "/" + pid) }
func blobKey(hid string) []byte           { return []byte(blobPrefix + hid) }
func inviteKey(hash string) []byte        { return []byte(invitePrefix + hash) }
func inviteIndexPrefixFor(hid string) []byte {
	return []byte(inviteIndexPrefix + hid + "/")
}
func inviteIndexKey(hid, hash string) []byte {
	return []byte(inviteIndexPrefix + hid + "/" + hash)
}

// Config configures the store.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory; used by tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// BadgerStore implements storage.Store using Badger.
type BadgerStore struct {
	db *badger.DB
}

// New opens (or creates) a Badger database.
func New(config Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil).WithSyncWrites(config.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// CreateUser stores a user and its email index.
func (s *BadgerStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, userEmailKey(user.Email))
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return fmt.Errorf("user %s: %w", user.Email, storage.ErrAlreadyExists)
		}
		if err := setJSON(txn, userKey(user.ID), user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return txn.Set(userEmailKey(user.Email), []byte(user.ID))
	})
}

// GetUserByEmail retrieves a user by their email address.
func (s *BadgerStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(models.NormalizeIdentity(email)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(string(id)), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *BadgerStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	}); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateHousehold persists a new household.
func (s *BadgerStore) CreateHousehold(ctx context.Context, household *models.Household) error {
	if household.ID == "" {
		household.ID = uuid.New().String()
	}
	if household.CreatedAt == 0 {
		household.CreatedAt = time.Now().Unix()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, householdKey(household.ID))
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("household %s: %w", household.ID, storage.ErrAlreadyExists)
		}
		return setJSON(txn, householdKey(household.ID), household)
	})
}

// GetHousehold retrieves a household by ID.
func (s *BadgerStore) GetHousehold(ctx context.Context, householdID string) (*models.Household, error) {
	var household models.Household
	if err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, householdKey(householdID), &household)
	}); err != nil {
		return nil, fmt.Errorf("household %s: %w", householdID, err)
	}
	return &household, nil
}

// PutBlob overwrites the household's encrypted document.
func (s *BadgerStore) PutBlob(ctx context.Context, blob *models.EncryptedBlob) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, blobKey(blob.HouseholdID), blob)
	})
}

// GetBlob retrieves the household's encrypted document.
func (s *BadgerStore) GetBlob(ctx context.Context, householdID string) (*models.EncryptedBlob, error) {
	var blob models.EncryptedBlob
	if err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, blobKey(householdID), &blob)
	}); err != nil {
		return nil, fmt.Errorf("blob for household %s: %w", householdID, err)
	}
	blob.HouseholdID = householdID
	return &blob, nil
}
