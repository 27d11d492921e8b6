// Package storage provides abstractions for persistent data storage.
//
// Nothing handed to a Store is secret: key records, blobs and invites are
// all encrypted before they get here.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/hearth/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// UserStore persists user accounts for the auth provider.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// HouseholdStore persists household metadata.
type HouseholdStore interface {
	CreateHousehold(ctx context.Context, household *models.Household) error
	// GetHousehold returns ErrNotFound if the household does not exist.
	GetHousehold(ctx context.Context, householdID string) (*models.Household, error)
}

// KeyStore persists one wrapped content key per (household, member).
type KeyStore interface {
	// PutKeyRecord creates or replaces the member's record.
	PutKeyRecord(ctx context.Context, record *models.WrappedKeyRecord) error
	// GetKeyRecord returns ErrNotFound if the member has no record.
	GetKeyRecord(ctx context.Context, householdID, principalID string) (*models.WrappedKeyRecord, error)
	// DeleteKeyRecord returns ErrNotFound if the member has no record.
	DeleteKeyRecord(ctx context.Context, householdID, principalID string) error
	// ListKeyRecords returns the household's records ordered by principal ID.
	ListKeyRecords(ctx context.Context, householdID string) ([]*models.WrappedKeyRecord, error)
}

// BlobStore persists the single encrypted document of each household.
type BlobStore interface {
	// PutBlob overwrites the household's blob (last writer wins).
	PutBlob(ctx context.Context, blob *models.EncryptedBlob) error
	// GetBlob returns ErrNotFound if nothing has been saved yet.
	GetBlob(ctx context.Context, householdID string) (*models.EncryptedBlob, error)
}

// RedeemFunc validates an invite inside a redemption transaction. It
// returns the key record to write for the redeemer, or an error to abort
// without changing anything.
type RedeemFunc func(invite *models.Invite) (*models.WrappedKeyRecord, error)

// InviteStore persists invites addressed by code hash.
type InviteStore interface {
	// CreateInvite returns ErrAlreadyExists on a code hash collision.
	CreateInvite(ctx context.Context, invite *models.Invite) error
	// GetInvite returns ErrNotFound if no invite has the code hash.
	GetInvite(ctx context.Context, codeHash string) (*models.Invite, error)
	// RedeemInvite atomically loads the invite, runs fn, stores the
	// returned key record and deletes the invite, whatever its maxUses.
	// Concurrent redemptions of the same invite serialize; a loser observes
	// the invite as gone.
	// Returns ErrNotFound if no invite has the code hash.
	RedeemInvite(ctx context.Context, codeHash string, fn RedeemFunc) error
	// ListInvites returns all invites of a household.
	ListInvites(ctx context.Context, householdID string) ([]*models.Invite, error)
	// DeleteInvite returns ErrNotFound if no invite has the code hash.
	DeleteInvite(ctx context.Context, codeHash string) error
}

// Store is everything the vault persists.
// This abstraction allows swapping storage backends (SQLite, Badger)
// without changing the service layer.
type Store interface {
	UserStore
	HouseholdStore
	KeyStore
	BlobStore
	InviteStore

	// Close releases any resources held by the store.
	Close() error
}
