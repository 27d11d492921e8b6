// Package backup exports a household's encrypted records to a file and
// restores them. Archives hold ciphertext and wrapped keys only, so they
// are as safe to keep as the store itself.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

// FormatVersion is written into every archive.
const FormatVersion = 1

var ErrInvalidArchive = errors.New("invalid backup archive")

// Store is the persistence a backup reads from and restores into.
type Store interface {
	storage.HouseholdStore
	storage.KeyStore
	storage.BlobStore
}

// MemberKey is one member's wrapped content key.
type MemberKey struct {
	PrincipalID string                   `json:"principalId"`
	Record      *models.WrappedKeyRecord `json:"record"`
}

// Archive is the on-disk backup format.
type Archive struct {
	Version     int                   `json:"version"`
	ExportedAt  int64                 `json:"exportedAt"`
	HouseholdID string                `json:"householdId"`
	Name        string                `json:"name"`
	OwnerID     string                `json:"ownerId"`
	CreatedAt   int64                 `json:"createdAt"`
	Members     []MemberKey           `json:"members"`
	Blob        *models.EncryptedBlob `json:"blob,omitempty"`
}

// Export writes the household's records to path, replacing any existing
// file atomically. A household that has never been saved is exported
// without a blob.
func Export(ctx context.Context, store Store, householdID, path string) (*Archive, error) {
	household, err := store.GetHousehold(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load household: %w", err)
	}

	records, err := store.ListKeyRecords(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list key records: %w", err)
	}

	blob, err := store.GetBlob(ctx, householdID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load blob: %w", err)
	}

	archive := &Archive{
		Version:     FormatVersion,
		ExportedAt:  time.Now().Unix(),
		HouseholdID: household.ID,
		Name:        household.Name,
		OwnerID:     household.OwnerID,
		CreatedAt:   household.CreatedAt,
		Members:     make([]MemberKey, len(records)),
		Blob:        blob,
	}
	for i, r := range records {
		archive.Members[i] = MemberKey{PrincipalID: r.PrincipalID, Record: r}
	}

	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	slog.Info("Household exported", "household_id", householdID, "members", len(records), "path", path)
	return archive, nil
}

// Read decodes and checks the archive at path.
func Read(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var archive Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if archive.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArchive, archive.Version)
	}
	if archive.HouseholdID == "" || archive.OwnerID == "" {
		return nil, fmt.Errorf("%w: missing household", ErrInvalidArchive)
	}
	for _, m := range archive.Members {
		if m.PrincipalID == "" || m.Record == nil {
			return nil, fmt.Errorf("%w: malformed member key", ErrInvalidArchive)
		}
	}
	return &archive, nil
}

// Restore loads the archive at path into store. The household row is
// created if missing; key records and the blob overwrite what is there.
// Member records absent from the archive are deleted, so the membership
// after a restore is exactly the archive's: members added since the export
// lose access and members removed since the export regain it.
func Restore(ctx context.Context, store Store, path string) (*Archive, error) {
	archive, err := Read(path)
	if err != nil {
		return nil, err
	}

	_, err = store.GetHousehold(ctx, archive.HouseholdID)
	if errors.Is(err, storage.ErrNotFound) {
		err = store.CreateHousehold(ctx, &models.Household{
			ID:        archive.HouseholdID,
			Name:      archive.Name,
			OwnerID:   archive.OwnerID,
			CreatedAt: archive.CreatedAt,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore household: %w", err)
	}

	keep := make(map[string]bool, len(archive.Members))
	for _, m := range archive.Members {
		m.Record.HouseholdID = archive.HouseholdID
		m.Record.PrincipalID = m.PrincipalID
		if err := store.PutKeyRecord(ctx, m.Record); err != nil {
			return nil, fmt.Errorf("failed to restore key record: %w", err)
		}
		keep[m.PrincipalID] = true
	}

	current, err := store.ListKeyRecords(ctx, archive.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list key records: %w", err)
	}
	for _, record := range current {
		if keep[record.PrincipalID] {
			continue
		}
		err := store.DeleteKeyRecord(ctx, archive.HouseholdID, record.PrincipalID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to drop key record: %w", err)
		}
		slog.Info("Dropped member absent from archive", "household_id", archive.HouseholdID, "principal_id", record.PrincipalID)
	}

	if archive.Blob != nil {
		archive.Blob.HouseholdID = archive.HouseholdID
		if err := store.PutBlob(ctx, archive.Blob); err != nil {
			return nil, fmt.Errorf("failed to restore blob: %w", err)
		}
	}

	slog.Info("Household restored", "household_id", archive.HouseholdID, "members", len(archive.Members), "path", path)
	return archive, nil
}
