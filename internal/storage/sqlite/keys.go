package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertKeyRecord = `
	INSERT INTO household_keys (household_id, principal_id, encrypted_key, iv, key_version, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (household_id, principal_id) DO UPDATE SET
	    encrypted_key = excluded.encrypted_key,
	    iv = excluded.iv,
	    key_version = excluded.key_version,
	    created_at = excluded.created_at
`

func putKeyRecord(ctx context.Context, e execer, record *models.WrappedKeyRecord) error {
	_, err := e.ExecContext(ctx, upsertKeyRecord,
		record.HouseholdID,
		record.PrincipalID,
		record.EncryptedKey,
		record.IV,
		record.KeyVersion,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store key record: %w", err)
	}
	return nil
}

// PutKeyRecord creates or replaces a member's wrapped key.
func (s *SQLiteStore) PutKeyRecord(ctx context.Context, record *models.WrappedKeyRecord) error {
	return putKeyRecord(ctx, s.db, record)
}

// GetKeyRecord retrieves a member's wrapped key.
func (s *SQLiteStore) GetKeyRecord(ctx context.Context, householdID, principalID string) (*models.WrappedKeyRecord, error) {
	record := &models.WrappedKeyRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT household_id, principal_id, encrypted_key, iv, key_version, created_at
		 FROM household_keys WHERE household_id = ? AND principal_id = ?`,
		householdID, principalID,
	).Scan(&record.HouseholdID, &record.PrincipalID, &record.EncryptedKey, &record.IV,
		&record.KeyVersion, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key record %s/%s: %w", householdID, principalID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key record: %w", err)
	}

	return record, nil
}

// DeleteKeyRecord removes a member's wrapped key.
func (s *SQLiteStore) DeleteKeyRecord(ctx context.Context, householdID, principalID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM household_keys WHERE household_id = ? AND principal_id = ?",
		householdID, principalID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete key record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete key record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("key record %s/%s: %w", householdID, principalID, storage.ErrNotFound)
	}

	return nil
}

// ListKeyRecords retrieves all wrapped keys of a household.
func (s *SQLiteStore) ListKeyRecords(ctx context.Context, householdID string) ([]*models.WrappedKeyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT household_id, principal_id, encrypted_key, iv, key_version, created_at
		 FROM household_keys WHERE household_id = ? ORDER BY principal_id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list key records: %w", err)
	}
	defer rows.Close()

	var records []*models.WrappedKeyRecord
	for rows.Next() {
		record := &models.WrappedKeyRecord{}
		if err := rows.Scan(&record.HouseholdID, &record.PrincipalID, &record.EncryptedKey, &record.IV,
			&record.KeyVersion, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key records: %w", err)
	}

	return records, nil
}
