package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

const inviteColumns = `code_hash, household_id, created_by, target_identity, encrypted_household_key,
	key_iv, key_version, expires_at, max_uses, used_count, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvite(row rowScanner) (*models.Invite, error) {
	invite := &models.Invite{}
	err := row.Scan(
		&invite.CodeHash,
		&invite.HouseholdID,
		&invite.CreatedBy,
		&invite.TargetIdentity,
		&invite.EncryptedHouseholdKey,
		&invite.KeyIV,
		&invite.KeyVersion,
		&invite.ExpiresAt,
		&invite.MaxUses,
		&invite.UsedCount,
		&invite.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// CreateInvite persists a new invite.
func (s *SQLiteStore) CreateInvite(ctx context.Context, invite *models.Invite) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM invites WHERE code_hash = ?", invite.CodeHash).Scan(&exists)
	if err == nil {
		return storage.ErrAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check invite existence: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invites (`+inviteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invite.CodeHash,
		invite.HouseholdID,
		invite.CreatedBy,
		invite.TargetIdentity,
		invite.EncryptedHouseholdKey,
		invite.KeyIV,
		invite.KeyVersion,
		invite.ExpiresAt,
		invite.MaxUses,
		invite.UsedCount,
		invite.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invite: %w", err)
	}

	return nil
}

// GetInvite retrieves an invite by code hash.
func (s *SQLiteStore) GetInvite(ctx context.Context, codeHash string) (*models.Invite, error) {
	invite, err := scanInvite(s.db.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE code_hash = ?", codeHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return invite, nil
}

// RedeemInvite consumes an invite inside a single transaction. A successful
// redemption deletes the invite whatever its maxUses. The usedCount guard on
// the delete makes a concurrent redemption that read the same row fail
// instead of double-spending.
func (s *SQLiteStore) RedeemInvite(ctx context.Context, codeHash string, fn storage.RedeemFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	invite, err := scanInvite(tx.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE code_hash = ?", codeHash))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get invite: %w", err)
	}

	record, err := fn(invite)
	if err != nil {
		return err
	}
	if err := putKeyRecord(ctx, tx, record); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM invites WHERE code_hash = ? AND used_count = ?",
		codeHash, invite.UsedCount,
	)
	if err != nil {
		return fmt.Errorf("failed to consume invite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume invite: %w", err)
	}
	if n != 1 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListInvites retrieves all invites of a household, oldest first.
func (s *SQLiteStore) ListInvites(ctx context.Context, householdID string) ([]*models.Invite, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE household_id = ? ORDER BY created_at",
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*models.Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invites: %w", err)
	}

	return invites, nil
}

// DeleteInvite removes an invite by code hash.
func (s *SQLiteStore) DeleteInvite(ctx context.Context, codeHash string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM invites WHERE code_hash = ?", codeHash)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}
