// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes transactions, which invite redemption
	// relies on; the pragma below is also per-connection.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateHousehold persists a new household.
func (s *SQLiteStore) CreateHousehold(ctx context.Context, household *models.Household) error {
	// Generate ID if not set
	if household.ID == "" {
		household.ID = uuid.New().String()
	}
	if household.CreatedAt == 0 {
		household.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO households (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)",
		household.ID, household.Name, household.OwnerID, household.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert household: %w", err)
	}

	return nil
}

// GetHousehold retrieves a household by ID.
func (s *SQLiteStore) GetHousehold(ctx context.Context, householdID string) (*models.Household, error) {
	household := &models.Household{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id, created_at FROM households WHERE id = ?",
		householdID,
	).Scan(&household.ID, &household.Name, &household.OwnerID, &household.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("household %s: %w", householdID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get household: %w", err)
	}

	return household, nil
}

// PutBlob overwrites the household's encrypted document.
func (s *SQLiteStore) PutBlob(ctx context.Context, blob *models.EncryptedBlob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_blobs (household_id, encrypted_data, iv, algorithm, key_version)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (household_id) DO UPDATE SET
		     encrypted_data = excluded.encrypted_data,
		     iv = excluded.iv,
		     algorithm = excluded.algorithm,
		     key_version = excluded.key_version`,
		blob.HouseholdID, blob.EncryptedData, blob.IV, blob.Algorithm, blob.KeyVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}

	return nil
}

// GetBlob retrieves the household's encrypted document.
func (s *SQLiteStore) GetBlob(ctx context.Context, householdID string) (*models.EncryptedBlob, error) {
	blob := &models.EncryptedBlob{}
	err := s.db.QueryRowContext(ctx,
		"SELECT household_id, encrypted_data, iv, algorithm, key_version FROM household_blobs WHERE household_id = ?",
		householdID,
	).Scan(&blob.HouseholdID, &blob.EncryptedData, &blob.IV, &blob.Algorithm, &blob.KeyVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob for household %s: %w", householdID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}

	return blob, nil
}
