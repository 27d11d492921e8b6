package household

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmynk/hearth/internal/authz"
	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/invite"
	"github.com/mmynk/hearth/internal/keystore"
	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/statecodec"
	"github.com/mmynk/hearth/internal/storage"
)

// Session is one principal's open view of one household. It holds the
// content key until Close.
type Session struct {
	m          *Manager
	household  models.Household
	principal  models.Principal
	role       authz.Role
	keyVersion int

	mu     sync.RWMutex
	key    []byte
	closed bool
}

// HouseholdID returns the household's ID.
func (s *Session) HouseholdID() string { return s.household.ID }

// Household returns the household's metadata.
func (s *Session) Household() models.Household { return s.household }

// PrincipalID returns the ID of the principal the session was opened for.
func (s *Session) PrincipalID() string { return s.principal.ID }

// Role returns the principal's role in the household.
func (s *Session) Role() authz.Role { return s.role }

// check must be called with s.mu held.
func (s *Session) check(action authz.Action) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.m.authorizer.Check(s.role, action)
}

// Load decrypts the household document. A household that has never been
// saved yields an empty document.
func (s *Session) Load(ctx context.Context) (statecodec.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(authz.ActionRead); err != nil {
		return nil, err
	}

	blob, err := s.m.store.GetBlob(ctx, s.household.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return statecodec.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load household data: %w", err)
	}

	doc, err := statecodec.DecryptState(blob, s.key)
	if err != nil {
		s.m.loadFailed(s.household.ID, err)
		return nil, err
	}
	return doc, nil
}

// Save encrypts doc and replaces the stored document. Concurrent saves
// from other sessions are not detected: the last write wins.
func (s *Session) Save(ctx context.Context, doc statecodec.Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(authz.ActionWrite); err != nil {
		return err
	}

	blob, err := statecodec.EncryptState(doc, s.key, s.keyVersion)
	if err != nil {
		return err
	}
	blob.HouseholdID = s.household.ID
	if err := s.m.store.PutBlob(ctx, blob); err != nil {
		return fmt.Errorf("failed to save household data: %w", err)
	}

	s.m.metrics.StateSaves.Inc()
	s.m.logger.Debug("Household data saved", "household_id", s.household.ID, "principal_id", s.principal.ID)
	return nil
}

// Invite issues an invite for target and returns the code to hand over.
// A zero ttl uses the manager's default; maxUses below one means one.
func (s *Session) Invite(ctx context.Context, target string, ttl time.Duration, maxUses int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(authz.ActionInvite); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.m.inviteTTL
	}

	code, err := s.m.invites.Create(ctx, invite.CreateParams{
		HouseholdID:    s.household.ID,
		CreatedBy:      s.principal.ID,
		ContentKey:     s.key,
		KeyVersion:     s.keyVersion,
		TargetIdentity: target,
		TTL:            ttl,
		MaxUses:        maxUses,
	})
	if err != nil {
		return "", err
	}
	s.m.metrics.InvitesCreated.Inc()
	return code, nil
}

// Members lists the principal IDs that hold a key record.
func (s *Session) Members(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(authz.ActionListMembers); err != nil {
		return nil, err
	}
	return s.m.keys.Members(ctx, s.household.ID)
}

// RemoveMember deletes principalID's key record. The content key is not
// rotated: the removed member loses this access path only.
func (s *Session) RemoveMember(ctx context.Context, principalID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(authz.ActionRemoveMember); err != nil {
		return err
	}
	if principalID == s.household.OwnerID {
		return ErrOwnerIrremovable
	}

	err := s.m.keys.RemoveMember(ctx, s.household.ID, principalID)
	if errors.Is(err, keystore.ErrNoRecord) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	s.m.logger.Info("Member removed", "household_id", s.household.ID, "principal_id", principalID, "removed_by", s.principal.ID)
	return nil
}

// CleanupInvites deletes the household's expired and used-up invites.
func (s *Session) CleanupInvites(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(authz.ActionCleanupInvites); err != nil {
		return 0, err
	}
	return s.m.invites.Cleanup(ctx, s.household.ID)
}

// Close wipes the content key. It waits for in-flight operations and is
// safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	crypt.Zero(s.key)
	s.key = nil
	s.closed = true
	s.m.metrics.SessionsActive.Dec()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
