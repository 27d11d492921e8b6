// Package invite implements identity-bound, time-boxed invites that carry
// the household content key to a new member without an existing member
// being online.
//
// The content key inside an invite is sealed under a key expanded from the
// invite code. The code itself is never stored: records are addressed by
// its SHA-256, so reading the store is not enough to unwrap an invite.
package invite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/keywrap"
	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage"
)

const (
	// DefaultTTL applies when an invite is created without a TTL.
	DefaultTTL = 7 * 24 * time.Hour

	kdfInfo = "hearth-invite-v1"
)

// Redemption outcomes, reported verbatim to the redeeming user.
var (
	ErrNotFound         = errors.New("invite not found")
	ErrExpired          = errors.New("invite has expired")
	ErrExhausted        = errors.New("invite has already been used")
	ErrIdentityMismatch = errors.New("invite was issued to a different identity")
	ErrInvalidInvite    = errors.New("invalid invite parameters")
)

// CreateParams describes a new invite.
type CreateParams struct {
	HouseholdID    string
	CreatedBy      string
	ContentKey     []byte
	KeyVersion     int
	TargetIdentity string
	TTL            time.Duration
	MaxUses        int
}

// Redemption is the result of a successful redemption.
type Redemption struct {
	HouseholdID string
	ContentKey  []byte
	KeyVersion  int
}

// Service creates and redeems invites.
type Service struct {
	store   storage.InviteStore
	wrapper keywrap.Wrapper
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates an invite service. wrapper is used to wrap the
// content key for the redeemer.
func NewService(store storage.InviteStore, wrapper keywrap.Wrapper, opts ...Option) *Service {
	s := &Service{
		store:   store,
		wrapper: wrapper,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashCode returns the storage address of an invite code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// parseCode normalizes a user-supplied code and returns its hash and raw
// bytes. Codes that could never have been issued are rejected here.
func parseCode(code string) (hash string, raw []byte, ok bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != hex.EncodedLen(crypt.CodeSize) {
		return "", nil, false
	}
	raw, err := hex.DecodeString(code)
	if err != nil {
		return "", nil, false
	}
	return HashCode(code), raw, true
}

func codeKEK(raw []byte, householdID string, createdAtMillis int64) ([]byte, error) {
	salt := householdID + ":" + strconv.FormatInt(createdAtMillis, 10)
	return crypt.ExpandCode(raw, []byte(salt), kdfInfo)
}

// Create issues an invite and returns its code. The code is the only
// protection of the wrapped key and must travel over a trusted channel.
func (s *Service) Create(ctx context.Context, p CreateParams) (string, error) {
	target := models.NormalizeIdentity(p.TargetIdentity)
	if target == "" || p.HouseholdID == "" {
		return "", ErrInvalidInvite
	}
	if len(p.ContentKey) != crypt.KeySize {
		return "", fmt.Errorf("%w: content key must be %d bytes", ErrInvalidInvite, crypt.KeySize)
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxUses := p.MaxUses
	if maxUses <= 0 {
		maxUses = 1
	}
	keyVersion := p.KeyVersion
	if keyVersion == 0 {
		keyVersion = models.CurrentKeyVersion
	}

	code, err := crypt.NewInviteCode()
	if err != nil {
		return "", err
	}
	hash, raw, _ := parseCode(code)

	now := s.now()
	createdAt := now.UnixMilli()
	kek, err := codeKEK(raw, p.HouseholdID, createdAt)
	if err != nil {
		return "", err
	}
	defer crypt.Zero(kek)

	ct, iv, err := crypt.Seal(kek, p.ContentKey)
	if err != nil {
		return "", fmt.Errorf("failed to wrap content key for invite: %w", err)
	}

	invite := &models.Invite{
		CodeHash:              hash,
		HouseholdID:           p.HouseholdID,
		CreatedBy:             p.CreatedBy,
		TargetIdentity:        target,
		EncryptedHouseholdKey: ct,
		KeyIV:                 iv,
		KeyVersion:            keyVersion,
		ExpiresAt:             now.Add(ttl).UnixMilli(),
		MaxUses:               maxUses,
		UsedCount:             0,
		CreatedAt:             createdAt,
	}
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return "", fmt.Errorf("failed to store invite: %w", err)
	}

	s.logger.Info("Invite created",
		"household_id", p.HouseholdID,
		"created_by", p.CreatedBy,
		"max_uses", maxUses,
		"expires_at", time.UnixMilli(invite.ExpiresAt).UTC(),
	)
	return code, nil
}

// Redeem consumes the invite for redeemer and writes the
// redeemer's own wrapped key record in the same storage transaction.
//
// Checks run in order and stop at the first failure: the invite exists
// (and belongs to householdID, when given), it has not expired, it has uses
// left, the redeemer's email matches the target case-insensitively, and the
// code unwraps the key.
func (s *Service) Redeem(ctx context.Context, householdID, code string, redeemer models.Principal) (*Redemption, error) {
	hash, raw, ok := parseCode(code)
	if !ok {
		return nil, ErrNotFound
	}

	var result *Redemption
	err := s.store.RedeemInvite(ctx, hash, func(inv *models.Invite) (*models.WrappedKeyRecord, error) {
		if householdID != "" && inv.HouseholdID != householdID {
			return nil, ErrNotFound
		}
		if s.now().UnixMilli() >= inv.ExpiresAt {
			return nil, ErrExpired
		}
		if inv.UsedCount >= inv.MaxUses {
			return nil, ErrExhausted
		}
		if !strings.EqualFold(models.NormalizeIdentity(redeemer.Email), inv.TargetIdentity) {
			return nil, ErrIdentityMismatch
		}

		kek, err := codeKEK(raw, inv.HouseholdID, inv.CreatedAt)
		if err != nil {
			return nil, err
		}
		defer crypt.Zero(kek)

		key, err := crypt.Open(kek, inv.EncryptedHouseholdKey, inv.KeyIV)
		if err != nil {
			return nil, crypt.ErrAuthenticationFailed
		}

		record, err := s.wrapper.WrapForPrincipal(key, redeemer.Credential, inv.HouseholdID, redeemer.ID)
		if err != nil {
			crypt.Zero(key)
			return nil, err
		}
		if result != nil {
			crypt.Zero(result.ContentKey)
		}
		result = &Redemption{HouseholdID: inv.HouseholdID, ContentKey: key, KeyVersion: inv.KeyVersion}
		return record, nil
	})
	if err != nil {
		if result != nil {
			crypt.Zero(result.ContentKey)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Warn("Invite redemption rejected", "principal_id", redeemer.ID, "error", err)
		return nil, err
	}

	s.logger.Info("Invite redeemed", "household_id", result.HouseholdID, "principal_id", redeemer.ID)
	return result, nil
}

// Status reports the invite's current state without consuming it.
func (s *Service) Status(ctx context.Context, code string) (models.InviteState, error) {
	hash, _, ok := parseCode(code)
	if !ok {
		return "", ErrNotFound
	}
	inv, err := s.store.GetInvite(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return inv.State(s.now().UnixMilli()), nil
}

// Cleanup deletes the household's expired and exhausted invites and
// returns how many were removed.
func (s *Service) Cleanup(ctx context.Context, householdID string) (int, error) {
	invites, err := s.store.ListInvites(ctx, householdID)
	if err != nil {
		return 0, err
	}

	now := s.now().UnixMilli()
	removed := 0
	for _, inv := range invites {
		if inv.State(now) == models.InviteActive {
			continue
		}
		err := s.store.DeleteInvite(ctx, inv.CodeHash)
		if errors.Is(err, storage.ErrNotFound) {
			continue // redeemed or cleaned concurrently
		}
		if err != nil {
			return removed, fmt.Errorf("failed to delete invite: %w", err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Invites cleaned up", "household_id", householdID, "removed", removed)
	}
	return removed, nil
}
