// Package household ties the key store, invites and state codec together
// into sessions: a session holds one household's content key in memory
// for one principal, and is the only way to read or write the document.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/hearth/internal/authz"
	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/invite"
	"github.com/mmynk/hearth/internal/keystore"
	"github.com/mmynk/hearth/internal/keywrap"
	"github.com/mmynk/hearth/internal/metrics"
	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/statecodec"
	"github.com/mmynk/hearth/internal/storage"
)

var (
	// ErrAccessDenied means the principal has neither a key record that
	// their credential opens nor a valid invite. It does not say which.
	ErrAccessDenied = keywrap.ErrAccessDenied

	// ErrForbidden means the principal's role does not allow the operation.
	ErrForbidden = authz.ErrForbidden

	ErrSessionClosed    = errors.New("household session is closed")
	ErrInvalidArgument  = errors.New("invalid household request")
	ErrNotMember        = errors.New("principal is not a member of the household")
	ErrOwnerIrremovable = errors.New("the household owner cannot be removed")
)

// Store is the persistence a Manager needs.
type Store interface {
	storage.HouseholdStore
	storage.KeyStore
	storage.BlobStore
	storage.InviteStore
}

// Manager creates and opens household sessions.
type Manager struct {
	store      Store
	keys       *keystore.KeyStore
	invites    *invite.Service
	authorizer *authz.Authorizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	iterations int
	inviteTTL  time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now for the manager and its invites.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics sink. Without it the manager counts into
// a registry nobody serves.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithKDFIterations sets the PBKDF2 iteration count for member keys.
func WithKDFIterations(n int) Option {
	return func(m *Manager) { m.iterations = n }
}

// WithInviteTTL sets the lifetime of invites created without one.
func WithInviteTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.inviteTTL = ttl }
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:      store,
		logger:     slog.Default(),
		now:        time.Now,
		iterations: crypt.DefaultIterations,
		inviteTTL:  invite.DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}

	authorizer, err := authz.New()
	if err != nil {
		return nil, err
	}
	m.authorizer = authorizer

	wrapper := keywrap.Wrapper{Iterations: m.iterations}
	m.keys = keystore.New(store, wrapper)
	m.invites = invite.NewService(store, wrapper,
		invite.WithClock(m.now),
		invite.WithLogger(m.logger),
	)
	return m, nil
}

// Create makes a new household owned by owner, generates its content key
// and opens a session on it.
func (m *Manager) Create(ctx context.Context, owner models.Principal, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if owner.ID == "" || owner.Credential == "" {
		return nil, fmt.Errorf("%w: owner identity and credential are required", ErrInvalidArgument)
	}

	key, err := crypt.NewContentKey()
	if err != nil {
		return nil, err
	}

	household := &models.Household{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   owner.ID,
		CreatedAt: m.now().Unix(),
	}
	if err := m.store.CreateHousehold(ctx, household); err != nil {
		crypt.Zero(key)
		return nil, fmt.Errorf("failed to create household: %w", err)
	}
	if err := m.keys.AddMember(ctx, household.ID, owner.ID, owner.Credential, key); err != nil {
		crypt.Zero(key)
		return nil, err
	}

	m.logger.Info("Household created", "household_id", household.ID, "owner_id", owner.ID)
	return m.newSession(household, owner, key, models.CurrentKeyVersion, "create"), nil
}

// Open obtains the household's content key for p. A member's own key
// record is tried first; without one, inviteCode (if any) is redeemed,
// which also writes p's record. Anything else is ErrAccessDenied.
//
// Invite failures are returned as the invite package reports them.
func (m *Manager) Open(ctx context.Context, p models.Principal, householdID, inviteCode string) (*Session, error) {
	if p.ID == "" || householdID == "" {
		return nil, ErrAccessDenied
	}

	via := "record"
	key, err := m.keys.Unlock(ctx, householdID, p.ID, p.Credential)
	keyVersion := models.CurrentKeyVersion
	switch {
	case err == nil:
	case errors.Is(err, keystore.ErrNoRecord) && strings.TrimSpace(inviteCode) != "":
		via = "invite"
		redemption, rerr := m.invites.Redeem(ctx, householdID, inviteCode, p)
		m.metrics.InviteRedemptions.WithLabelValues(redemptionOutcome(rerr)).Inc()
		if rerr != nil {
			return nil, rerr
		}
		key, keyVersion = redemption.ContentKey, redemption.KeyVersion
	case errors.Is(err, keystore.ErrNoRecord), errors.Is(err, keywrap.ErrAccessDenied):
		m.metrics.AccessDenied.Inc()
		m.logger.Warn("Household access denied", "household_id", householdID, "principal_id", p.ID)
		return nil, ErrAccessDenied
	default:
		return nil, err
	}

	household, err := m.store.GetHousehold(ctx, householdID)
	if err != nil {
		crypt.Zero(key)
		return nil, fmt.Errorf("failed to load household: %w", err)
	}

	m.logger.Info("Household opened", "household_id", householdID, "principal_id", p.ID, "via", via)
	return m.newSession(household, p, key, keyVersion, via), nil
}

// Status reports an invite's state without redeeming it.
func (m *Manager) Status(ctx context.Context, code string) (models.InviteState, error) {
	return m.invites.Status(ctx, code)
}

// CleanupInvites removes inert invites of a household without opening a
// session. It is meant for operators; members go through
// Session.CleanupInvites.
func (m *Manager) CleanupInvites(ctx context.Context, householdID string) (int, error) {
	return m.invites.Cleanup(ctx, householdID)
}

func (m *Manager) newSession(household *models.Household, p models.Principal, key []byte, keyVersion int, via string) *Session {
	role := authz.RoleMember
	if household.OwnerID == p.ID {
		role = authz.RoleOwner
	}
	m.metrics.SessionsOpened.WithLabelValues(via).Inc()
	m.metrics.SessionsActive.Inc()
	return &Session{
		m:          m,
		household:  *household,
		principal:  models.Principal{ID: p.ID, Email: p.Email},
		role:       role,
		key:        key,
		keyVersion: keyVersion,
	}
}

func redemptionOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, invite.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, invite.ErrExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, invite.ErrExhausted):
		return metrics.OutcomeExhausted
	case errors.Is(err, invite.ErrIdentityMismatch):
		return metrics.OutcomeIdentityMismatch
	case errors.Is(err, crypt.ErrAuthenticationFailed):
		return metrics.OutcomeTampered
	default:
		return metrics.OutcomeError
	}
}

// loadFailed records a document that did not decrypt.
func (m *Manager) loadFailed(householdID string, err error) {
	if errors.Is(err, statecodec.ErrCorruptOrTampered) {
		m.metrics.DecryptionFailures.Inc()
		m.logger.Error("Household data failed to decrypt", "household_id", householdID)
	}
}
