package invite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/keywrap"
	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/internal/storage/sqlite"
)

var wrapper = keywrap.Wrapper{Iterations: 1000}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *sqlite.SQLiteStore
	svc   *Service
	clock *clock
	key   []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := os.MkdirTemp("", "hearth-invite-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.CreateHousehold(context.Background(), &models.Household{ID: "acme", Name: "Acme", OwnerID: "owner"}))

	key, err := crypt.NewContentKey()
	require.NoError(t, err)

	c := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return &fixture{
		store: store,
		svc:   NewService(store, wrapper, WithClock(c.Now)),
		clock: c,
		key:   key,
	}
}

func (f *fixture) create(t *testing.T, target string, ttl time.Duration, maxUses int) string {
	t.Helper()
	code, err := f.svc.Create(context.Background(), CreateParams{
		HouseholdID:    "acme",
		CreatedBy:      "owner",
		ContentKey:     f.key,
		TargetIdentity: target,
		TTL:            ttl,
		MaxUses:        maxUses,
	})
	require.NoError(t, err)
	return code
}

var bob = models.Principal{ID: "bob-id", Email: "BOB@EXAMPLE.COM", Credential: "tokB"}

func TestCreateStoresOnlyWrappedKey(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "  Bob@Example.com ", 0, 0)
	assert.Len(t, code, 2*crypt.CodeSize)

	inv, err := f.store.GetInvite(context.Background(), HashCode(code))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", inv.TargetIdentity)
	assert.Equal(t, 1, inv.MaxUses)
	assert.Equal(t, 0, inv.UsedCount)
	assert.Equal(t, models.CurrentKeyVersion, inv.KeyVersion)
	assert.Equal(t, f.clock.Now().Add(DefaultTTL).UnixMilli(), inv.ExpiresAt)
	assert.NotContains(t, string(inv.EncryptedHouseholdKey), string(f.key))

	// The record alone does not open: the code is not stored anywhere.
	_, err = f.store.GetInvite(context.Background(), code)
	assert.Error(t, err)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateParams{HouseholdID: "acme", ContentKey: f.key, TargetIdentity: "  "})
	assert.ErrorIs(t, err, ErrInvalidInvite)

	_, err = f.svc.Create(ctx, CreateParams{HouseholdID: "acme", ContentKey: []byte("short"), TargetIdentity: "bob@example.com"})
	assert.ErrorIs(t, err, ErrInvalidInvite)
}

func TestRedeemScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, "bob@example.com", 7*24*time.Hour, 1)

	got, err := f.svc.Redeem(ctx, "", code, bob)
	require.NoError(t, err)
	assert.Equal(t, f.key, got.ContentKey)
	assert.Equal(t, "acme", got.HouseholdID)

	// The redeemer now has a record under their own credential.
	rec, err := f.store.GetKeyRecord(ctx, "acme", "bob-id")
	require.NoError(t, err)
	unwrapped, err := wrapper.UnwrapForPrincipal(rec, "tokB", "acme")
	require.NoError(t, err)
	assert.Equal(t, f.key, unwrapped)

	_, err = f.svc.Redeem(ctx, "", code, models.Principal{ID: "bob-id", Email: "bob@example.com", Credential: "tokB"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemExpired(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", time.Hour, 1)

	f.clock.Advance(time.Hour)
	_, err := f.svc.Redeem(context.Background(), "", code, bob)
	assert.ErrorIs(t, err, ErrExpired)

	state, err := f.svc.Status(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, state)
}

func TestRedeemIdentityMismatch(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", 0, 1)

	mallory := models.Principal{ID: "m", Email: "mallory@example.com", Credential: "tokM"}
	_, err := f.svc.Redeem(context.Background(), "", code, mallory)
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	// A rejected attempt does not consume the invite.
	_, err = f.svc.Redeem(context.Background(), "", code, bob)
	require.NoError(t, err)
}

func TestRedeemUnknownOrMalformedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, code := range []string{"", "not-hex", "abcd", "00000000000000000000000000000000"} {
		_, err := f.svc.Redeem(ctx, "", code, bob)
		assert.ErrorIs(t, err, ErrNotFound, "code %q", code)
	}
}

func TestRedeemForOtherHousehold(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", 0, 1)

	_, err := f.svc.Redeem(context.Background(), "globex", code, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Redeem(context.Background(), "acme", code, bob)
	require.NoError(t, err)
}

// rewrite replaces a stored invite after applying mutate.
func (f *fixture) rewrite(t *testing.T, code string, mutate func(*models.Invite)) {
	t.Helper()
	ctx := context.Background()
	inv, err := f.store.GetInvite(ctx, HashCode(code))
	require.NoError(t, err)
	mutate(inv)
	require.NoError(t, f.store.DeleteInvite(ctx, inv.CodeHash))
	require.NoError(t, f.store.CreateInvite(ctx, inv))
}

func TestRedeemExhausted(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", 0, 3)
	f.rewrite(t, code, func(inv *models.Invite) { inv.UsedCount = 3 })

	_, err := f.svc.Redeem(context.Background(), "", code, bob)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestRedeemCheckOrder(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", time.Hour, 1)
	f.rewrite(t, code, func(inv *models.Invite) { inv.UsedCount = 1 })
	f.clock.Advance(2 * time.Hour)

	// Expired, exhausted and mismatched all at once: expiry wins.
	_, err := f.svc.Redeem(context.Background(), "", code, models.Principal{ID: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRedeemTamperedInvite(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", 0, 1)
	f.rewrite(t, code, func(inv *models.Invite) { inv.EncryptedHouseholdKey[0] ^= 0xff })

	_, err := f.svc.Redeem(context.Background(), "", code, bob)
	assert.ErrorIs(t, err, crypt.ErrAuthenticationFailed)

	_, err = f.store.GetKeyRecord(context.Background(), "acme", "bob-id")
	assert.Error(t, err, "no key record may be written for a failed redemption")
}

func TestMultiUseInviteIsDeletedOnFirstRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, "bob@example.com", 0, 2)

	_, err := f.svc.Redeem(ctx, "", code, bob)
	require.NoError(t, err)

	_, err = f.svc.Status(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Redeem(ctx, "", code, bob)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRedeemSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	code := f.create(t, "bob@example.com", 0, 1)

	const attempts = 6
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Redeem(context.Background(), "", code, bob)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, successes)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	short := f.create(t, "a@example.com", time.Hour, 1)
	long := f.create(t, "b@example.com", 48*time.Hour, 1)
	used := f.create(t, "c@example.com", 48*time.Hour, 2)
	f.rewrite(t, used, func(inv *models.Invite) { inv.UsedCount = 2 })

	f.clock.Advance(2 * time.Hour)

	removed, err := f.svc.Cleanup(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = f.svc.Status(ctx, short)
	assert.ErrorIs(t, err, ErrNotFound)
	state, err := f.svc.Status(ctx, long)
	require.NoError(t, err)
	assert.Equal(t, models.InviteActive, state)

	removed, err = f.svc.Cleanup(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
