package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/hearth/internal/storage/sqlite"
)

func setupAuthenticator(t *testing.T) *PasswordAuthenticator {
	t.Helper()

	dir, err := os.MkdirTemp("", "hearth-auth-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewPasswordAuthenticatorWithCost(store, bcrypt.MinCost)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	a := setupAuthenticator(t)
	ctx := context.Background()

	user, err := a.Register(ctx, " Alice@Example.com", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email: expected normalized address, got '%s'", user.Email)
	}

	got, err := a.Authenticate(ctx, "ALICE@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}

	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterRejections(t *testing.T) {
	a := setupAuthenticator(t)
	ctx := context.Background()

	if _, err := a.Register(ctx, "bob@example.com", "Bob", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := a.Register(ctx, "bob@example.com", "Bob", "long enough"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := a.Register(ctx, "BOB@example.com", "Bob again", "long enough"); !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	a := setupAuthenticator(t)
	ctx := context.Background()

	user, err := a.Register(ctx, "alice@example.com", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p, err := a.Verify(ctx, user.ID, "correct horse")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if p.ID != user.ID || p.Email != "alice@example.com" || p.Credential != "correct horse" {
		t.Errorf("unexpected principal: %+v", p)
	}

	if _, err := a.Verify(ctx, user.ID, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Verify(ctx, "unknown", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestJWT(t *testing.T) {
	a := setupAuthenticator(t)
	user, err := a.Register(context.Background(), "alice@example.com", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m := NewJWTManager("test-secret", time.Hour)
	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Errorf("unexpected claims: %+v", claims)
	}

	other := NewJWTManager("other-secret", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	expired := NewJWTManager("test-secret", -time.Minute)
	stale, err := expired.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := m.Validate(stale); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
