package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/hearth/internal/auth"
	"github.com/mmynk/hearth/internal/household"
	"github.com/mmynk/hearth/internal/storage/sqlite"
	"github.com/mmynk/hearth/pkg/api"
)

type testClients struct {
	auth      *api.AuthServiceClient
	household *api.HouseholdServiceClient
}

// setupTestServer creates a test server with both services behind the
// production interceptors.
func setupTestServer(t *testing.T) (*testClients, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	logger := slog.Default()
	authenticator := auth.NewPasswordAuthenticatorWithCost(store, bcrypt.MinCost)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	manager, err := household.NewManager(store, household.WithKDFIterations(1000), household.WithLogger(logger))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	registry, err := household.NewRegistry(16, time.Hour, nil)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	mux := http.NewServeMux()
	Register(mux,
		NewAuthService(authenticator, jwtManager, logger),
		NewHouseholdService(manager, registry, authenticator, logger),
		jwtManager,
	)
	server := httptest.NewServer(mux)

	clients := &testClients{
		auth:      api.NewAuthServiceClient(http.DefaultClient, server.URL),
		household: api.NewHouseholdServiceClient(http.DefaultClient, server.URL),
	}

	cleanup := func() {
		server.Close()
		registry.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	}

	return clients, cleanup
}

// register creates an account and returns its user ID and token.
func (c *testClients) register(t *testing.T, email, password string) (string, string) {
	t.Helper()
	resp, err := c.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		DisplayName: email,
		Password:    password,
	}))
	if err != nil {
		t.Fatalf("Register %s failed: %v", email, err)
	}
	return resp.Msg.User.ID, resp.Msg.Token
}

func withToken[T any](token string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func expectCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got success", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("expected %v, got %v (%v)", code, got, err)
	}
}

func TestHouseholdRequiresToken(t *testing.T) {
	clients, cleanup := setupTestServer(t)
	defer cleanup()

	_, err := clients.household.CreateHousehold(context.Background(), connect.NewRequest(&api.CreateHouseholdRequest{
		Name:     "Acme",
		Password: "alice-password",
	}))
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = clients.household.LoadState(context.Background(), withToken("garbage", &api.LoadStateRequest{SessionID: "x"}))
	expectCode(t, err, connect.CodeUnauthenticated)
}

func TestHouseholdLifecycle(t *testing.T) {
	clients, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	aliceID, token := clients.register(t, "alice@example.com", "alice-password")

	created, err := clients.household.CreateHousehold(ctx, withToken(token, &api.CreateHouseholdRequest{
		Name:     "Acme",
		Password: "alice-password",
	}))
	if err != nil {
		t.Fatalf("CreateHousehold failed: %v", err)
	}
	h := created.Msg.Household
	if h.ID == "" || h.Name != "Acme" || h.OwnerID != aliceID || h.Role != "owner" {
		t.Errorf("unexpected household: %+v", h)
	}

	empty, err := clients.household.LoadState(ctx, withToken(token, &api.LoadStateRequest{SessionID: created.Msg.SessionID}))
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if len(empty.Msg.Document) != 0 {
		t.Errorf("expected empty document, got %v", empty.Msg.Document)
	}

	_, err = clients.household.SaveState(ctx, withToken(token, &api.SaveStateRequest{
		SessionID: created.Msg.SessionID,
		Document:  map[string]any{"balance": 100},
	}))
	if err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	_, err = clients.household.CloseSession(ctx, withToken(token, &api.CloseSessionRequest{SessionID: created.Msg.SessionID}))
	if err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	_, err = clients.household.LoadState(ctx, withToken(token, &api.LoadStateRequest{SessionID: created.Msg.SessionID}))
	expectCode(t, err, connect.CodeNotFound)

	opened, err := clients.household.OpenHousehold(ctx, withToken(token, &api.OpenHouseholdRequest{
		HouseholdID: h.ID,
		Password:    "alice-password",
	}))
	if err != nil {
		t.Fatalf("OpenHousehold failed: %v", err)
	}

	loaded, err := clients.household.LoadState(ctx, withToken(token, &api.LoadStateRequest{SessionID: opened.Msg.SessionID}))
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded.Msg.Document["balance"] != float64(100) {
		t.Errorf("balance: expected 100, got %v", loaded.Msg.Document["balance"])
	}
}

func TestOpenHouseholdWrongPassword(t *testing.T) {
	clients, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	_, token := clients.register(t, "alice@example.com", "alice-password")
	created, err := clients.household.CreateHousehold(ctx, withToken(token, &api.CreateHouseholdRequest{
		Name:     "Acme",
		Password: "alice-password",
	}))
	if err != nil {
		t.Fatalf("CreateHousehold failed: %v", err)
	}

	_, err = clients.household.OpenHousehold(ctx, withToken(token, &api.OpenHouseholdRequest{
		HouseholdID: created.Msg.Household.ID,
		Password:    "not-alice-password",
	}))
	expectCode(t, err, connect.CodePermissionDenied)

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Message() != "access denied" {
		t.Errorf("expected generic access denied message, got %v", err)
	}

	// A stranger with a valid password but no key record is denied the same way.
	_, strangerToken := clients.register(t, "mallory@example.com", "mallory-password")
	_, err = clients.household.OpenHousehold(ctx, withToken(strangerToken, &api.OpenHouseholdRequest{
		HouseholdID: created.Msg.Household.ID,
		Password:    "mallory-password",
	}))
	expectCode(t, err, connect.CodePermissionDenied)
}

func TestInviteOverRPC(t *testing.T) {
	clients, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	_, aliceToken := clients.register(t, "alice@example.com", "alice-password")
	bobID, bobToken := clients.register(t, "bob@example.com", "bob-password")
	_, carolToken := clients.register(t, "carol@example.com", "carol-password")

	created, err := clients.household.CreateHousehold(ctx, withToken(aliceToken, &api.CreateHouseholdRequest{
		Name:     "Acme",
		Password: "alice-password",
	}))
	if err != nil {
		t.Fatalf("CreateHousehold failed: %v", err)
	}
	householdID := created.Msg.Household.ID
	aliceSession := created.Msg.SessionID

	_, err = clients.household.SaveState(ctx, withToken(aliceToken, &api.SaveStateRequest{
		SessionID: aliceSession,
		Document:  map[string]any{"balance": 100},
	}))
	if err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	invite, err := clients.household.CreateInvite(ctx, withToken(aliceToken, &api.CreateInviteRequest{
		SessionID:   aliceSession,
		TargetEmail: "BOB@example.com",
	}))
	if err != nil {
		t.Fatalf("CreateInvite failed: %v", err)
	}
	if len(invite.Msg.Code) != 32 {
		t.Errorf("expected 32 hex char code, got %q", invite.Msg.Code)
	}

	// Carol cannot use Bob's invite.
	_, err = clients.household.OpenHousehold(ctx, withToken(carolToken, &api.OpenHouseholdRequest{
		HouseholdID: householdID,
		Password:    "carol-password",
		InviteCode:  invite.Msg.Code,
	}))
	expectCode(t, err, connect.CodePermissionDenied)

	joined, err := clients.household.OpenHousehold(ctx, withToken(bobToken, &api.OpenHouseholdRequest{
		HouseholdID: householdID,
		Password:    "bob-password",
		InviteCode:  invite.Msg.Code,
	}))
	if err != nil {
		t.Fatalf("OpenHousehold with invite failed: %v", err)
	}
	if joined.Msg.Household.Role != "member" {
		t.Errorf("role: expected member, got %s", joined.Msg.Household.Role)
	}

	loaded, err := clients.household.LoadState(ctx, withToken(bobToken, &api.LoadStateRequest{SessionID: joined.Msg.SessionID}))
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if loaded.Msg.Document["balance"] != float64(100) {
		t.Errorf("balance: expected 100, got %v", loaded.Msg.Document["balance"])
	}

	// The invite is spent.
	_, err = clients.household.OpenHousehold(ctx, withToken(carolToken, &api.OpenHouseholdRequest{
		HouseholdID: householdID,
		Password:    "carol-password",
		InviteCode:  invite.Msg.Code,
	}))
	expectCode(t, err, connect.CodeNotFound)

	// Sessions are bound to the user they were issued to.
	_, err = clients.household.LoadState(ctx, withToken(aliceToken, &api.LoadStateRequest{SessionID: joined.Msg.SessionID}))
	expectCode(t, err, connect.CodeNotFound)

	// Members cannot remove anyone.
	_, err = clients.household.RemoveMember(ctx, withToken(bobToken, &api.RemoveMemberRequest{
		SessionID:   joined.Msg.SessionID,
		PrincipalID: bobID,
	}))
	expectCode(t, err, connect.CodePermissionDenied)

	members, err := clients.household.ListMembers(ctx, withToken(aliceToken, &api.ListMembersRequest{SessionID: aliceSession}))
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members.Msg.PrincipalIDs) != 2 {
		t.Errorf("expected 2 members, got %v", members.Msg.PrincipalIDs)
	}

	_, err = clients.household.RemoveMember(ctx, withToken(aliceToken, &api.RemoveMemberRequest{
		SessionID:   aliceSession,
		PrincipalID: bobID,
	}))
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	// Removal closes Bob's open session.
	_, err = clients.household.LoadState(ctx, withToken(bobToken, &api.LoadStateRequest{SessionID: joined.Msg.SessionID}))
	expectCode(t, err, connect.CodeNotFound)
	_, err = clients.household.CreateInvite(ctx, withToken(bobToken, &api.CreateInviteRequest{
		SessionID:   joined.Msg.SessionID,
		TargetEmail: "carol@example.com",
	}))
	expectCode(t, err, connect.CodeNotFound)

	_, err = clients.household.OpenHousehold(ctx, withToken(bobToken, &api.OpenHouseholdRequest{
		HouseholdID: householdID,
		Password:    "bob-password",
	}))
	expectCode(t, err, connect.CodePermissionDenied)
}

func TestCleanupInvitesOverRPC(t *testing.T) {
	clients, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	_, token := clients.register(t, "alice@example.com", "alice-password")
	created, err := clients.household.CreateHousehold(ctx, withToken(token, &api.CreateHouseholdRequest{
		Name:     "Acme",
		Password: "alice-password",
	}))
	if err != nil {
		t.Fatalf("CreateHousehold failed: %v", err)
	}

	_, err = clients.household.CreateInvite(ctx, withToken(token, &api.CreateInviteRequest{
		SessionID: created.Msg.SessionID,
	}))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = clients.household.CreateInvite(ctx, withToken(token, &api.CreateInviteRequest{
		SessionID:   created.Msg.SessionID,
		TargetEmail: "bob@example.com",
		TTLSeconds:  3600,
		MaxUses:     2,
	}))
	if err != nil {
		t.Fatalf("CreateInvite failed: %v", err)
	}

	resp, err := clients.household.CleanupInvites(ctx, withToken(token, &api.CleanupInvitesRequest{SessionID: created.Msg.SessionID}))
	if err != nil {
		t.Fatalf("CleanupInvites failed: %v", err)
	}
	if resp.Msg.Removed != 0 {
		t.Errorf("expected active invite to survive cleanup, removed %d", resp.Msg.Removed)
	}
}
