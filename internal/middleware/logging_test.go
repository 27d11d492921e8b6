package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/hearth/internal/auth"
	"github.com/mmynk/hearth/internal/models"
	"github.com/mmynk/hearth/pkg/api"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func chain(jwtManager *auth.JWTManager) connect.UnaryFunc {
	ok := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return connect.NewResponse(&api.LoadStateResponse{}), nil
	}
	return LoggingInterceptor()(RequireAuth(jwtManager)(ok))
}

func TestLoggingReportsAuthenticatedUserAndSession(t *testing.T) {
	buf := captureLogs(t)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate(&models.User{ID: "alice-id", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	req := connect.NewRequest(&api.LoadStateRequest{SessionID: "sess-1"})
	req.Header().Set("Authorization", "Bearer "+token)
	if _, err := chain(jwtManager)(context.Background(), req); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	entry := lastLine(t, buf)
	if entry["msg"] != "RPC ok" {
		t.Errorf("msg: expected RPC ok, got %v", entry["msg"])
	}
	if entry["user_id"] != "alice-id" {
		t.Errorf("user_id: expected alice-id, got %v", entry["user_id"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id: expected sess-1, got %v", entry["session_id"])
	}
}

func TestLoggingReportsRejectedCall(t *testing.T) {
	buf := captureLogs(t)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	req := connect.NewRequest(&api.OpenHouseholdRequest{HouseholdID: "acme"})
	_, err := chain(jwtManager)(context.Background(), req)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	entry := lastLine(t, buf)
	if entry["msg"] != "RPC error" || entry["code"] != "unauthenticated" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry["user_id"] != "" {
		t.Errorf("user_id: expected empty, got %v", entry["user_id"])
	}
	if entry["household_id"] != "acme" {
		t.Errorf("household_id: expected acme, got %v", entry["household_id"])
	}
}
