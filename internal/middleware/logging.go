package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// callInfo is filled in by inner interceptors so the outer logging
// interceptor can report who made the call.
type callInfo struct {
	userID string
}

type callInfoKey struct{}

func setCallUser(ctx context.Context, userID string) {
	if info, ok := ctx.Value(callInfoKey{}).(*callInfo); ok {
		info.userID = userID
	}
}

// requestAttrs returns the household or session a request is scoped to.
func requestAttrs(msg any) []any {
	var attrs []any
	if r, ok := msg.(interface{ GetHouseholdID() string }); ok && r.GetHouseholdID() != "" {
		attrs = append(attrs, "household_id", r.GetHouseholdID())
	}
	if r, ok := msg.(interface{ GetSessionID() string }); ok && r.GetSessionID() != "" {
		attrs = append(attrs, "session_id", r.GetSessionID())
	}
	return attrs
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// It logs the procedure name, user ID, the household or session the call
// targets, duration, and any error codes/messages. Register it outside
// RequireAuth so rejected calls are logged too.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			info := &callInfo{userID: GetUserID(ctx)}
			ctx = context.WithValue(ctx, callInfoKey{}, info)

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"user_id", info.userID, // empty if unauthenticated
			}
			attrs = append(attrs, requestAttrs(req.Any())...)
			attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())

			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					slog.Warn("RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
				} else {
					slog.Error("RPC error", append(attrs, "error", err)...)
				}
			} else {
				slog.Info("RPC ok", attrs...)
			}

			return resp, err
		}
	}
}
