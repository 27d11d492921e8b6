package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/hearth/internal/auth"
	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/household"
	"github.com/mmynk/hearth/internal/invite"
	"github.com/mmynk/hearth/internal/statecodec"
)

var (
	// errAccessDenied is the single message for every credential or key
	// failure, so callers cannot tell a wrong password from a tampered
	// record.
	errAccessDenied = errors.New("access denied")
	errInternal     = errors.New("internal error")
)

// toConnectError maps domain errors to connect codes. Unknown errors
// become CodeInternal without their text.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, household.ErrAccessDenied),
		errors.Is(err, crypt.ErrAuthenticationFailed),
		errors.Is(err, auth.ErrInvalidCredentials):
		return connect.NewError(connect.CodePermissionDenied, errAccessDenied)
	case errors.Is(err, invite.ErrIdentityMismatch):
		return connect.NewError(connect.CodePermissionDenied, invite.ErrIdentityMismatch)
	case errors.Is(err, household.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, household.ErrForbidden)
	case errors.Is(err, statecodec.ErrCorruptOrTampered):
		return connect.NewError(connect.CodeDataLoss, statecodec.ErrCorruptOrTampered)
	case errors.Is(err, invite.ErrNotFound),
		errors.Is(err, household.ErrNotMember),
		errors.Is(err, household.ErrUnknownSession):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, invite.ErrExpired),
		errors.Is(err, invite.ErrExhausted),
		errors.Is(err, household.ErrOwnerIrremovable),
		errors.Is(err, household.ErrSessionClosed):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, household.ErrInvalidArgument),
		errors.Is(err, invite.ErrInvalidInvite),
		errors.Is(err, statecodec.ErrUnsupportedValue):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}
