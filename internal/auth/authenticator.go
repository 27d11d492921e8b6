package auth

import (
	"context"

	"github.com/mmynk/hearth/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods without
// changing the service layer code.
//
// Household keys are wrapped under the member's credential, so an
// implementation must be able to re-verify that credential on every unlock
// (Verify), not only at login.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	// Returns the created user or an error if registration fails.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// Verify checks credential against an already identified user and
	// returns the principal that household keys are wrapped for.
	Verify(ctx context.Context, userID, credential string) (models.Principal, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
