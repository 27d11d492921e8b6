package models

// Household is a group of members sharing one encrypted ledger.
type Household struct {
	// ID is the unique identifier for the household (UUID format).
	ID string

	// Name is the display name of the household (e.g., "Flat 4B").
	Name string

	// OwnerID is the user who created the household. Only the owner may
	// remove members or clean up invites.
	OwnerID string

	// CreatedAt is the Unix timestamp when the household was created.
	CreatedAt int64
}
