package models

// Invite lets a specific identity obtain the content key without an
// existing member being online. The content key inside is wrapped under
// a key expanded from the invite code, which is never stored; the record
// is addressed by CodeHash.
type Invite struct {
	// CodeHash is the hex SHA-256 of the invite code.
	CodeHash    string `json:"-"`
	HouseholdID string `json:"householdId"`
	CreatedBy   string `json:"createdBy"`

	// TargetIdentity is lowercased on write.
	TargetIdentity        string   `json:"targetIdentity"`
	EncryptedHouseholdKey HexBytes `json:"encryptedHouseholdKey"`
	KeyIV                 HexBytes `json:"keyIv"`
	KeyVersion            int      `json:"keyVersion"`

	// ExpiresAt is in Unix milliseconds.
	ExpiresAt int64 `json:"expiresAt"`
	MaxUses   int   `json:"maxUses"`
	UsedCount int   `json:"usedCount"`

	// CreatedAt is in Unix milliseconds; it also salts the code KEK.
	CreatedAt int64 `json:"createdAt"`
}

// InviteState is the lifecycle state of an invite at a point in time.
type InviteState string

const (
	InviteActive    InviteState = "active"
	InviteExpired   InviteState = "expired"
	InviteExhausted InviteState = "exhausted"
)

// State reports the invite's state at nowMillis. Expiry wins over
// exhaustion, matching the redemption check order.
func (i *Invite) State(nowMillis int64) InviteState {
	if nowMillis >= i.ExpiresAt {
		return InviteExpired
	}
	if i.UsedCount >= i.MaxUses {
		return InviteExhausted
	}
	return InviteActive
}
