package models

// CurrentKeyVersion is stamped on every wrapped key and blob. Content keys
// are never rotated, so it only changes if a rotation scheme is added.
const CurrentKeyVersion = 1

// WrappedKeyRecord is the household content key encrypted under one
// member's KEK. Keyed by (HouseholdID, PrincipalID).
type WrappedKeyRecord struct {
	HouseholdID  string   `json:"-"`
	PrincipalID  string   `json:"-"`
	EncryptedKey HexBytes `json:"encryptedKey"`
	IV           HexBytes `json:"iv"`
	KeyVersion   int      `json:"keyVersion"`

	// CreatedAt is a Unix timestamp.
	CreatedAt int64 `json:"createdAt"`
}

// EncryptedBlob is the encrypted household document. One per household,
// overwritten on every save.
type EncryptedBlob struct {
	HouseholdID   string   `json:"-"`
	EncryptedData HexBytes `json:"encryptedData"`
	IV            HexBytes `json:"iv"`
	Algorithm     string   `json:"algorithm"`
	KeyVersion    int      `json:"keyVersion"`
}
