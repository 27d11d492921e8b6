package models

// Principal is an authenticated identity as handed over by the auth
// provider. Credential is the live secret KEKs are derived from; it is
// never persisted.
type Principal struct {
	ID         string
	Email      string
	Credential string `json:"-"`
}
