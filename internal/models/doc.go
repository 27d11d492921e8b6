// Package models defines the records the household vault persists.
//
// # Records
//
//   - Household: a shared ledger and its owner
//   - User: a registered account known to the auth provider
//   - WrappedKeyRecord: the household content key wrapped for one member
//   - EncryptedBlob: the household document, encrypted under the content key
//   - Invite: a time-boxed, identity-bound grant carrying a wrapped content key
//
// # Design Principles
//
//  1. **Nothing secret in the clear**: every record here is safe to hand to
//     the storage backend. Plaintext keys and documents live only in an open
//     household session.
//  2. **Byte fields are hex on the wire**: encrypted fields are []byte in Go
//     and hex strings when serialized, matching the stored record layout.
//  3. **Avoid circular references**: use ID strings instead of pointers for
//     relationships.
package models
