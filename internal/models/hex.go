package models

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HexBytes is a byte slice that serializes as a hex string.
type HexBytes []byte

// String returns the hex encoding.
func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

// MarshalJSON encodes the bytes as a JSON hex string.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON decodes a JSON hex string.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = b
	return nil
}

// Value stores the bytes as a hex TEXT column.
func (h HexBytes) Value() (driver.Value, error) {
	return hex.EncodeToString(h), nil
}

// Scan reads a hex TEXT column.
func (h *HexBytes) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*h = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into HexBytes", src)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = b
	return nil
}
