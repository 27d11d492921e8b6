package models

import (
	"encoding/json"
	"testing"
)

func TestHexBytesJSON(t *testing.T) {
	blob := EncryptedBlob{
		EncryptedData: HexBytes{0xde, 0xad, 0xbe, 0xef},
		IV:            HexBytes{0x01},
		Algorithm:     "AES-GCM",
		KeyVersion:    1,
	}

	data, err := json.Marshal(blob)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"encryptedData":"deadbeef","iv":"01","algorithm":"AES-GCM","keyVersion":1}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var got EncryptedBlob
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.EncryptedData.String() != "deadbeef" {
		t.Errorf("EncryptedData = %s, want deadbeef", got.EncryptedData)
	}
}

func TestHexBytesRejectsBadInput(t *testing.T) {
	var h HexBytes
	if err := json.Unmarshal([]byte(`"zz"`), &h); err == nil {
		t.Error("expected error for non-hex string")
	}
	if err := h.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
	if err := h.Scan([]byte("0a0b")); err != nil || len(h) != 2 {
		t.Errorf("Scan([]byte) = %v, %v", h, err)
	}
}

func TestInviteState(t *testing.T) {
	inv := &Invite{ExpiresAt: 1000, MaxUses: 1}

	tests := []struct {
		name string
		now  int64
		used int
		want InviteState
	}{
		{"fresh", 999, 0, InviteActive},
		{"at expiry", 1000, 0, InviteExpired},
		{"used up", 500, 1, InviteExhausted},
		{"expired and used", 2000, 1, InviteExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv.UsedCount = tt.used
			if got := inv.State(tt.now); got != tt.want {
				t.Errorf("State(%d) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	if got := NormalizeIdentity("  Bob@Example.COM "); got != "bob@example.com" {
		t.Errorf("NormalizeIdentity = %q", got)
	}
}
