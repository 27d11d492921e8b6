// Package statecodec encrypts and decrypts the household document under
// the content key.
package statecodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/models"
)

var (
	// ErrCorruptOrTampered covers a blob that fails authentication, does not
	// deserialize, or names an unknown algorithm. It is unrecoverable
	// without a backup.
	ErrCorruptOrTampered = errors.New("household data is corrupt or has been tampered with")

	// ErrNotFound means the household has no document yet.
	ErrNotFound = errors.New("no household data")

	// ErrUnsupportedValue means the document holds a value that has no
	// canonical encoding.
	ErrUnsupportedValue = errors.New("document contains an unsupported value")
)

// Document is the plaintext household ledger. Values follow JSON shapes;
// numbers come back as float64 after a round trip, so integers must lie
// within ±2^53.
type Document map[string]any

var canonical = proto.MarshalOptions{Deterministic: true}

// Marshal returns the canonical byte form of doc: the deterministic
// protobuf encoding of a google.protobuf.Struct.
func Marshal(doc Document) ([]byte, error) {
	if err := checkNumbers(map[string]any(doc)); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return canonical.Marshal(s)
}

// maxExactInt is the largest magnitude a float64 holds for every integer.
const maxExactInt = 1 << 53

func exactInt(n int64) bool {
	return n >= -maxExactInt && n <= maxExactInt
}

// checkNumbers rejects integers that would not survive the float64
// number encoding unchanged.
func checkNumbers(v any) error {
	var exact bool
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			if err := checkNumbers(e); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		return nil
	case []any:
		for i, e := range v {
			if err := checkNumbers(e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case int:
		exact = exactInt(int64(v))
	case int64:
		exact = exactInt(v)
	case uint:
		exact = uint64(v) <= maxExactInt
	case uint64:
		exact = v <= maxExactInt
	case json.Number:
		if n, err := v.Int64(); err == nil {
			exact = exactInt(n)
		} else if _, err := v.Float64(); err == nil {
			// Only fractional or exponent forms reach here; integer
			// literals that overflow int64 stay inexact.
			exact = strings.ContainsAny(string(v), ".eE")
		}
	default:
		return nil
	}
	if !exact {
		return fmt.Errorf("%w: integer %v does not fit a float64 exactly", ErrUnsupportedValue, v)
	}
	return nil
}

// Unmarshal parses the canonical byte form.
func Unmarshal(data []byte) (Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return Document(s.AsMap()), nil
}

// EncryptState serializes doc and seals it under contentKey.
func EncryptState(doc Document, contentKey []byte, keyVersion int) (*models.EncryptedBlob, error) {
	if doc == nil {
		doc = Document{}
	}
	plaintext, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	defer crypt.Zero(plaintext)

	ct, iv, err := crypt.Seal(contentKey, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt state: %w", err)
	}

	return &models.EncryptedBlob{
		EncryptedData: ct,
		IV:            iv,
		Algorithm:     crypt.Algorithm,
		KeyVersion:    keyVersion,
	}, nil
}

// DecryptState opens blob and deserializes the document. A nil blob
// returns ErrNotFound so the caller can start from an empty document.
func DecryptState(blob *models.EncryptedBlob, contentKey []byte) (Document, error) {
	if blob == nil {
		return nil, ErrNotFound
	}
	if blob.Algorithm != crypt.Algorithm {
		return nil, ErrCorruptOrTampered
	}

	plaintext, err := crypt.Open(contentKey, blob.EncryptedData, blob.IV)
	if err != nil {
		return nil, ErrCorruptOrTampered
	}
	defer crypt.Zero(plaintext)

	doc, err := Unmarshal(plaintext)
	if err != nil {
		return nil, ErrCorruptOrTampered
	}
	return doc, nil
}
