// Package account defines participant identities as base58-encoded 32-byte
// keys, the same shape used for on-chain account addresses.
package account

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// KeySize is the raw key length in bytes.
const KeySize = 32

// ErrInvalidAccount is returned for malformed or wrongly sized addresses.
var ErrInvalidAccount = errors.New("invalid account address")

// Account is a base58-encoded 32-byte key identifying a participant.
type Account string

// Parse validates s as a base58-encoded 32-byte key.
func Parse(s string) (Account, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("decode %q: %w", s, ErrInvalidAccount)
	}
	if len(raw) != KeySize {
		return "", fmt.Errorf("key is %d bytes, want %d: %w", len(raw), KeySize, ErrInvalidAccount)
	}
	return Account(s), nil
}

// FromBytes encodes a raw 32-byte key.
func FromBytes(raw []byte) (Account, error) {
	if len(raw) != KeySize {
		return "", fmt.Errorf("key is %d bytes, want %d: %w", len(raw), KeySize, ErrInvalidAccount)
	}
	return Account(base58.Encode(raw)), nil
}

// Derive deterministically maps a human-readable name onto an account key.
// Used for genesis accounts and throughout tests.
func Derive(name string) Account {
	sum := sha256.Sum256([]byte(name))
	return Account(base58.Encode(sum[:]))
}

// IsZero reports whether a is the empty account.
func (a Account) IsZero() bool {
	return a == ""
}

func (a Account) String() string {
	return string(a)
}
