// Package identity defines participant identities as 32-byte public keys with a base58 text form.
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLength is the raw byte length of a public key.
const PubkeyLength = 32

// ErrInvalidPubkey is returned when a textual key cannot be decoded.
var ErrInvalidPubkey = errors.New("identity: invalid pubkey")

// Pubkey identifies a trader, staker, or vault account.
type Pubkey [PubkeyLength]byte

// Parse decodes a base58 public key.
func Parse(s string) (Pubkey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pubkey{}, fmt.Errorf("%w: empty string", ErrInvalidPubkey)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(raw) != PubkeyLength {
		return Pubkey{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPubkey, PubkeyLength, len(raw))
	}

	var pk Pubkey
	copy(pk[:], raw)
	return pk, nil
}

// ParseWallet decodes a key and requires it to be a point on the ed25519 curve,
// i.e. a key that can sign. Program-derived addresses are rejected.
func ParseWallet(s string) (Pubkey, error) {
	pk, err := Parse(s)
	if err != nil {
		return Pubkey{}, err
	}
	if !pk.IsOnCurve() {
		return Pubkey{}, fmt.Errorf("%w: %s is not an ed25519 wallet key", ErrInvalidPubkey, pk)
	}
	return pk, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Pubkey {
	pk, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 encoding.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Short returns an abbreviated form for tables and chat messages.
func (p Pubkey) Short() string {
	s := p.String()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// IsOnCurve reports whether p decodes to a valid ed25519 point.
func (p Pubkey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// Compare orders keys by raw bytes.
func (p Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(p[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
