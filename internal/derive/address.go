package derive

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressBytes is the size of every account identity on the ledger.
const AddressBytes = 32

// Address is a 32-byte account identity. Participant and authority
// identities are ed25519 public keys; round, vault and entry identities are
// derived off-curve addresses.
type Address [AddressBytes]byte

// ZeroAddress is the all-zero identity; it is never a valid derived address.
var ZeroAddress Address

func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressBytes {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressBytes, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes the base58 text form of an address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58 address %q: %w", s, err)
	}
	return AddressFromBytes(b)
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
