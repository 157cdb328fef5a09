package derive

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	lru "github.com/hashicorp/golang-lru"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	// Keep this marker stable; it is part of every derived identity.
	derivedAddressMarker = "ProgramDerivedAddress"

	SeedRound = "round"
	SeedVault = "vault"
	SeedEntry = "entry"

	defaultCacheSize = 4096
)

// DefaultProgramID is the engine identity mixed into every derivation.
var DefaultProgramID = MustParseAddress("RUGRou1ette11111111111111111111111111111111")

var (
	ErrMaxSeedLength   = errors.New("derive: seed exceeds max length")
	ErrOnCurve         = errors.New("derive: address lies on the ed25519 curve")
	ErrNoViableBump    = errors.New("derive: no viable bump found")
	ErrAddressMismatch = errors.New("derive: address does not match seeds")
)

// CreateAddress hashes seeds, the bump and the program identity into a
// candidate identity. Candidates that decode as ed25519 points are rejected
// so that no private key can ever sign for a derived account.
func CreateAddress(seeds [][]byte, bump uint8, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, fmt.Errorf("%w: %d seeds (max %d)", ErrMaxSeedLength, len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return Address{}, fmt.Errorf("%w: seed %d has %d bytes (max %d)", ErrMaxSeedLength, i, len(s), MaxSeedLength)
		}
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write([]byte(derivedAddressMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out) {
		return Address{}, ErrOnCurve
	}
	return out, nil
}

// FindAddress searches bumps from 255 down and returns the first off-curve
// identity together with its bump.
func FindAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateAddress(seeds, uint8(bump), program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether a decodes as a compressed ed25519 point.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

type derivation struct {
	addr Address
	bump uint8
}

// Deriver binds derivations to one program identity and memoizes the bump
// search.
type Deriver struct {
	program Address
	cache   *lru.Cache
}

func NewDeriver(program Address) *Deriver {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("derive: lru cache: %v", err))
	}
	return &Deriver{program: program, cache: cache}
}

func (d *Deriver) Program() Address {
	return d.program
}

func (d *Deriver) find(seeds ...[]byte) (Address, uint8, error) {
	key := cacheKey(seeds)
	if v, ok := d.cache.Get(key); ok {
		hit := v.(derivation)
		return hit.addr, hit.bump, nil
	}
	addr, bump, err := FindAddress(seeds, d.program)
	if err != nil {
		return Address{}, 0, err
	}
	d.cache.Add(key, derivation{addr: addr, bump: bump})
	return addr, bump, nil
}

func cacheKey(seeds [][]byte) string {
	buf := make([]byte, 0, 64)
	for _, s := range seeds {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return string(buf)
}

// Round derives the round identity owned by authority.
func (d *Deriver) Round(authority Address) (Address, uint8, error) {
	return d.find([]byte(SeedRound), authority[:])
}

// Vault derives the custody vault of a round.
func (d *Deriver) Vault(round Address) (Address, uint8, error) {
	return d.find([]byte(SeedVault), round[:])
}

// Entry derives the entry record of participant in round.
func (d *Deriver) Entry(round, participant Address) (Address, uint8, error) {
	return d.find([]byte(SeedEntry), round[:], participant[:])
}

// Verify re-creates the identity from seeds and a stored bump and checks it
// against the supplied account.
func (d *Deriver) Verify(supplied Address, bump uint8, seeds ...[]byte) error {
	want, err := CreateAddress(seeds, bump, d.program)
	if err != nil {
		return err
	}
	if want != supplied {
		return fmt.Errorf("%w: supplied=%s derived=%s", ErrAddressMismatch, supplied, want)
	}
	return nil
}

func (d *Deriver) VerifyRound(supplied Address, bump uint8, authority Address) error {
	return d.Verify(supplied, bump, []byte(SeedRound), authority[:])
}

func (d *Deriver) VerifyEntry(supplied Address, bump uint8, round, participant Address) error {
	return d.Verify(supplied, bump, []byte(SeedEntry), round[:], participant[:])
}
