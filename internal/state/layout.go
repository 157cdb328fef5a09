package state

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"rugroulette/internal/derive"
)

const (
	TypeTagBytes = 8

	// RoundAccountSize is the fixed on-ledger size of a Round Account:
	// tag 8 | authority 32 | fee 8 | pot 8 | count 4 | status 1 |
	// resolved outcome 2 | counters 24 | bump 1.
	RoundAccountSize = TypeTagBytes + 32 + 8 + 8 + 4 + 1 + 2 + 4*NumOutcomes + 1

	// EntryAccountSize is the fixed on-ledger size of an Entry Record:
	// tag 8 | participant 32 | round 32 | outcome 1 | claimed 1 | bump 1.
	EntryAccountSize = TypeTagBytes + 32 + 32 + 1 + 1 + 1
)

var (
	roundTypeTag = typeTag("Round")
	entryTypeTag = typeTag("Entry")
)

func typeTag(name string) [TypeTagBytes]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [TypeTagBytes]byte
	copy(out[:], sum[:TypeTagBytes])
	return out
}

// MarshalBinary encodes r in the fixed little-endian account layout.
func (r *Round) MarshalBinary() []byte {
	b := make([]byte, 0, RoundAccountSize)
	b = append(b, roundTypeTag[:]...)
	b = append(b, r.Authority[:]...)
	b = binary.LittleEndian.AppendUint64(b, r.EntryFee)
	b = binary.LittleEndian.AppendUint64(b, r.Pot)
	b = binary.LittleEndian.AppendUint32(b, r.ParticipantCount)
	b = append(b, byte(r.Status))
	if r.ResolvedOutcome.Valid {
		b = append(b, 1, r.ResolvedOutcome.Index)
	} else {
		b = append(b, 0, 0)
	}
	for _, c := range r.OutcomeCounts {
		b = binary.LittleEndian.AppendUint32(b, c)
	}
	b = append(b, r.Bump)
	return b
}

func UnmarshalRound(b []byte) (*Round, error) {
	if len(b) != RoundAccountSize {
		return nil, fmt.Errorf("round account: got %d bytes, want %d", len(b), RoundAccountSize)
	}
	if [TypeTagBytes]byte(b[:TypeTagBytes]) != roundTypeTag {
		return nil, fmt.Errorf("round account: type tag mismatch")
	}
	off := TypeTagBytes
	r := &Round{}
	copy(r.Authority[:], b[off:off+32])
	off += 32
	r.EntryFee = binary.LittleEndian.Uint64(b[off:])
	off += 8
	r.Pot = binary.LittleEndian.Uint64(b[off:])
	off += 8
	r.ParticipantCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	r.Status = RoundStatus(b[off])
	off++
	if r.Status > RoundClosed {
		return nil, fmt.Errorf("round account: unknown status %d", r.Status)
	}
	switch b[off] {
	case 0:
	case 1:
		if b[off+1] >= NumOutcomes {
			return nil, fmt.Errorf("round account: resolved outcome %d out of range", b[off+1])
		}
		r.ResolvedOutcome = SomeOutcome(b[off+1])
	default:
		return nil, fmt.Errorf("round account: invalid outcome presence byte %d", b[off])
	}
	off += 2
	for i := range r.OutcomeCounts {
		r.OutcomeCounts[i] = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}
	r.Bump = b[off]
	return r, nil
}

// MarshalBinary encodes e in the fixed account layout.
func (e *Entry) MarshalBinary() []byte {
	b := make([]byte, 0, EntryAccountSize)
	b = append(b, entryTypeTag[:]...)
	b = append(b, e.Participant[:]...)
	b = append(b, e.Round[:]...)
	b = append(b, e.Outcome)
	if e.Claimed {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = append(b, e.Bump)
	return b
}

func UnmarshalEntry(b []byte) (*Entry, error) {
	if len(b) != EntryAccountSize {
		return nil, fmt.Errorf("entry account: got %d bytes, want %d", len(b), EntryAccountSize)
	}
	if [TypeTagBytes]byte(b[:TypeTagBytes]) != entryTypeTag {
		return nil, fmt.Errorf("entry account: type tag mismatch")
	}
	off := TypeTagBytes
	e := &Entry{}
	copy(e.Participant[:], b[off:off+32])
	off += 32
	copy(e.Round[:], b[off:off+32])
	off += 32
	e.Outcome = b[off]
	if e.Outcome >= NumOutcomes {
		return nil, fmt.Errorf("entry account: outcome %d out of range", e.Outcome)
	}
	switch b[off+1] {
	case 0:
	case 1:
		e.Claimed = true
	default:
		return nil, fmt.Errorf("entry account: invalid claimed byte %d", b[off+1])
	}
	e.Bump = b[off+2]
	return e, nil
}

// ---- Store keys ----

var (
	HeightKey  = []byte{0x00, 'h'}
	ChainIDKey = []byte{0x00, 'c'}

	// BalancePrefix || address -> u64be balance.
	BalancePrefix = []byte{0x01}
	// RoundPrefix || round address -> Round account layout.
	RoundPrefix = []byte{0x02}
	// EntryPrefix || entry address -> Entry account layout.
	EntryPrefix = []byte{0x03}
	// NoncePrefix || signer -> u64be last accepted nonce.
	NoncePrefix = []byte{0x04}
)

func prefixed(prefix []byte, addr derive.Address) []byte {
	out := make([]byte, 0, len(prefix)+derive.AddressBytes)
	out = append(out, prefix...)
	return append(out, addr[:]...)
}

func u64be(x uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, x)
	return b
}

func u32be(x uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, x)
	return b
}
