package state

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	"rugroulette/internal/derive"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrAccountExists     = errors.New("account already in use")
)

type State struct {
	Height  int64  `json:"height"`
	ChainID string `json:"chainId,omitempty"`

	Accounts map[derive.Address]uint64 `json:"accounts"`
	NonceMax map[derive.Address]uint64 `json:"nonceMax,omitempty"` // signer -> last accepted tx.nonce, for replay protection

	Rounds  map[derive.Address]*Round `json:"rounds"`
	Entries map[derive.Address]*Entry `json:"entries"`
}

func NewState() *State {
	return &State{
		Accounts: map[derive.Address]uint64{},
		NonceMax: map[derive.Address]uint64{},
		Rounds:   map[derive.Address]*Round{},
		Entries:  map[derive.Address]*Entry{},
	}
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() *State {
	out := &State{
		Height:   s.Height,
		ChainID:  s.ChainID,
		Accounts: make(map[derive.Address]uint64, len(s.Accounts)),
		NonceMax: make(map[derive.Address]uint64, len(s.NonceMax)),
		Rounds:   make(map[derive.Address]*Round, len(s.Rounds)),
		Entries:  make(map[derive.Address]*Entry, len(s.Entries)),
	}
	for k, v := range s.Accounts {
		out.Accounts[k] = v
	}
	for k, v := range s.NonceMax {
		out.NonceMax[k] = v
	}
	for k, r := range s.Rounds {
		cp := *r
		out.Rounds[k] = &cp
	}
	for k, e := range s.Entries {
		cp := *e
		out.Entries[k] = &cp
	}
	return out
}

// AppHash hashes the same sorted key/value view that Save persists, so two
// nodes with equal stores always agree on the hash.
func (s *State) AppHash() []byte {
	h := sha256.New()
	for _, kv := range s.kvs() {
		h.Write(u32be(uint32(len(kv.key))))
		h.Write(kv.key)
		h.Write(u32be(uint32(len(kv.value))))
		h.Write(kv.value)
	}
	return h.Sum(nil)
}

type kvPair struct {
	key   []byte
	value []byte
}

func (s *State) kvs() []kvPair {
	out := make([]kvPair, 0, 2+len(s.Accounts)+len(s.NonceMax)+len(s.Rounds)+len(s.Entries))
	out = append(out,
		kvPair{key: HeightKey, value: u64be(uint64(s.Height))},
		kvPair{key: ChainIDKey, value: []byte(s.ChainID)},
	)
	for addr, bal := range s.Accounts {
		out = append(out, kvPair{key: prefixed(BalancePrefix, addr), value: u64be(bal)})
	}
	for addr, n := range s.NonceMax {
		out = append(out, kvPair{key: prefixed(NoncePrefix, addr), value: u64be(n)})
	}
	for addr, r := range s.Rounds {
		out = append(out, kvPair{key: prefixed(RoundPrefix, addr), value: r.MarshalBinary()})
	}
	for addr, e := range s.Entries {
		out = append(out, kvPair{key: prefixed(EntryPrefix, addr), value: e.MarshalBinary()})
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].key) < string(out[j].key) })
	return out
}

// ---- Bank ----

func (s *State) Balance(addr derive.Address) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr derive.Address, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("%w: have=%d add=%d", ErrBalanceOverflow, bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr derive.Address, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("%w: have=%d need=%d", ErrInsufficientFunds, bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// Transfer moves amount between two bank accounts. The debit is only
// applied when the credit cannot overflow.
func (s *State) Transfer(from, to derive.Address, amount uint64) error {
	if from == to {
		if s.Accounts[from] < amount {
			return fmt.Errorf("%w: have=%d need=%d", ErrInsufficientFunds, s.Accounts[from], amount)
		}
		return nil
	}
	if bal := s.Accounts[to]; bal > ^uint64(0)-amount {
		return fmt.Errorf("%w: have=%d add=%d", ErrBalanceOverflow, bal, amount)
	}
	if err := s.Debit(from, amount); err != nil {
		return err
	}
	return s.Credit(to, amount)
}

// ---- Accounts ----

func (s *State) Round(addr derive.Address) *Round {
	return s.Rounds[addr]
}

func (s *State) Entry(addr derive.Address) *Entry {
	return s.Entries[addr]
}

// CreateRound allocates r at addr. Allocation is insert-if-absent.
func (s *State) CreateRound(addr derive.Address, r *Round) error {
	if _, ok := s.Rounds[addr]; ok {
		return fmt.Errorf("%w: round %s", ErrAccountExists, addr)
	}
	s.Rounds[addr] = r
	return nil
}

// CreateEntry allocates e at addr. A second entry for the same derived
// identity fails here, which is what rejects double entry.
func (s *State) CreateEntry(addr derive.Address, e *Entry) error {
	if _, ok := s.Entries[addr]; ok {
		return fmt.Errorf("%w: entry %s", ErrAccountExists, addr)
	}
	s.Entries[addr] = e
	return nil
}

// RoundEntries returns the entries recorded for round, ordered by
// participant.
func (s *State) RoundEntries(round derive.Address) []*Entry {
	out := []*Entry{}
	for _, e := range s.Entries {
		if e.Round == round {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Participant.Compare(out[j].Participant) < 0 })
	return out
}

// SortedRoundIDs returns allocated round identities in byte order.
func (s *State) SortedRoundIDs() []derive.Address {
	ids := make([]derive.Address, 0, len(s.Rounds))
	for id := range s.Rounds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}
