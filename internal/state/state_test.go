package state

import (
	"bytes"
	"errors"
	"testing"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"rugroulette/internal/derive"
)

func addr(b byte) derive.Address {
	var a derive.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func sampleRound() *Round {
	return &Round{
		Authority:        addr(1),
		EntryFee:         100_000_000,
		Pot:              300_000_000,
		ParticipantCount: 3,
		Status:           RoundResolved,
		ResolvedOutcome:  SomeOutcome(4),
		OutcomeCounts:    [NumOutcomes]uint32{1, 0, 0, 0, 2, 0},
		Bump:             254,
	}
}

func TestLayoutSizes(t *testing.T) {
	require.Equal(t, 88, RoundAccountSize)
	require.Equal(t, 75, EntryAccountSize)
	require.Len(t, sampleRound().MarshalBinary(), RoundAccountSize)
	require.Len(t, (&Entry{}).MarshalBinary(), EntryAccountSize)
}

func TestRoundLayout_RoundTrip(t *testing.T) {
	for _, r := range []*Round{
		sampleRound(),
		{Authority: addr(9), EntryFee: 0, Status: RoundOpen, Bump: 255},
	} {
		got, err := UnmarshalRound(r.MarshalBinary())
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
}

func TestEntryLayout_RoundTrip(t *testing.T) {
	e := &Entry{Participant: addr(2), Round: addr(3), Outcome: 5, Claimed: true, Bump: 251}
	got, err := UnmarshalEntry(e.MarshalBinary())
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestLayout_RejectsMalformed(t *testing.T) {
	rb := sampleRound().MarshalBinary()

	_, err := UnmarshalRound(rb[:len(rb)-1])
	require.Error(t, err)

	// An entry encoding never decodes as a round and vice versa.
	eb := (&Entry{Outcome: 1}).MarshalBinary()
	_, err = UnmarshalRound(append(eb, bytes.Repeat([]byte{0}, RoundAccountSize-EntryAccountSize)...))
	require.Error(t, err)
	_, err = UnmarshalEntry(rb[:EntryAccountSize])
	require.Error(t, err)

	badStatus := append([]byte(nil), rb...)
	badStatus[TypeTagBytes+32+8+8+4] = 7
	_, err = UnmarshalRound(badStatus)
	require.Error(t, err)

	badOutcome := append([]byte(nil), rb...)
	badOutcome[TypeTagBytes+32+8+8+4+1+1] = NumOutcomes
	_, err = UnmarshalRound(badOutcome)
	require.Error(t, err)

	badEntry := (&Entry{}).MarshalBinary()
	badEntry[TypeTagBytes+64] = NumOutcomes
	_, err = UnmarshalEntry(badEntry)
	require.Error(t, err)
}

func TestRound_CheckInvariants(t *testing.T) {
	require.NoError(t, sampleRound().CheckInvariants())

	r := sampleRound()
	r.OutcomeCounts[0]++
	require.Error(t, r.CheckInvariants())

	r = sampleRound()
	r.Pot++
	require.Error(t, r.CheckInvariants())

	r = sampleRound()
	r.Status = RoundOpen
	require.Error(t, r.CheckInvariants())

	r = sampleRound()
	r.ResolvedOutcome = Outcome{}
	require.Error(t, r.CheckInvariants())

	require.Equal(t, uint32(2), sampleRound().SurvivorCount())
	require.Equal(t, uint32(0), (&Round{}).SurvivorCount())
}

func TestBank_CreditDebitTransfer(t *testing.T) {
	st := NewState()
	a, b := addr(1), addr(2)

	require.NoError(t, st.Credit(a, 10))
	require.ErrorIs(t, st.Debit(a, 11), ErrInsufficientFunds)
	require.Equal(t, uint64(10), st.Balance(a))

	require.NoError(t, st.Transfer(a, b, 4))
	require.Equal(t, uint64(6), st.Balance(a))
	require.Equal(t, uint64(4), st.Balance(b))

	require.NoError(t, st.Credit(b, ^uint64(0)-4))
	err := st.Transfer(a, b, 1)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	require.Equal(t, uint64(6), st.Balance(a), "failed transfer must not debit")
}

func TestCreateEntry_InsertIfAbsent(t *testing.T) {
	st := NewState()
	e := &Entry{Participant: addr(2), Round: addr(3), Outcome: 1}

	require.NoError(t, st.CreateEntry(addr(7), e))
	err := st.CreateEntry(addr(7), &Entry{Participant: addr(2), Round: addr(3), Outcome: 4})
	require.True(t, errors.Is(err, ErrAccountExists))
	require.Equal(t, uint8(1), st.Entry(addr(7)).Outcome)

	require.NoError(t, st.CreateRound(addr(3), sampleRound()))
	require.ErrorIs(t, st.CreateRound(addr(3), sampleRound()), ErrAccountExists)
}

func TestClone_IsDeep(t *testing.T) {
	st := NewState()
	require.NoError(t, st.CreateRound(addr(3), sampleRound()))
	require.NoError(t, st.CreateEntry(addr(4), &Entry{Round: addr(3)}))
	require.NoError(t, st.Credit(addr(1), 5))

	cp := st.Clone()
	cp.Rounds[addr(3)].Pot = 0
	cp.Entries[addr(4)].Claimed = true
	cp.Accounts[addr(1)] = 0
	cp.NonceMax[addr(1)] = 9

	require.Equal(t, uint64(300_000_000), st.Rounds[addr(3)].Pot)
	require.False(t, st.Entries[addr(4)].Claimed)
	require.Equal(t, uint64(5), st.Balance(addr(1)))
	require.Empty(t, st.NonceMax)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	st := NewState()
	st.Height = 42
	st.ChainID = "roulette-test"
	require.NoError(t, st.Credit(addr(1), 1000))
	require.NoError(t, st.Credit(addr(2), 0))
	st.NonceMax[addr(1)] = 7
	require.NoError(t, st.CreateRound(addr(3), sampleRound()))
	require.NoError(t, st.CreateEntry(addr(4), &Entry{Participant: addr(1), Round: addr(3), Outcome: 4, Bump: 250}))

	store := NewStore(dbm.NewMemDB())
	require.NoError(t, store.Save(st))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, st.Height, got.Height)
	require.Equal(t, st.ChainID, got.ChainID)
	require.Equal(t, st.Accounts, got.Accounts)
	require.Equal(t, st.NonceMax, got.NonceMax)
	require.Equal(t, st.Rounds, got.Rounds)
	require.Equal(t, st.Entries, got.Entries)
	require.Equal(t, st.AppHash(), got.AppHash())
}

func TestStore_LoadEmpty(t *testing.T) {
	got, err := NewStore(dbm.NewMemDB()).Load()
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Height)
	require.Empty(t, got.Rounds)
}

func TestAppHash_Deterministic(t *testing.T) {
	build := func() *State {
		st := NewState()
		for i := byte(1); i < 20; i++ {
			_ = st.Credit(addr(i), uint64(i)*3)
		}
		_ = st.CreateRound(addr(30), sampleRound())
		return st
	}
	a, b := build(), build()
	require.Equal(t, a.AppHash(), b.AppHash())

	b.Rounds[addr(30)].OutcomeCounts[1]++
	require.NotEqual(t, a.AppHash(), b.AppHash())
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01}))
	require.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xff}))
	require.Nil(t, prefixEnd([]byte{0xff}))
}
