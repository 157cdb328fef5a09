package app

import (
	"errors"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"rugroulette/internal/codec"
	"rugroulette/internal/derive"
	"rugroulette/internal/state"
)

// The handlers below mutate st as they go; callers run them against a
// staged clone that is dropped whenever a handler returns an error.

func rouletteCreateRound(st *state.State, d *derive.Deriver, msg codec.CreateRoundTx) (*abci.ExecTxResult, error) {
	if msg.Authority.IsZero() {
		return nil, ErrInvalidRequest.Wrap("missing authority")
	}
	roundID, bump, err := d.Round(msg.Authority)
	if err != nil {
		return nil, ErrInvalidRequest.Wrapf("derive round: %v", err)
	}
	r := &state.Round{
		Authority: msg.Authority,
		EntryFee:  msg.EntryFee,
		Status:    state.RoundOpen,
		Bump:      bump,
	}
	if err := st.CreateRound(roundID, r); err != nil {
		return nil, ErrAlreadyExists.Wrapf("authority %s already owns round %s", msg.Authority, roundID)
	}

	return okEvent(EventTypeRoundCreated, map[string]string{
		"round":     roundID.String(),
		"authority": msg.Authority.String(),
		"entryFee":  fmt.Sprintf("%d", msg.EntryFee),
	}), nil
}

func rouletteEnterRound(st *state.State, d *derive.Deriver, msg codec.EnterRoundTx) (*abci.ExecTxResult, error) {
	if msg.Participant.IsZero() {
		return nil, ErrInvalidRequest.Wrap("missing participant")
	}
	r, err := loadRound(st, msg.Round)
	if err != nil {
		return nil, err
	}
	vaultID, err := bindVault(d, msg.Round, msg.Vault)
	if err != nil {
		return nil, err
	}
	entryID, entryBump, err := d.Entry(msg.Round, msg.Participant)
	if err != nil {
		return nil, ErrInvalidRequest.Wrapf("derive entry: %v", err)
	}
	if msg.Entry != nil && *msg.Entry != entryID {
		return nil, ErrAccountMismatch.Wrapf("entry %s is not the entry derived for (round %s, participant %s)", *msg.Entry, msg.Round, msg.Participant)
	}

	if r.Status != state.RoundOpen {
		return nil, ErrGameNotOpen.Wrapf("round %s is %s; entries are closed", msg.Round, r.Status)
	}
	if msg.Outcome >= state.NumOutcomes {
		return nil, ErrInvalidOutcomeIndex.Wrapf("outcome %d, must be in [0,%d)", msg.Outcome, state.NumOutcomes)
	}

	e := &state.Entry{
		Participant: msg.Participant,
		Round:       msg.Round,
		Outcome:     msg.Outcome,
		Bump:        entryBump,
	}
	if err := st.CreateEntry(entryID, e); err != nil {
		if errors.Is(err, state.ErrAccountExists) {
			return nil, ErrAlreadyEntered.Wrapf("participant %s already holds entry %s", msg.Participant, entryID)
		}
		return nil, err
	}
	if err := st.Transfer(msg.Participant, vaultID, r.EntryFee); err != nil {
		if errors.Is(err, state.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds.Wrapf("entry fee %d: %v", r.EntryFee, err)
		}
		return nil, ErrArithmetic.Wrapf("vault credit: %v", err)
	}

	count, err := addUint32Checked(r.ParticipantCount, 1, "participant count")
	if err != nil {
		return nil, err
	}
	outcomeCount, err := addUint32Checked(r.OutcomeCounts[msg.Outcome], 1, "outcome count")
	if err != nil {
		return nil, err
	}
	pot, err := addUint64Checked(r.Pot, r.EntryFee, "pot")
	if err != nil {
		return nil, err
	}
	r.ParticipantCount = count
	r.OutcomeCounts[msg.Outcome] = outcomeCount
	r.Pot = pot

	return okEvent(EventTypePlayerEntered, map[string]string{
		"round":       msg.Round.String(),
		"participant": msg.Participant.String(),
		"entry":       entryID.String(),
		"outcome":     fmt.Sprintf("%d", msg.Outcome),
		"pot":         fmt.Sprintf("%d", r.Pot),
	}), nil
}

func rouletteResolveRound(st *state.State, rng RandomnessSource, bc BlockContext, msg codec.ResolveRoundTx) (*abci.ExecTxResult, error) {
	r, err := loadRound(st, msg.Round)
	if err != nil {
		return nil, err
	}
	if msg.Authority != r.Authority {
		return nil, ErrUnauthorized.Wrapf("%s is not the authority of round %s", msg.Authority, msg.Round)
	}
	if r.Status != state.RoundOpen {
		return nil, ErrGameNotOpen.Wrapf("round %s is already %s", msg.Round, r.Status)
	}
	if r.ParticipantCount == 0 {
		return nil, ErrNoParticipants.Wrapf("round %s", msg.Round)
	}

	outcome, err := rng.Outcome(bc, msg.Round)
	if err != nil {
		return nil, ErrInvalidRequest.Wrapf("randomness: %v", err)
	}
	if outcome >= state.NumOutcomes {
		return nil, ErrInvalidOutcomeIndex.Wrapf("randomness source returned %d", outcome)
	}

	r.Status = state.RoundResolved
	r.ResolvedOutcome = state.SomeOutcome(outcome)

	return okEvent(EventTypeRoundResolved, map[string]string{
		"round":         msg.Round.String(),
		"outcome":       fmt.Sprintf("%d", outcome),
		"pot":           fmt.Sprintf("%d", r.Pot),
		"survivorCount": fmt.Sprintf("%d", r.SurvivorCount()),
	}), nil
}

func rouletteClaimPayout(st *state.State, d *derive.Deriver, msg codec.ClaimPayoutTx) (*abci.ExecTxResult, error) {
	if msg.Participant.IsZero() {
		return nil, ErrInvalidRequest.Wrap("missing participant")
	}
	r, err := loadRound(st, msg.Round)
	if err != nil {
		return nil, err
	}
	var entryID derive.Address
	if msg.Entry != nil {
		entryID = *msg.Entry
	} else {
		entryID, _, err = d.Entry(msg.Round, msg.Participant)
		if err != nil {
			return nil, ErrInvalidRequest.Wrapf("derive entry: %v", err)
		}
	}
	e := st.Entry(entryID)
	if e == nil {
		return nil, ErrAccountNotFound.Wrapf("entry %s", entryID)
	}
	vaultID, err := bindVault(d, msg.Round, msg.Vault)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case state.RoundResolved:
	case state.RoundOpen:
		return nil, ErrGameNotOpen.Wrapf("round %s is still open; nothing to claim until it resolves", msg.Round)
	default:
		return nil, ErrGameNotOpen.Wrapf("round %s is %s; claims are over", msg.Round, r.Status)
	}
	if e.Round != msg.Round {
		return nil, ErrAccountMismatch.Wrapf("entry %s belongs to round %s, not %s", entryID, e.Round, msg.Round)
	}
	if e.Participant != msg.Participant {
		return nil, ErrAccountMismatch.Wrapf("entry %s belongs to %s, not %s", entryID, e.Participant, msg.Participant)
	}
	if err := d.VerifyEntry(entryID, e.Bump, msg.Round, msg.Participant); err != nil {
		return nil, ErrAccountMismatch.Wrap(err.Error())
	}
	outcome := r.ResolvedOutcome.Index
	if e.Outcome != outcome {
		return nil, ErrNotASurvivor.Wrapf("entry backed outcome %d, survivor is %d", e.Outcome, outcome)
	}
	if e.Claimed {
		return nil, ErrAlreadyClaimed.Wrapf("entry %s", entryID)
	}

	share, dust, err := splitPot(r.Pot, r.SurvivorCount())
	if err != nil {
		return nil, err
	}
	if err := st.Transfer(vaultID, msg.Participant, share); err != nil {
		if errors.Is(err, state.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds.Wrapf("vault %s cannot cover share %d: %v", vaultID, share, err)
		}
		return nil, ErrArithmetic.Wrapf("payout credit: %v", err)
	}
	e.Claimed = true

	return okEvent(EventTypePayoutClaimed, map[string]string{
		"round":       msg.Round.String(),
		"participant": msg.Participant.String(),
		"amount":      fmt.Sprintf("%d", share),
		"dust":        fmt.Sprintf("%d", dust),
	}), nil
}

// rouletteCloseRound settles whatever the claims could not: the whole pot
// when nobody backed the surviving outcome, otherwise the dust. Both go back
// to the authority.
func rouletteCloseRound(st *state.State, d *derive.Deriver, msg codec.CloseRoundTx) (*abci.ExecTxResult, error) {
	r, err := loadRound(st, msg.Round)
	if err != nil {
		return nil, err
	}
	if msg.Authority != r.Authority {
		return nil, ErrUnauthorized.Wrapf("%s is not the authority of round %s", msg.Authority, msg.Round)
	}
	if err := d.VerifyRound(msg.Round, r.Bump, r.Authority); err != nil {
		return nil, ErrAccountMismatch.Wrap(err.Error())
	}
	switch r.Status {
	case state.RoundResolved:
	case state.RoundOpen:
		return nil, ErrGameNotOpen.Wrapf("round %s is still open; resolve it first", msg.Round)
	default:
		return nil, ErrGameNotOpen.Wrapf("round %s is already %s", msg.Round, r.Status)
	}

	survivors := r.SurvivorCount()
	reason := "no-survivors"
	if survivors > 0 {
		reason = "dust"
		var unclaimed uint32
		for _, e := range st.RoundEntries(msg.Round) {
			if e.Outcome == r.ResolvedOutcome.Index && !e.Claimed {
				unclaimed++
			}
		}
		if unclaimed > 0 {
			return nil, ErrClaimsOutstanding.Wrapf("%d of %d survivors have not claimed", unclaimed, survivors)
		}
	}

	vaultID, _, err := d.Vault(msg.Round)
	if err != nil {
		return nil, ErrInvalidRequest.Wrapf("derive vault: %v", err)
	}
	swept := st.Balance(vaultID)
	if err := st.Transfer(vaultID, r.Authority, swept); err != nil {
		return nil, ErrArithmetic.Wrapf("sweep credit: %v", err)
	}
	r.Status = state.RoundClosed

	return okEvent(EventTypeRoundClosed, map[string]string{
		"round":  msg.Round.String(),
		"reason": reason,
		"swept":  fmt.Sprintf("%d", swept),
	}), nil
}

func loadRound(st *state.State, roundID derive.Address) (*state.Round, error) {
	if roundID.IsZero() {
		return nil, ErrInvalidRequest.Wrap("missing round")
	}
	r := st.Round(roundID)
	if r == nil {
		return nil, ErrAccountNotFound.Wrapf("round %s", roundID)
	}
	return r, nil
}

// bindVault derives the vault of roundID and, when the client supplied one,
// checks that it is that vault.
func bindVault(d *derive.Deriver, roundID derive.Address, supplied *derive.Address) (derive.Address, error) {
	vaultID, _, err := d.Vault(roundID)
	if err != nil {
		return derive.Address{}, ErrInvalidRequest.Wrapf("derive vault: %v", err)
	}
	if supplied != nil && *supplied != vaultID {
		return derive.Address{}, ErrAccountMismatch.Wrapf("vault %s is not the vault of round %s", *supplied, roundID)
	}
	return vaultID, nil
}
