package state

import (
	"encoding/json"
	"fmt"

	"rugroulette/internal/derive"
)

// NumOutcomes is the number of mutually exclusive outcomes a round offers.
const NumOutcomes = 6

type RoundStatus uint8

const (
	RoundOpen RoundStatus = iota
	RoundResolved
	RoundClosed
)

func (s RoundStatus) String() string {
	switch s {
	case RoundOpen:
		return "open"
	case RoundResolved:
		return "resolved"
	case RoundClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s RoundStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RoundStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = RoundOpen
	case "resolved":
		*s = RoundResolved
	case "closed":
		*s = RoundClosed
	default:
		return fmt.Errorf("unknown round status %q", string(b))
	}
	return nil
}

// Outcome is an optional outcome index; it is unset while a round is open.
type Outcome struct {
	Valid bool
	Index uint8
}

func SomeOutcome(i uint8) Outcome { return Outcome{Valid: true, Index: i} }

func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Index)
}

func (o *Outcome) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Outcome{}
		return nil
	}
	var i uint8
	if err := json.Unmarshal(b, &i); err != nil {
		return err
	}
	*o = SomeOutcome(i)
	return nil
}

// Round is the authoritative record of one betting round.
type Round struct {
	Authority        derive.Address      `json:"authority"`
	EntryFee         uint64              `json:"entryFee"`
	Pot              uint64              `json:"pot"`
	ParticipantCount uint32              `json:"participantCount"`
	Status           RoundStatus         `json:"status"`
	ResolvedOutcome  Outcome             `json:"resolvedOutcome"`
	OutcomeCounts    [NumOutcomes]uint32 `json:"outcomeCounts"`
	Bump             uint8               `json:"bump"`
}

// SurvivorCount is the number of entries backing the resolved outcome, or
// zero while the round is open.
func (r *Round) SurvivorCount() uint32 {
	if !r.ResolvedOutcome.Valid || r.ResolvedOutcome.Index >= NumOutcomes {
		return 0
	}
	return r.OutcomeCounts[r.ResolvedOutcome.Index]
}

// CheckInvariants verifies the counter, pot and outcome invariants of r.
func (r *Round) CheckInvariants() error {
	var sum uint64
	for _, c := range r.OutcomeCounts {
		sum += uint64(c)
	}
	if sum != uint64(r.ParticipantCount) {
		return fmt.Errorf("outcome counters sum to %d, participant count is %d", sum, r.ParticipantCount)
	}
	if r.EntryFee != 0 && uint64(r.ParticipantCount) > ^uint64(0)/r.EntryFee {
		return fmt.Errorf("entry fee * participant count overflows uint64")
	}
	if want := r.EntryFee * uint64(r.ParticipantCount); r.Pot != want {
		return fmt.Errorf("pot is %d, want entry fee * participant count = %d", r.Pot, want)
	}
	switch r.Status {
	case RoundOpen:
		if r.ResolvedOutcome.Valid {
			return fmt.Errorf("open round has a resolved outcome")
		}
	case RoundResolved, RoundClosed:
		if !r.ResolvedOutcome.Valid {
			return fmt.Errorf("%s round has no resolved outcome", r.Status)
		}
		if r.ResolvedOutcome.Index >= NumOutcomes {
			return fmt.Errorf("resolved outcome %d out of range", r.ResolvedOutcome.Index)
		}
	default:
		return fmt.Errorf("unknown status %d", r.Status)
	}
	return nil
}

// Entry records one participant's choice in one round.
type Entry struct {
	Participant derive.Address `json:"participant"`
	Round       derive.Address `json:"round"`
	Outcome     uint8          `json:"outcome"`
	Claimed     bool           `json:"claimed"`
	Bump        uint8          `json:"bump"`
}
