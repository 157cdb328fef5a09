package app

import (
	"encoding/binary"
	"time"

	"rugroulette/internal/derive"
	"rugroulette/internal/state"
)

// BlockContext is the ambient chain state visible while a block executes.
type BlockContext struct {
	ChainID string
	Height  int64
	Time    time.Time
	Hash    []byte
}

// RandomnessSource picks the surviving outcome of a round. Implementations
// must return an index in [0, state.NumOutcomes).
type RandomnessSource interface {
	Outcome(bc BlockContext, round derive.Address) (uint8, error)
}

// BlockEntropy mixes the block hash, height, block time and round identity
// and reduces modulo the outcome count.
//
// Security note: every input is known to the block proposer and visible to
// observers before the resolve tx lands, so the outcome is predictable and
// biasable by the authority or a well-positioned validator. Production must
// replace this with a VRF beacon or a commit-reveal scheme.
type BlockEntropy struct{}

func (BlockEntropy) Outcome(bc BlockContext, round derive.Address) (uint8, error) {
	var mix uint64
	if len(bc.Hash) >= 8 {
		mix = binary.LittleEndian.Uint64(bc.Hash[:8])
	}
	mix ^= binary.LittleEndian.Uint64(round[:8])
	mix += uint64(bc.Height)
	mix += uint64(bc.Time.Unix())
	return uint8(mix % state.NumOutcomes), nil
}
