package app

import (
	"sort"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventTypeBankMinted = "BankMinted"
	EventTypeBankSent   = "BankSent"

	EventTypeRoundCreated  = "RoundCreated"
	EventTypePlayerEntered = "PlayerEntered"
	EventTypeRoundResolved = "RoundResolved"
	EventTypePayoutClaimed = "PayoutClaimed"
	EventTypeRoundClosed   = "RoundClosed"
)

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
