package app

import (
	"errors"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"rugroulette/internal/codec"
	"rugroulette/internal/derive"
	"rugroulette/internal/state"
)

// bankMint is the devnet faucet. It is unsigned and only routed when the app
// runs with the faucet enabled.
//
// Neither bank tx pays into an off-curve address. Derived accounts, the
// vaults of rounds that do not exist yet included, only take funds through
// enter_round, which keeps every vault balance equal to its round's unpaid
// pot.
func bankMint(st *state.State, msg codec.BankMintTx) (*abci.ExecTxResult, error) {
	if msg.To.IsZero() || msg.Amount == 0 {
		return nil, ErrInvalidRequest.Wrap("missing to/amount")
	}
	if !derive.IsOnCurve(msg.To) {
		return nil, ErrUnauthorized.Wrapf("%s is a derived account", msg.To)
	}
	if err := st.Credit(msg.To, msg.Amount); err != nil {
		return nil, ErrArithmetic.Wrap(err.Error())
	}
	return okEvent(EventTypeBankMinted, map[string]string{
		"to":     msg.To.String(),
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func bankSend(st *state.State, msg codec.BankSendTx) (*abci.ExecTxResult, error) {
	if msg.From.IsZero() || msg.To.IsZero() || msg.Amount == 0 {
		return nil, ErrInvalidRequest.Wrap("missing from/to/amount")
	}
	if !derive.IsOnCurve(msg.To) {
		return nil, ErrUnauthorized.Wrapf("%s is a derived account", msg.To)
	}
	if err := st.Transfer(msg.From, msg.To, msg.Amount); err != nil {
		if errors.Is(err, state.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds.Wrap(err.Error())
		}
		return nil, ErrArithmetic.Wrap(err.Error())
	}
	return okEvent(EventTypeBankSent, map[string]string{
		"from":   msg.From.String(),
		"to":     msg.To.String(),
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}
