package codec

import (
	"encoding/json"
	"fmt"

	"rugroulette/internal/derive"
)

// Tx type routes.
const (
	TypeBankMint = "bank/mint"
	TypeBankSend = "bank/send"

	TypeCreateRound  = "roulette/create_round"
	TypeEnterRound   = "roulette/enter_round"
	TypeResolveRound = "roulette/resolve_round"
	TypeClaimPayout  = "roulette/claim_payout"
	TypeCloseRound   = "roulette/close_round"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; txs are JSON encoded. Signed txs
// carry:
// - Nonce: decimal u64, must strictly increase per signer (replay protection).
// - Signer: base58 ed25519 public key of the required signer.
// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     derive.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

type BankSendTx struct {
	From   derive.Address `json:"from"`
	To     derive.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

// ---- Roulette ----

// CreateRoundTx allocates the round owned by Authority.
type CreateRoundTx struct {
	Authority derive.Address `json:"authority"`
	EntryFee  uint64         `json:"entryFee"`
}

// EnterRoundTx stakes the entry fee on Outcome. Vault and Entry are the
// accounts the client intends to touch; when set they must match the
// identities derived from Round and Participant.
type EnterRoundTx struct {
	Participant derive.Address  `json:"participant"`
	Round       derive.Address  `json:"round"`
	Outcome     uint8           `json:"outcome"`
	Vault       *derive.Address `json:"vault,omitempty"`
	Entry       *derive.Address `json:"entry,omitempty"`
}

type ResolveRoundTx struct {
	Authority derive.Address `json:"authority"`
	Round     derive.Address `json:"round"`
}

// ClaimPayoutTx claims the caller's share. Entry defaults to the identity
// derived from (Round, Participant).
type ClaimPayoutTx struct {
	Participant derive.Address  `json:"participant"`
	Round       derive.Address  `json:"round"`
	Entry       *derive.Address `json:"entry,omitempty"`
	Vault       *derive.Address `json:"vault,omitempty"`
}

type CloseRoundTx struct {
	Authority derive.Address `json:"authority"`
	Round     derive.Address `json:"round"`
}
