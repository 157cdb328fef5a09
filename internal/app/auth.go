package app

import (
	"crypto/ed25519"
	"strconv"

	"rugroulette/internal/codec"
	"rugroulette/internal/derive"
	"rugroulette/internal/state"
)

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return ErrUnauthorized.Wrap("missing tx.nonce")
	}
	if env.Signer == "" {
		return ErrUnauthorized.Wrap("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return ErrUnauthorized.Wrap("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return ErrUnauthorized.Wrapf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// verifyEnvelopeSignature checks the signature against the public key that
// the signer identity encodes. It needs no state and is safe in CheckTx.
func verifyEnvelopeSignature(env codec.TxEnvelope) (derive.Address, error) {
	if err := requireSignedEnvelope(env); err != nil {
		return derive.Address{}, err
	}
	signer, err := derive.ParseAddress(env.Signer)
	if err != nil {
		return derive.Address{}, ErrUnauthorized.Wrapf("invalid tx.signer: %v", err)
	}
	// Derived accounts have no key; nobody may sign as a round, vault or entry.
	if !derive.IsOnCurve(signer) {
		return derive.Address{}, ErrUnauthorized.Wrapf("signer %s is not a key account", signer)
	}
	msg := codec.SignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(signer[:]), msg, env.Sig) {
		return derive.Address{}, ErrUnauthorized.Wrap("invalid signature")
	}
	return signer, nil
}

// requireAccountAuth verifies that account signed env and consumes the
// envelope nonce.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account derive.Address) error {
	if account.IsZero() {
		return ErrInvalidRequest.Wrap("missing account")
	}
	signer, err := verifyEnvelopeSignature(env)
	if err != nil {
		return err
	}
	if signer != account {
		return ErrUnauthorized.Wrapf("tx signer mismatch: signer=%s want=%s", signer, account)
	}
	nonce, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return ErrInvalidRequest.Wrapf("invalid tx.nonce %q: must be a decimal u64", env.Nonce)
	}
	if nonce <= st.NonceMax[signer] {
		return ErrUnauthorized.Wrapf("replayed tx.nonce: got %d, last accepted %d", nonce, st.NonceMax[signer])
	}
	st.NonceMax[signer] = nonce
	return nil
}
