package app

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"testing"

	"rugroulette/internal/codec"
)

func TestReplayProtection_AccountSigned(t *testing.T) {
	a := newTestApp(t)
	alice := testEd25519Key(t, "alice")
	bob := testEd25519Key(t, "bob")
	mintTestTokens(t, a, alice.addr, 100)

	tx := txBytesSigned(t, alice, codec.TypeBankSend, codec.BankSendTx{From: alice.addr, To: bob.addr, Amount: 1})
	mustOk(t, deliver(a, tx))

	res := deliver(a, tx)
	if res.Code == 0 {
		t.Fatalf("expected replay to be rejected")
	}
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected replay log to mention nonce, got %q", res.Log)
	}
	if got := a.st.Balance(bob.addr); got != 1 {
		t.Fatalf("replay moved funds: bob has %d", got)
	}
}

func TestReplayProtection_EnterRoundNotReplayable(t *testing.T) {
	a := newTestApp(t)
	auth := testEd25519Key(t, "authority")
	id := createTestRound(t, a, auth, 10)
	p := players(t, a, 1, 100)[0]

	tx := txBytesSigned(t, p, codec.TypeEnterRound, codec.EnterRoundTx{Participant: p.addr, Round: id, Outcome: 2})
	mustOk(t, deliver(a, tx))
	res := deliver(a, tx)
	requireErr(t, res, ErrUnauthorized)
	if !strings.Contains(res.Log, "replayed tx.nonce") {
		t.Fatalf("expected replay log to mention nonce, got %q", res.Log)
	}
}

func TestReplayProtection_RejectsNonNumericNonce(t *testing.T) {
	a := newTestApp(t)
	alice := testEd25519Key(t, "alice")

	valueBytes, err := json.Marshal(codec.CreateRoundTx{Authority: alice.addr, EntryFee: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	nonce := "not-a-number"
	signer := alice.addr.String()
	sig := ed25519.Sign(alice.priv, codec.SignBytes(codec.TypeCreateRound, valueBytes, nonce, signer))
	env := codec.TxEnvelope{
		Type:   codec.TypeCreateRound,
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: signer,
		Sig:    sig,
	}
	tx, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	res := deliver(a, tx)
	if res.Code == 0 {
		t.Fatalf("expected non-numeric nonce to be rejected")
	}
	if !strings.Contains(res.Log, "invalid tx.nonce") {
		t.Fatalf("expected log to mention invalid tx.nonce, got %q", res.Log)
	}
}

func TestAuth_TamperedValueRejected(t *testing.T) {
	a := newTestApp(t)
	alice := testEd25519Key(t, "alice")

	tx := txBytesSigned(t, alice, codec.TypeCreateRound, codec.CreateRoundTx{Authority: alice.addr, EntryFee: 1})
	env, err := codec.DecodeTxEnvelope(tx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	env.Value, err = json.Marshal(codec.CreateRoundTx{Authority: alice.addr, EntryFee: 1000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tampered, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	res := deliver(a, tampered)
	requireErr(t, res, ErrUnauthorized)
	if !strings.Contains(res.Log, "invalid signature") {
		t.Fatalf("expected invalid signature, got %q", res.Log)
	}
	if len(a.st.Rounds) != 0 {
		t.Fatalf("tampered tx created a round")
	}
}

func TestAuth_DerivedAccountCannotSign(t *testing.T) {
	a := newTestApp(t)
	auth := testEd25519Key(t, "authority")
	id := createTestRound(t, a, auth, 10)
	vault, _, err := a.deriver.Vault(id)
	if err != nil {
		t.Fatalf("derive vault: %v", err)
	}

	// Whatever the signature, a vault identity has no key behind it.
	valueBytes, err := json.Marshal(codec.BankSendTx{From: vault, To: auth.addr, Amount: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tx, err := json.Marshal(codec.TxEnvelope{
		Type:   codec.TypeBankSend,
		Value:  valueBytes,
		Nonce:  "1",
		Signer: vault.String(),
		Sig:    make([]byte, ed25519.SignatureSize),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res := deliver(a, tx)
	requireErr(t, res, ErrUnauthorized)
	if !strings.Contains(res.Log, "not a key account") {
		t.Fatalf("expected derived-signer rejection, got %q", res.Log)
	}
}
