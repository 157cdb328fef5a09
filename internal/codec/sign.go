package codec

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"

	"rugroulette/internal/derive"
)

const txAuthDomainV1 = "rugroulette/tx/v1"

// SignBytes returns the message an envelope signature covers:
// DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value).
func SignBytes(typ string, value []byte, nonce string, signer string) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV1)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV1)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

// SignerAddress returns the identity of an ed25519 key.
func SignerAddress(pub ed25519.PublicKey) (derive.Address, error) {
	return derive.AddressFromBytes(pub)
}

// EncodeSignedTx marshals value, signs it with priv and returns the JSON tx.
func EncodeSignedTx(priv ed25519.PrivateKey, typ string, value any, nonce uint64) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode tx value: %w", err)
	}
	signer, err := SignerAddress(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	env := TxEnvelope{
		Type:   typ,
		Value:  raw,
		Nonce:  strconv.FormatUint(nonce, 10),
		Signer: signer.String(),
	}
	env.Sig = ed25519.Sign(priv, SignBytes(env.Type, env.Value, env.Nonce, env.Signer))
	return json.Marshal(env)
}

// EncodeTx marshals an unsigned tx.
func EncodeTx(typ string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode tx value: %w", err)
	}
	return json.Marshal(TxEnvelope{Type: typ, Value: raw})
}
