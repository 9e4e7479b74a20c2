// Copyright 2025 Certen Protocol
//
// Request authentication: the client signs a typed SignContent with BLS,
// producing an Auth the vault verifies against an expiry and the
// signature, per spec.md §4.6.

package storevault

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

const authSignatureDomain = "certen-store-vault-v1"

// SignContent is the payload a client signs to authenticate a Store Vault
// request.
type SignContent struct {
	Pubkey  string    `json:"pubkey"` // hex-encoded bls12.PublicKey
	Content []byte    `json:"content"`
	Expiry  time.Time `json:"expiry"`
}

func (c SignContent) message() ([]byte, error) {
	return json.Marshal(c)
}

// Auth is the signed envelope a client attaches to an authenticated
// request.
type Auth struct {
	Pubkey    string    `json:"pubkey"`
	Expiry    time.Time `json:"expiry"`
	Signature string    `json:"signature"` // hex-encoded bls12.Signature
}

var timeNow = time.Now

// Verify checks auth's signature against content and rejects an expired
// Auth, returning the signer's public key on success.
func Verify(content []byte, auth Auth) (*bls12.PublicKey, error) {
	if timeNow().After(auth.Expiry) {
		return nil, fmt.Errorf("storevault: auth expired at %s", auth.Expiry)
	}

	pub, err := bls12.PublicKeyFromHex(auth.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("storevault: parse auth pubkey: %w", err)
	}
	sig, err := bls12.SignatureFromHex(auth.Signature)
	if err != nil {
		return nil, fmt.Errorf("storevault: parse auth signature: %w", err)
	}

	sc := SignContent{Pubkey: auth.Pubkey, Content: content, Expiry: auth.Expiry}
	msg, err := sc.message()
	if err != nil {
		return nil, fmt.Errorf("storevault: encode sign content: %w", err)
	}
	if !pub.VerifyWithDomain(sig, msg, authSignatureDomain) {
		return nil, fmt.Errorf("storevault: invalid auth signature")
	}
	return pub, nil
}

// Sign produces an Auth for content, for use by test harnesses and the
// client SDK's own test suite.
func Sign(priv *bls12.PrivateKey, content []byte, expiry time.Time) (Auth, error) {
	pub := priv.PublicKey()
	sc := SignContent{Pubkey: pub.Hex(), Content: content, Expiry: expiry}
	msg, err := sc.message()
	if err != nil {
		return Auth{}, fmt.Errorf("storevault: encode sign content: %w", err)
	}
	sig := priv.SignWithDomain(msg, authSignatureDomain)
	return Auth{Pubkey: pub.Hex(), Expiry: expiry, Signature: sig.Hex()}, nil
}
