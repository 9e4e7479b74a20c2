// Copyright 2025 Certen Protocol
//
// Key derivation from an Ethereum signature: lets a user back one L2
// account with a single Ethereum wallet instead of managing a separate BLS
// key, by deriving a deterministic seed from an eth_sign-style signature
// over a fixed message. Client-side convenience only - never used
// server-side, since the derivation requires the user's own wallet to
// produce the signature.

package keyderiv

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

// DerivationMessage is the fixed message an Ethereum wallet signs to
// derive an L2 key. Deterministic: the same Ethereum key always produces
// the same derived BLS key pair.
const DerivationMessage = "INTMAX Account Derivation v1"

// SigningHash returns the go-ethereum personal-message digest of
// DerivationMessage, the payload an Ethereum wallet's eth_sign actually
// signs over (EIP-191 prefixed).
func SigningHash() []byte {
	return personalMessageHash([]byte(DerivationMessage))
}

// personalMessageHash reproduces go-ethereum's accounts.TextHash without
// importing the accounts package solely for this one helper.
func personalMessageHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}

// DeriveFromSignature turns a 65-byte eth_sign signature (over
// SigningHash()) into a deterministic BLS key pair. The signature itself,
// not the underlying Ethereum private key, is hashed - the derivation
// never touches key material the caller didn't already produce via their
// own wallet.
func DeriveFromSignature(signature []byte) (*bls12.PrivateKey, *bls12.PublicKey, error) {
	if len(signature) != 65 {
		return nil, nil, fmt.Errorf("keyderiv: expected a 65-byte eth_sign signature, got %d bytes", len(signature))
	}
	seed := sha512.Sum512(append([]byte("certen-keyderiv-v1"), signature...))
	return bls12.GenerateKeyPairFromSeed(seed[:32])
}

// DeriveFromPrivateKey is a convenience wrapper for wallets that hold the
// raw Ethereum private key directly: it signs SigningHash() with sk, then
// derives through DeriveFromSignature exactly as a hardware/browser
// wallet's eth_sign would.
func DeriveFromPrivateKey(sk *ecdsa.PrivateKey) (*bls12.PrivateKey, *bls12.PublicKey, error) {
	sig, err := crypto.Sign(SigningHash(), sk)
	if err != nil {
		return nil, nil, fmt.Errorf("keyderiv: sign derivation message: %w", err)
	}
	return DeriveFromSignature(sig)
}
