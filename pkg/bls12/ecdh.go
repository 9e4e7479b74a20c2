// Copyright 2025 Certen Protocol
//
// ECDH shared-secret derivation over BN254 G2, backing pkg/blsecies's
// envelope encryption. Kept in this package (rather than re-deriving a G2
// scalar multiplication from scratch in pkg/blsecies) because PrivateKey
// and PublicKey's underlying curve points are unexported — the same
// boundary the teacher's bls.go draws around its key types.

package bls12

import (
	"crypto/sha256"
	"math/big"
)

// ECDH computes sk * pk on G2 and returns a 32-byte shared-secret seed
// derived from the resulting point's compressed encoding. Both sides of an
// exchange (sender's ephemeral key against the recipient's account key, or
// vice versa) land on the same point since scalar multiplication commutes.
func (sk *PrivateKey) ECDH(pk *PublicKey) []byte {
	var shared PublicKey
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	shared.point.ScalarMultiplication(&pk.point, &skBig)

	b := shared.point.Bytes()
	digest := sha256.Sum256(b[:])
	return digest[:]
}
