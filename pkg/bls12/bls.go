// Copyright 2025 Certen Protocol
//
// BLS Signature Implementation over BN254 (Pure Go)
//
// Rollup account keys and aggregated block signatures per spec: a user's
// pubkey doubles as their 256-bit L2 account identifier, and an
// aggregated block signature is the sum of individual signatures over a
// single message point derived from the block's tx-tree root. BN254 is
// used (not BLS12-381) because it is the pairing curve the balance and
// block-transition circuits are natively defined over, so a signature
// must live on the same curve the SNARK verifier already speaks.
//
// Ported from the teacher's pkg/crypto/bls (BLS12-381) onto
// github.com/consensys/gnark-crypto/ecc/bn254, keeping the same key
// shapes, domain-separation-tag convention and aggregation API.

package bls12

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var (
	initOnce sync.Once

	g1Gen bn254.G1Affine
	g2Gen bn254.G2Affine
)

// Domain separation tags, mirroring the teacher's per-protocol-purpose
// constants.
const (
	DomainTransfer   = "ROLLUP_TRANSFER_V1"
	DomainBlock      = "ROLLUP_BLOCK_SIGNATURE_V1"
	DomainWithdrawal = "ROLLUP_WITHDRAWAL_V1"
)

const (
	PrivateKeySize = 32 // BN254 scalar field element
	PublicKeySize  = 64 // BN254 G2 point, compressed
	SignatureSize  = 32 // BN254 G1 point, compressed
)

// Initialize loads the BN254 generator points. Safe to call repeatedly.
func Initialize() error {
	initOnce.Do(func() {
		_, _, g1GenPoint, g2GenPoint := bn254.Generators()
		g1Gen = g1GenPoint
		g2Gen = g2GenPoint
	})
	return nil
}

// PrivateKey is a BLS private key: a scalar in BN254's Fr.
type PrivateKey struct {
	scalar fr.Element
}

// PublicKey is a BLS public key: a point on G2, encoded in 64 bytes. The
// user's 32-byte L2 account identifier is the SHA-256 of that encoding
// (see AccountID).
type PublicKey struct {
	point bn254.G2Affine
}

// Signature is a BLS signature: a point on G1.
type Signature struct {
	point bn254.G1Affine
}

// GenerateKeyPair generates a new BLS key pair from a CSPRNG.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, err
	}
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("generate random scalar: %w", err)
	}
	priv := &PrivateKey{scalar: sk}
	return priv, priv.PublicKey(), nil
}

// GenerateKeyPairFromSeed derives a deterministic key pair from a seed —
// used by pkg/keyderiv to turn an Ethereum signature into an L2 key.
func GenerateKeyPairFromSeed(seed []byte) (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, err
	}
	if len(seed) < 32 {
		return nil, nil, errors.New("seed must be at least 32 bytes")
	}
	hash := sha256.Sum256(seed)
	var sk fr.Element
	sk.SetBytes(hash[:])
	priv := &PrivateKey{scalar: sk}
	return priv, priv.PublicKey(), nil
}

func PrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: got %d, want %d", len(data), PrivateKeySize)
	}
	var sk fr.Element
	sk.SetBytes(data)
	return &PrivateKey{scalar: sk}, nil
}

func PrivateKeyFromHex(hexStr string) (*PrivateKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PrivateKeyFromBytes(data)
}

func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	var pk bn254.G2Affine
	if _, err := pk.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize public key: %w", err)
	}
	return &PublicKey{point: pk}, nil
}

func PublicKeyFromHex(hexStr string) (*PublicKey, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return PublicKeyFromBytes(data)
}

func SignatureFromBytes(data []byte) (*Signature, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	var sig bn254.G1Affine
	if _, err := sig.SetBytes(data); err != nil {
		return nil, fmt.Errorf("deserialize signature: %w", err)
	}
	return &Signature{point: sig}, nil
}

func SignatureFromHex(hexStr string) (*Signature, error) {
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return SignatureFromBytes(data)
}

func (sk *PrivateKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

func (sk *PrivateKey) Hex() string { return hex.EncodeToString(sk.Bytes()) }

// PublicKey derives pk = sk * G2.
func (sk *PrivateKey) PublicKey() *PublicKey {
	var pk bn254.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&g2Gen, &skBig)
	return &PublicKey{point: pk}
}

// AccountID returns the 32-byte account identifier this key derives —
// PublicKey.Bytes() hashed down to the width every tree leaf in
// pkg/merkle expects, since a raw G2 point is wider than a Poseidon leaf.
func (pk *PublicKey) AccountID() [32]byte {
	return sha256.Sum256(pk.Bytes())
}

// Sign computes sig = sk * H(message), H mapping to a G1 point.
func (sk *PrivateKey) Sign(message []byte) *Signature {
	h := hashToG1(message)
	var sig bn254.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)
	return &Signature{point: sig}
}

func (sk *PrivateKey) SignWithDomain(message []byte, domain string) *Signature {
	return sk.Sign(domainMessage(domain, message))
}

func (pk *PublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

func (pk *PublicKey) Hex() string { return hex.EncodeToString(pk.Bytes()) }

// Verify checks e(sig, G2) == e(H(message), pk) via a single pairing check
// e(sig, G2) * e(H(msg), -pk) == 1.
func (pk *PublicKey) Verify(sig *Signature, message []byte) bool {
	h := hashToG1(message)
	var negPk bn254.G2Affine
	negPk.Neg(&pk.point)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{sig.point, h},
		[]bn254.G2Affine{g2Gen, negPk},
	)
	if err != nil {
		return false
	}
	return ok
}

func (pk *PublicKey) VerifyWithDomain(sig *Signature, message []byte, domain string) bool {
	return pk.Verify(sig, domainMessage(domain, message))
}

func (pk *PublicKey) Equal(other *PublicKey) bool { return pk.point.Equal(&other.point) }

func (sig *Signature) Bytes() []byte {
	b := sig.point.Bytes()
	return b[:]
}

func (sig *Signature) Hex() string { return hex.EncodeToString(sig.Bytes()) }

// AggregateSignatures sums signatures on G1 — the block-signature
// aggregation spec.md §3 describes.
func AggregateSignatures(signatures []*Signature) (*Signature, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	if len(signatures) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}
	var agg bn254.G1Jac
	agg.FromAffine(&signatures[0].point)
	for _, s := range signatures[1:] {
		var jac bn254.G1Jac
		jac.FromAffine(&s.point)
		agg.AddAssign(&jac)
	}
	var result bn254.G1Affine
	result.FromJacobian(&agg)
	return &Signature{point: result}, nil
}

// AggregatePublicKeys sums public keys on G2.
func AggregatePublicKeys(publicKeys []*PublicKey) (*PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	if len(publicKeys) == 0 {
		return nil, errors.New("no public keys to aggregate")
	}
	var agg bn254.G2Jac
	agg.FromAffine(&publicKeys[0].point)
	for _, p := range publicKeys[1:] {
		var jac bn254.G2Jac
		jac.FromAffine(&p.point)
		agg.AddAssign(&jac)
	}
	var result bn254.G2Affine
	result.FromJacobian(&agg)
	return &PublicKey{point: result}, nil
}

// VerifyAggregateSignature verifies a single aggregated signature against
// every signer's public key, all having signed the same message (the
// block's message point derived from the tx-tree root).
func VerifyAggregateSignature(aggSig *Signature, publicKeys []*PublicKey, message []byte) bool {
	if err := Initialize(); err != nil {
		return false
	}
	aggPk, err := AggregatePublicKeys(publicKeys)
	if err != nil {
		return false
	}
	return aggPk.Verify(aggSig, message)
}

func VerifyAggregateSignatureWithDomain(aggSig *Signature, publicKeys []*PublicKey, message []byte, domain string) bool {
	return VerifyAggregateSignature(aggSig, publicKeys, domainMessage(domain, message))
}

// hashToG1 maps an arbitrary message onto a point on BN254's G1, using the
// same hash-and-increment approach as the teacher's BLS12-381 code (no
// gnark-crypto hash-to-curve entry point is exercised elsewhere in the
// corpus, so this stays hand-rolled rather than reaching for an
// unconfirmed API).
func hashToG1(message []byte) bn254.G1Affine {
	h := sha256.New()
	h.Write([]byte("BLS_SIG_BN254G1_XMD:SHA-256_SSWU_RO_"))
	h.Write(message)
	seed := h.Sum(nil)

	var counter uint64
	for {
		h2 := sha256.New()
		h2.Write(seed)
		binary.Write(h2, binary.BigEndian, counter)
		digest := h2.Sum(nil)

		var point bn254.G1Affine
		if _, err := point.SetBytes(digest); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(digest)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)

		var result bn254.G1Affine
		result.ScalarMultiplication(&g1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}

		counter++
		if counter > 1000 {
			return g1Gen
		}
	}
}

func domainMessage(domain string, message []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(message)
	return h.Sum(nil)
}

// ComputeMessageHash hashes arbitrary data under a domain tag — used to
// derive the block message point from a tx-tree root.
func ComputeMessageHash(domain string, data ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func ValidatePublicKeySubgroup(data []byte) error {
	if err := Initialize(); err != nil {
		return err
	}
	var pk bn254.G2Affine
	if _, err := pk.SetBytes(data); err != nil {
		return fmt.Errorf("invalid public key encoding: %w", err)
	}
	if !pk.IsOnCurve() {
		return errors.New("public key not on BN254 G2 curve")
	}
	if pk.IsInfinity() {
		return errors.New("public key is identity point")
	}
	if !pk.IsInSubGroup() {
		return errors.New("public key not in correct G2 subgroup")
	}
	return nil
}

func ValidateSignatureSubgroup(data []byte) error {
	if err := Initialize(); err != nil {
		return err
	}
	var sig bn254.G1Affine
	if _, err := sig.SetBytes(data); err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !sig.IsOnCurve() {
		return errors.New("signature not on BN254 G1 curve")
	}
	if sig.IsInfinity() {
		return errors.New("signature is identity point")
	}
	if !sig.IsInSubGroup() {
		return errors.New("signature not in correct G1 subgroup")
	}
	return nil
}
