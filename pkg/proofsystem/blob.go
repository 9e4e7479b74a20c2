// Copyright 2025 Certen Protocol
//
// Compressed proof blob framing: the on-wire format for
// CompressedSpentProof, CompressedBalanceProof, CompressedSingleWithdrawalProof
// and CompressedSingleClaimProof (spec.md §6.1). Each is a 4-byte
// big-endian length prefix followed by a gzip-compressed JSON envelope
// carrying the serialized groth16 proof plus its ordered public inputs -
// together a ProofWithPublicInputs the matching verifier can check without
// any further framing knowledge. No ZK-proof serialization library
// appears in the corpus beyond gnark's own WriteTo/ReadFrom, so the outer
// envelope falls back to the standard library's encoding/json and
// compress/gzip.

package proofsystem

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
)

// CompressedSpentProof is the wire form of a Spent proof.
type CompressedSpentProof []byte

// CompressedBalanceProof is the wire form of a Balance proof.
type CompressedBalanceProof []byte

// CompressedSingleWithdrawalProof is the wire form of a single-withdrawal proof.
type CompressedSingleWithdrawalProof []byte

// CompressedSingleClaimProof is the wire form of a single-claim proof.
type CompressedSingleClaimProof []byte

// ProofWithPublicInputs is a decompressed proof ready for verification:
// the groth16 proof itself plus its public inputs in the circuit's
// declared field order.
type ProofWithPublicInputs struct {
	Kind         Kind
	Proof        groth16.Proof
	PublicInputs []*big.Int
}

type proofEnvelope struct {
	Kind         Kind     `json:"kind"`
	ProofBytes   []byte   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
}

// compress frames pwpi as a length-prefixed gzip-compressed JSON envelope.
func compress(pwpi *ProofWithPublicInputs) ([]byte, error) {
	var proofBuf bytes.Buffer
	if _, err := pwpi.Proof.WriteTo(&proofBuf); err != nil {
		return nil, fmt.Errorf("proofsystem: serialize proof: %w", err)
	}

	env := proofEnvelope{
		Kind:       pwpi.Kind,
		ProofBytes: proofBuf.Bytes(),
	}
	for _, pi := range pwpi.PublicInputs {
		env.PublicInputs = append(env.PublicInputs, pi.String())
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("proofsystem: marshal envelope: %w", err)
	}

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("proofsystem: gzip envelope: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("proofsystem: close gzip writer: %w", err)
	}

	out := make([]byte, 4+gz.Len())
	binary.BigEndian.PutUint32(out[:4], uint32(gz.Len()))
	copy(out[4:], gz.Bytes())
	return out, nil
}

// decompress reverses compress.
func decompress(blob []byte) (*ProofWithPublicInputs, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("proofsystem: blob too short for length prefix")
	}
	n := binary.BigEndian.Uint32(blob[:4])
	if int(n) != len(blob)-4 {
		return nil, fmt.Errorf("proofsystem: length prefix %d does not match payload size %d", n, len(blob)-4)
	}

	zr, err := gzip.NewReader(bytes.NewReader(blob[4:]))
	if err != nil {
		return nil, fmt.Errorf("proofsystem: open gzip reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("proofsystem: read gzip payload: %w", err)
	}

	var env proofEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("proofsystem: unmarshal envelope: %w", err)
	}
	if !env.Kind.Valid() {
		return nil, ErrUnknownKind{Kind: env.Kind}
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(env.ProofBytes)); err != nil {
		return nil, fmt.Errorf("proofsystem: deserialize proof: %w", err)
	}

	publicInputs := make([]*big.Int, len(env.PublicInputs))
	for i, s := range env.PublicInputs {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("proofsystem: malformed public input %q", s)
		}
		publicInputs[i] = v
	}

	return &ProofWithPublicInputs{Kind: env.Kind, Proof: proof, PublicInputs: publicInputs}, nil
}

// CompressSpentProof compresses a Spent proof and its public inputs.
func CompressSpentProof(proof groth16.Proof, pub SpentPublicInputs) (CompressedSpentProof, error) {
	b, err := compress(&ProofWithPublicInputs{Kind: KindSpent, Proof: proof, PublicInputs: spentFieldOrder(pub)})
	return CompressedSpentProof(b), err
}

// DecompressSpentProof reverses CompressSpentProof.
func DecompressSpentProof(blob CompressedSpentProof) (*ProofWithPublicInputs, SpentPublicInputs, error) {
	pwpi, err := decompress(blob)
	if err != nil {
		return nil, SpentPublicInputs{}, err
	}
	pub, err := spentFromFieldOrder(pwpi.PublicInputs)
	return pwpi, pub, err
}

// CompressBalanceProof compresses a Balance proof and its public inputs.
func CompressBalanceProof(proof groth16.Proof, pub BalancePublicInputs) (CompressedBalanceProof, error) {
	b, err := compress(&ProofWithPublicInputs{Kind: KindBalance, Proof: proof, PublicInputs: balanceFieldOrder(pub)})
	return CompressedBalanceProof(b), err
}

// DecompressBalanceProof reverses CompressBalanceProof.
func DecompressBalanceProof(blob CompressedBalanceProof) (*ProofWithPublicInputs, BalancePublicInputs, error) {
	pwpi, err := decompress(blob)
	if err != nil {
		return nil, BalancePublicInputs{}, err
	}
	pub, err := balanceFromFieldOrder(pwpi.PublicInputs)
	return pwpi, pub, err
}

// CompressSingleWithdrawalProof compresses a single-withdrawal proof and
// its public inputs.
func CompressSingleWithdrawalProof(proof groth16.Proof, pub SingleWithdrawalPublicInputs) (CompressedSingleWithdrawalProof, error) {
	b, err := compress(&ProofWithPublicInputs{Kind: KindSingleWithdrawal, Proof: proof, PublicInputs: singleWithdrawalFieldOrder(pub)})
	return CompressedSingleWithdrawalProof(b), err
}

// DecompressSingleWithdrawalProof reverses CompressSingleWithdrawalProof.
func DecompressSingleWithdrawalProof(blob CompressedSingleWithdrawalProof) (*ProofWithPublicInputs, SingleWithdrawalPublicInputs, error) {
	pwpi, err := decompress(blob)
	if err != nil {
		return nil, SingleWithdrawalPublicInputs{}, err
	}
	pub, err := singleWithdrawalFromFieldOrder(pwpi.PublicInputs)
	return pwpi, pub, err
}

// CompressSingleClaimProof compresses a single-claim proof and its public
// inputs.
func CompressSingleClaimProof(proof groth16.Proof, pub SingleClaimPublicInputs) (CompressedSingleClaimProof, error) {
	b, err := compress(&ProofWithPublicInputs{Kind: KindSingleClaim, Proof: proof, PublicInputs: singleClaimFieldOrder(pub)})
	return CompressedSingleClaimProof(b), err
}

// DecompressSingleClaimProof reverses CompressSingleClaimProof.
func DecompressSingleClaimProof(blob CompressedSingleClaimProof) (*ProofWithPublicInputs, SingleClaimPublicInputs, error) {
	pwpi, err := decompress(blob)
	if err != nil {
		return nil, SingleClaimPublicInputs{}, err
	}
	pub, err := singleClaimFromFieldOrder(pwpi.PublicInputs)
	return pwpi, pub, err
}

// CompressedTransitionProof is the wire form of a per-block Transition
// proof. Unlike the other Compressed*Proof types, this one is produced
// in-process by pkg/worker's background prover loop rather than by an
// external client, and is itself fed back in as the next block's
// prevProof input.
type CompressedTransitionProof []byte

// CompressTransitionProof compresses a Transition proof and its public
// inputs.
func CompressTransitionProof(proof groth16.Proof, pub TransitionPublicInputs) (CompressedTransitionProof, error) {
	b, err := compress(&ProofWithPublicInputs{Kind: KindTransition, Proof: proof, PublicInputs: transitionFieldOrder(pub)})
	return CompressedTransitionProof(b), err
}

// DecompressTransitionProof reverses CompressTransitionProof.
func DecompressTransitionProof(blob CompressedTransitionProof) (*ProofWithPublicInputs, TransitionPublicInputs, error) {
	pwpi, err := decompress(blob)
	if err != nil {
		return nil, TransitionPublicInputs{}, err
	}
	pub, err := transitionFromFieldOrder(pwpi.PublicInputs)
	return pwpi, pub, err
}
