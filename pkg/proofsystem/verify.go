// Copyright 2025 Certen Protocol
//
// Verify is the tagged-variant verify(kind, bytes) capability of spec.md
// §6.1/§9: decompress a proof blob, rebuild its public witness, and check
// it against the Kind's verifier key. Grounded on
// pkg/crypto/bls_zkp/prover.go's VerifyProofLocally (frontend.NewWitness
// with frontend.PublicOnly(), then groth16.Verify).

package proofsystem

import (
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/zkpayments/rollup-core/pkg/withdrawal"
)

// Verifier ties a Registry of verifier keys to the verify(kind, bytes)
// operation, and is the concrete type wired into the Withdrawal Server's
// SingleWithdrawalVerifier/SingleClaimVerifier seams.
type Verifier struct {
	keys *Registry
}

// NewVerifier returns a Verifier backed by keys.
func NewVerifier(keys *Registry) *Verifier {
	return &Verifier{keys: keys}
}

// assignmentFor builds the public-only circuit assignment for kind from
// its ordered public-input fields.
func assignmentFor(kind Kind, fields []*big.Int) (frontend.Circuit, error) {
	switch kind {
	case KindSpent:
		pub, err := spentFromFieldOrder(fields)
		if err != nil {
			return nil, err
		}
		return &SpentCircuit{
			PrevPrivateCommitment: pub.PrevPrivateCommitment,
			NewPrivateCommitment:  pub.NewPrivateCommitment,
			Tx:                    pub.Tx,
			InsufficientFlags:     pub.InsufficientFlags,
			IsValid:               boolToBigInt(pub.IsValid),
		}, nil
	case KindBalance:
		pub, err := balanceFromFieldOrder(fields)
		if err != nil {
			return nil, err
		}
		return &BalanceCircuit{
			Pubkey:            pub.Pubkey,
			PrivateCommitment: pub.PrivateCommitment,
			LastTxHash:        pub.LastTxHash,
			LastBlockNumber:   pub.LastBlockNumber,
			BlockHash:         pub.PublicState.BlockHash,
			AccountTreeRoot:   pub.PublicState.AccountTreeRoot,
			DepositTreeRoot:   pub.PublicState.DepositTreeRoot,
		}, nil
	case KindUpdate:
		if len(fields) != 3 {
			return nil, fmt.Errorf("proofsystem: update proof expects 3 public inputs, got %d", len(fields))
		}
		return &UpdateCircuit{
			PrevPrivateCommitment: fields[0],
			NewPrivateCommitment:  fields[1],
			NewBlockNumber:        fields[2],
		}, nil
	case KindSingleWithdrawal:
		pub, err := singleWithdrawalFromFieldOrder(fields)
		if err != nil {
			return nil, err
		}
		return &SingleWithdrawalCircuit{
			Recipient:  pub.Recipient,
			TokenIndex: pub.TokenIndex,
			Amount:     pub.Amount,
			Nullifier:  pub.Nullifier,
		}, nil
	case KindSingleClaim:
		pub, err := singleClaimFromFieldOrder(fields)
		if err != nil {
			return nil, err
		}
		return &SingleClaimCircuit{
			Recipient:    pub.Recipient,
			PeriodNumber: pub.PeriodNumber,
			Amount:       pub.Amount,
			Nullifier:    pub.Nullifier,
		}, nil
	case KindTransition:
		if len(fields) != 3 {
			return nil, fmt.Errorf("proofsystem: transition proof expects 3 public inputs, got %d", len(fields))
		}
		return &TransitionCircuit{
			PrevRoot:    fields[0],
			NewRoot:     fields[1],
			BlockNumber: fields[2],
		}, nil
	case KindAggregate:
		if len(fields) != 2 {
			return nil, fmt.Errorf("proofsystem: aggregate proof expects 2 public inputs, got %d", len(fields))
		}
		return &AggregateCircuit{
			AggregatedRoot: fields[0],
			Count:          fields[1],
		}, nil
	default:
		return nil, ErrUnknownKind{Kind: kind}
	}
}

// Verify decompresses blob, rebuilds its public witness, and checks it
// against kind's verifier key. The returned ProofWithPublicInputs is
// non-nil whenever decompression succeeded, even if verification failed,
// so callers can log what was rejected.
func (v *Verifier) Verify(ctx context.Context, kind Kind, blob []byte) (ok bool, pwpi *ProofWithPublicInputs, err error) {
	pwpi, err = decompress(blob)
	if err != nil {
		return false, nil, err
	}
	if pwpi.Kind != kind {
		return false, pwpi, fmt.Errorf("proofsystem: blob tagged %q does not match requested kind %q", pwpi.Kind, kind)
	}

	assignment, err := assignmentFor(kind, pwpi.PublicInputs)
	if err != nil {
		return false, pwpi, err
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, pwpi, fmt.Errorf("proofsystem: build public witness: %w", err)
	}

	vk, err := v.keys.Get(kind)
	if err != nil {
		return false, pwpi, err
	}

	if err := groth16.Verify(pwpi.Proof, vk, witness); err != nil {
		return false, pwpi, nil
	}
	return true, pwpi, nil
}

// VerifySingleWithdrawal implements withdrawal.SingleWithdrawalVerifier.
func (v *Verifier) VerifySingleWithdrawal(ctx context.Context, proofBlob []byte) (*withdrawal.Withdrawal, error) {
	ok, pwpi, err := v.Verify(ctx, KindSingleWithdrawal, proofBlob)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("proofsystem: single-withdrawal proof failed verification")
	}
	pub, err := singleWithdrawalFromFieldOrder(pwpi.PublicInputs)
	if err != nil {
		return nil, err
	}
	return withdrawalFromPublicInputs(pub), nil
}

// VerifySingleClaim implements withdrawal.SingleClaimVerifier.
func (v *Verifier) VerifySingleClaim(ctx context.Context, proofBlob []byte) (*withdrawal.Claim, error) {
	ok, pwpi, err := v.Verify(ctx, KindSingleClaim, proofBlob)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("proofsystem: single-claim proof failed verification")
	}
	pub, err := singleClaimFromFieldOrder(pwpi.PublicInputs)
	if err != nil {
		return nil, err
	}
	return claimFromPublicInputs(pub), nil
}

// VerifyTransition checks a CompressedTransitionProof against blockNumber,
// the shape pkg/worker's Prover/Verifier seam requires: the proof blob
// carries its own PrevRoot/NewRoot/BlockNumber, so the only side
// information a caller supplies is which block it claims to cover.
func (v *Verifier) VerifyTransition(ctx context.Context, blockNumber uint64, proof []byte) (bool, error) {
	ok, pwpi, err := v.Verify(ctx, KindTransition, proof)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	pub, err := transitionFromFieldOrder(pwpi.PublicInputs)
	if err != nil {
		return false, err
	}
	if pub.BlockNumber.Uint64() != blockNumber {
		return false, fmt.Errorf("proofsystem: transition proof covers block %s, not requested block %d", pub.BlockNumber, blockNumber)
	}
	return true, nil
}

func bigIntTo20Bytes(v *big.Int) [20]byte {
	var out [20]byte
	b := v.Bytes()
	if len(b) > 20 {
		b = b[len(b)-20:]
	}
	copy(out[20-len(b):], b)
	return out
}

func bigIntTo32Bytes(v *big.Int) [32]byte {
	var out [32]byte
	b := v.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

func withdrawalFromPublicInputs(pub SingleWithdrawalPublicInputs) *withdrawal.Withdrawal {
	return &withdrawal.Withdrawal{
		Recipient:  bigIntTo20Bytes(pub.Recipient),
		TokenIndex: uint32(pub.TokenIndex.Uint64()),
		Amount:     new(big.Int).Set(pub.Amount),
		Nullifier:  bigIntTo32Bytes(pub.Nullifier),
	}
}

func claimFromPublicInputs(pub SingleClaimPublicInputs) *withdrawal.Claim {
	return &withdrawal.Claim{
		Recipient:    bigIntTo20Bytes(pub.Recipient),
		PeriodNumber: pub.PeriodNumber.Uint64(),
		Amount:       new(big.Int).Set(pub.Amount),
		Nullifier:    bigIntTo32Bytes(pub.Nullifier),
	}
}
