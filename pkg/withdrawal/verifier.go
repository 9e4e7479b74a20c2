// Copyright 2025 Certen Protocol
//
// Proof verification seams the Withdrawal Server depends on. The actual
// groth16/plonk verification lives in pkg/proofsystem; these interfaces
// let this package be built and tested independently of it, the way
// pkg/blockbuilder depends on a ChainNonceSource/DepositChecker seam
// instead of pkg/contracts directly.

package withdrawal

import "context"

// SingleWithdrawalVerifier verifies a single-withdrawal proof blob and
// reconstructs its public inputs as a Withdrawal, per spec.md §4.7 step 1.
type SingleWithdrawalVerifier interface {
	VerifySingleWithdrawal(ctx context.Context, proofBlob []byte) (*Withdrawal, error)
}

// SingleClaimVerifier is the claim-path analogue of SingleWithdrawalVerifier.
type SingleClaimVerifier interface {
	VerifySingleClaim(ctx context.Context, proofBlob []byte) (*Claim, error)
}
