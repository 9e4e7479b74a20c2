// Copyright 2025 Certen Protocol
//
// Typed public-input extractors, per spec.md §6.1.

package proofsystem

import "math/big"

// PublicState is the slice of on-chain/validity-prover state a Balance
// proof was produced against.
type PublicState struct {
	BlockHash       *big.Int
	AccountTreeRoot *big.Int
	DepositTreeRoot *big.Int
}

// BalancePublicInputs is a Balance proof's public-input extraction.
type BalancePublicInputs struct {
	Pubkey             *big.Int
	PrivateCommitment  *big.Int
	LastTxHash         *big.Int
	LastBlockNumber    *big.Int
	PublicState        PublicState
}

// SpentPublicInputs is a Spent proof's public-input extraction.
type SpentPublicInputs struct {
	PrevPrivateCommitment *big.Int
	NewPrivateCommitment  *big.Int
	Tx                    *big.Int
	InsufficientFlags     *big.Int
	IsValid               bool
}

// UpdatePublicInputs is an Update proof's public-input extraction.
type UpdatePublicInputs struct {
	PrevPrivateCommitment *big.Int
	NewPrivateCommitment  *big.Int
	NewBlockNumber        *big.Int
}

// SingleWithdrawalPublicInputs is a single-withdrawal proof's public-input
// extraction.
type SingleWithdrawalPublicInputs struct {
	Recipient  *big.Int
	TokenIndex *big.Int
	Amount     *big.Int
	Nullifier  *big.Int
}

// SingleClaimPublicInputs is a single-claim proof's public-input
// extraction - structurally identical to the withdrawal path, with
// PeriodNumber in place of TokenIndex.
type SingleClaimPublicInputs struct {
	Recipient    *big.Int
	PeriodNumber *big.Int
	Amount       *big.Int
	Nullifier    *big.Int
}

// TransitionPublicInputs is a per-block Transition proof's public-input
// extraction.
type TransitionPublicInputs struct {
	PrevRoot    *big.Int
	NewRoot     *big.Int
	BlockNumber *big.Int
}

// AggregatePublicInputs is a folded-batch Aggregate proof's public-input
// extraction.
type AggregatePublicInputs struct {
	AggregatedRoot *big.Int
	Count          *big.Int
}
