// Copyright 2025 Certen Protocol
//
// Withdrawal Server's object model, per spec.md §4.7/§6.1.

package withdrawal

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Withdrawal is the on-chain-shaped payload reconstructed from a verified
// single-withdrawal proof's public inputs.
type Withdrawal struct {
	Recipient  [20]byte // Ethereum address
	TokenIndex uint32
	Amount     *big.Int
	Nullifier  [32]byte
}

// Claim is the mining-style-reward analogue reconstructed from a verified
// single-claim proof's public inputs.
type Claim struct {
	Recipient    [20]byte
	PeriodNumber uint64
	Amount       *big.Int
	Nullifier    [32]byte
}

// FeeTransferDigest references one of the sender's own Transfer records
// stored in Store Vault, by content digest, as evidence of fee payment.
type FeeTransferDigest string

// Status is a withdrawal record's lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusRelayed   Status = "relayed"
	StatusSuccess   Status = "success"
	StatusNeedClaim Status = "need_claim"
	StatusFailed    Status = "failed"
)

// Record is one persisted withdrawal request, per spec.md §4.7 step 4.
type Record struct {
	UUID                      uuid.UUID
	Pubkey                    string
	Nullifier                 [32]byte
	WithdrawalBlob            []byte
	SingleWithdrawalProofBlob []byte
	Status                    Status
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// ClaimStatus is a claim record's lifecycle state.
type ClaimStatus string

const (
	ClaimStatusRequested ClaimStatus = "requested"
	ClaimStatusVerified  ClaimStatus = "verified"
	ClaimStatusRelayed   ClaimStatus = "relayed"
	ClaimStatusSuccess   ClaimStatus = "success"
	ClaimStatusFailed    ClaimStatus = "failed"
)

// ClaimRecord is one persisted claim request, structurally identical to
// Record per spec.md §4.7's "claim path is structurally identical".
type ClaimRecord struct {
	UUID                 uuid.UUID
	Pubkey               string
	Nullifier            [32]byte
	ClaimBlob            []byte
	SingleClaimProofBlob []byte
	Status               ClaimStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
