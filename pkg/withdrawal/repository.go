// Copyright 2025 Certen Protocol
//
// Withdrawal/claim persistence. Mirrors pkg/database/repository_proof.go's
// shape (a narrow repository interface, one concrete Postgres
// implementation, a memory implementation for tests).

package withdrawal

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateNullifier is returned when a nullifier already exists on any
// non-failed record, per spec.md §4.7 step 2 and §8's idempotency property.
var ErrDuplicateNullifier = errors.New("withdrawal: duplicate nullifier")

// ErrRecordNotFound is returned by lookups that find nothing.
var ErrRecordNotFound = errors.New("withdrawal: record not found")

// Repository persists withdrawal requests and their lifecycle transitions.
type Repository interface {
	// CreateRequested inserts rec with status Requested, failing with
	// ErrDuplicateNullifier if rec.Nullifier already exists on any
	// non-failed record.
	CreateRequested(ctx context.Context, rec *Record) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByPubkey(ctx context.Context, pubkey string) ([]Record, error)
	// NullifierExists reports whether nullifier exists on any record whose
	// status is not Failed.
	NullifierExists(ctx context.Context, nullifier [32]byte) (bool, error)
	// ListRequested returns up to limit Requested records, oldest first,
	// for the aggregator to pull into its next relay batch.
	ListRequested(ctx context.Context, limit int) ([]Record, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// ClaimRepository is the claim-path analogue of Repository.
type ClaimRepository interface {
	CreateRequested(ctx context.Context, rec *ClaimRecord) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*ClaimRecord, error)
	GetByPubkey(ctx context.Context, pubkey string) ([]ClaimRecord, error)
	NullifierExists(ctx context.Context, nullifier [32]byte) (bool, error)
	ListVerified(ctx context.Context, limit int) ([]ClaimRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ClaimStatus) error
}
