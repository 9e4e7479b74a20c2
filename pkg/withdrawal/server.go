// Copyright 2025 Certen Protocol
//
// Server implements the request-withdrawal pipeline of spec.md §4.7: verify
// the proof, reject a reused nullifier, validate the declared fee against
// the sender's own Store Vault transfer log, then persist the request.

package withdrawal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Config holds Withdrawal Server policy parameters.
type Config struct {
	FeeBeneficiary string
}

// Server coordinates proof verification, fee validation and persistence for
// incoming withdrawal requests.
type Server struct {
	repo     Repository
	verifier SingleWithdrawalVerifier
	resolver TransferResolver
	fees     FeeSchedule
	cfg      Config
}

// NewServer wires a Server from its dependencies.
func NewServer(repo Repository, verifier SingleWithdrawalVerifier, resolver TransferResolver, fees FeeSchedule, cfg Config) *Server {
	return &Server{repo: repo, verifier: verifier, resolver: resolver, fees: fees, cfg: cfg}
}

// RequestWithdrawal runs spec.md §4.7's request-withdrawal pipeline end to
// end and returns the newly persisted Requested record.
func (s *Server) RequestWithdrawal(ctx context.Context, pubkey string, proofBlob []byte, feeTokenIndex uint32, feeDigests []FeeTransferDigest) (*Record, error) {
	withdrawalInfo, err := s.verifier.VerifySingleWithdrawal(ctx, proofBlob)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: verify proof: %w", err)
	}

	exists, err := s.repo.NullifierExists(ctx, withdrawalInfo.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: check nullifier: %w", err)
	}
	if exists {
		return nil, ErrDuplicateNullifier
	}

	transfers, err := s.resolver.ResolveFeeTransfers(ctx, pubkey, feeDigests)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: resolve fee transfers: %w", err)
	}
	quoted := s.fees.QuotedFee(feeTokenIndex)
	if err := ValidateFee(s.cfg.FeeBeneficiary, feeTokenIndex, quoted, transfers); err != nil {
		return nil, err
	}

	withdrawalBlob, err := json.Marshal(withdrawalInfo)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: encode withdrawal blob: %w", err)
	}

	rec := &Record{
		Pubkey:                    pubkey,
		Nullifier:                 withdrawalInfo.Nullifier,
		WithdrawalBlob:            withdrawalBlob,
		SingleWithdrawalProofBlob: proofBlob,
	}
	if err := s.repo.CreateRequested(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// WithdrawalInfo reports a user's withdrawal records, for /get-withdrawal-info.
func (s *Server) WithdrawalInfo(ctx context.Context, pubkey string) ([]Record, error) {
	return s.repo.GetByPubkey(ctx, pubkey)
}
