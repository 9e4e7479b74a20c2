// Copyright 2025 Certen Protocol
//
// Post phase: submit the aggregated signature and sender_flag bitmap to the
// rollup contract, and reset to Pausing with a backoff on failure, per
// spec.md §4.5.

package blockbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

// PostBackoff is the pause duration after a failed on-chain post, per
// spec.md §4.5.
const PostBackoff = 10 * time.Second

// RollupPoster submits a finished block to the rollup contract.
type RollupPoster interface {
	PostBlock(ctx context.Context, block PostedBlockTx) (txHash [32]byte, err error)
}

// PostedBlockTx is the calldata shape for a rollup contract post_block call.
type PostedBlockTx struct {
	BlockNumber    uint64
	Kind           Kind
	TxTreeRoot     [32]byte
	SenderFlags    []bool
	AggregatedSig  *bls12.Signature
	AggregatedKeys []*bls12.PublicKey
	BuilderNonce   uint64
}

// NonceReserver is the subset of NonceManager/RedisNonceManager the Poster
// needs.
type NonceReserver interface {
	Reserve(ctx context.Context) (uint64, error)
	Confirm(nonce uint64)
	Release(nonce uint64)
}

// Poster drives the ProposingBlock -> Post -> Pausing cycle for one block
// kind, owning the nonce reservation and the reset-and-backoff behavior.
type Poster struct {
	kind   Kind
	sm     *KindStateMachine
	nonces NonceReserver
	rollup RollupPoster
}

// NewPoster wires a Poster for kind, backed by sm, nonces and rollup.
func NewPoster(kind Kind, sm *KindStateMachine, nonces NonceReserver, rollup RollupPoster) *Poster {
	return &Poster{kind: kind, sm: sm, nonces: nonces, rollup: rollup}
}

// Post submits the proposal's aggregated signature to the rollup contract.
// On success it transitions the kind's state machine back to Pausing via
// post_block; on failure it transitions back to Pausing via reset_or_error
// and returns the error, leaving the caller to wait PostBackoff before
// re-entering AcceptingTxs.
func (p *Poster) Post(ctx context.Context, proposal BlockProposal, collector *SignatureCollector, pubkeyLookup func([32]byte) *bls12.PublicKey) ([32]byte, error) {
	nonce, err := p.nonces.Reserve(ctx)
	if err != nil {
		_ = p.sm.Transition("reset_or_error", StatePausing)
		return [32]byte{}, fmt.Errorf("blockbuilder: reserve nonce: %w", err)
	}

	// A block no sender signed (e.g. a forced empty block relaying deposits)
	// is posted without an aggregate signature.
	senderFlags := collector.SenderFlags()
	anySigned := false
	for _, f := range senderFlags {
		anySigned = anySigned || f
	}
	var aggSig *bls12.Signature
	var pubkeys []*bls12.PublicKey
	if anySigned {
		aggSig, pubkeys, err = collector.Aggregate(pubkeyLookup)
		if err != nil {
			p.nonces.Release(nonce)
			_ = p.sm.Transition("reset_or_error", StatePausing)
			return [32]byte{}, fmt.Errorf("blockbuilder: aggregate signatures: %w", err)
		}
	}

	txHash, err := p.rollup.PostBlock(ctx, PostedBlockTx{
		BlockNumber:    proposal.BlockNumber,
		Kind:           proposal.Kind,
		TxTreeRoot:     proposal.TxTreeRoot,
		SenderFlags:    senderFlags,
		AggregatedSig:  aggSig,
		AggregatedKeys: pubkeys,
		BuilderNonce:   nonce,
	})
	if err != nil {
		p.nonces.Release(nonce)
		_ = p.sm.Transition("reset_or_error", StatePausing)
		return [32]byte{}, fmt.Errorf("blockbuilder: post block to rollup contract: %w", err)
	}

	p.nonces.Confirm(nonce)
	if err := p.sm.Transition("post_block", StatePausing); err != nil {
		return txHash, err
	}
	return txHash, nil
}
