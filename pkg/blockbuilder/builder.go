// Copyright 2025 Certen Protocol
//
// Builder coordinates one block kind's full cycle: AcceptingTxs window ->
// freeze into a BlockProposal -> collect signatures -> Post -> Pausing,
// per spec.md §4.5. Grounded on pkg/batch/processor.go's poll-and-dispatch
// loop shape, repurposed from batch anchoring to block proposal cycles.

package blockbuilder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
	"github.com/zkpayments/rollup-core/pkg/merkle"
	"github.com/zkpayments/rollup-core/pkg/poseidon"
)

// Metrics records blocks this Builder finalizes. A nil Metrics on
// Config is a valid no-op.
type Metrics interface {
	RecordBlockProposal(kind string)
}

// Config configures one kind's Builder cycle.
type Config struct {
	AcceptingTxsWindow time.Duration
	SignatureWindow    time.Duration
	MaxTxsPerBlock     int
	FeeRequirement     FeeRequirement
	Metrics            Metrics
}

// DefaultConfig returns reasonable per-kind defaults.
func DefaultConfig() Config {
	return Config{
		AcceptingTxsWindow: 2 * time.Second,
		SignatureWindow:    5 * time.Second,
		MaxTxsPerBlock:     128,
		FeeRequirement:     FeeRequirement{},
	}
}

// Builder drives the outer loop for one block kind.
type Builder struct {
	kind   Kind
	cfg    Config
	sm     *KindStateMachine
	queue  *RequestQueue
	poster *Poster

	txTreeDepth int
	pubkeys     func([32]byte) *bls12.PublicKey

	nextBlockNumber uint64

	proposalMu sync.RWMutex
	proposal   *BlockProposal
	collector  *SignatureCollector
}

// NewBuilder wires a Builder for kind.
func NewBuilder(kind Kind, cfg Config, sm *KindStateMachine, queue *RequestQueue, poster *Poster, txTreeDepth int, pubkeyLookup func([32]byte) *bls12.PublicKey, startBlockNumber uint64) *Builder {
	return &Builder{
		kind:            kind,
		cfg:             cfg,
		sm:              sm,
		queue:           queue,
		poster:          poster,
		txTreeDepth:     txTreeDepth,
		pubkeys:         pubkeyLookup,
		nextBlockNumber: startBlockNumber,
	}
}

// ProverSyncChecker reports whether the validity prover has caught up
// closely enough with on-chain state to accept new transactions safely.
type ProverSyncChecker interface {
	IsCaughtUp(ctx context.Context) (bool, error)
}

// Submit forwards a send_tx_request to the kind's queue, first rejecting it
// if the validity prover has fallen too far behind on-chain state (proverSync
// may be nil to skip this check, e.g. in tests).
func (b *Builder) Submit(ctx context.Context, pubkey [32]byte, tx []byte, feeProof *FeeProof, isNewSender bool, proverSync ProverSyncChecker) (uuidStr string, err error) {
	if proverSync != nil {
		caughtUp, err := proverSync.IsCaughtUp(ctx)
		if err != nil {
			return "", fmt.Errorf("blockbuilder: check prover sync status: %w", err)
		}
		if !caughtUp {
			return "", &RejectionError{Reason: RejectProverBehind}
		}
	}

	id, err := b.queue.Submit(pubkey, tx, feeProof, isNewSender, b.cfg.FeeRequirement)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RunCycle executes exactly one AcceptingTxs -> ProposingBlock -> Post ->
// Pausing cycle, blocking for AcceptingTxsWindow to gather requests. On a
// failed post it sleeps PostBackoff before returning, matching spec.md's
// described recovery behavior.
func (b *Builder) RunCycle(ctx context.Context) error {
	if err := b.sm.Transition("start_accepting_txs", StateAcceptingTxs); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		_ = b.sm.Transition("reset_or_error", StatePausing)
		return ctx.Err()
	case <-time.After(b.cfg.AcceptingTxsWindow):
	}

	requests := b.queue.Drain()

	if err := b.sm.Transition("construct_block", StateProposingBlock); err != nil {
		return err
	}

	txTreeRoot, err := buildTxTreeRoot(requests, b.txTreeDepth)
	if err != nil {
		_ = b.sm.Transition("reset_or_error", StatePausing)
		return fmt.Errorf("blockbuilder: build tx tree: %w", err)
	}

	blockNumber := b.nextBlockNumber
	expiry := time.Now().Add(b.cfg.SignatureWindow)
	proposal := BuildProposal(blockNumber, b.kind, requests, txTreeRoot, expiry)
	collector := NewSignatureCollector(proposal)
	b.publishProposal(&proposal, collector)

	// Signature collection happens out-of-band (senders call query_proposal
	// then post_signature against collector.Submit); by the time Post runs
	// here the collection window has already elapsed.

	if _, err := b.poster.Post(ctx, proposal, collector, b.pubkeys); err != nil {
		log.Printf("blockbuilder: kind %s: post block %d failed, backing off: %v", b.kind, blockNumber, err)
		time.Sleep(PostBackoff)
		return err
	}
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordBlockProposal(string(b.kind))
	}

	b.nextBlockNumber++
	return nil
}

// ForceEmptyBlock runs one cycle with no accepted requests, for the
// deposit-check job. It bypasses the AcceptingTxs window since there is
// nothing to wait for.
func (b *Builder) ForceEmptyBlock(ctx context.Context) error {
	if err := b.sm.Transition("start_accepting_txs", StateAcceptingTxs); err != nil {
		return err
	}
	if err := b.sm.Transition("construct_block", StateProposingBlock); err != nil {
		return err
	}

	txTreeRoot, err := buildTxTreeRoot(nil, b.txTreeDepth)
	if err != nil {
		_ = b.sm.Transition("reset_or_error", StatePausing)
		return fmt.Errorf("blockbuilder: build empty tx tree: %w", err)
	}

	blockNumber := b.nextBlockNumber
	expiry := time.Now().Add(b.cfg.SignatureWindow)
	proposal := BuildProposal(blockNumber, b.kind, nil, txTreeRoot, expiry)
	collector := NewSignatureCollector(proposal)
	b.publishProposal(&proposal, collector)

	if _, err := b.poster.Post(ctx, proposal, collector, b.pubkeys); err != nil {
		time.Sleep(PostBackoff)
		return err
	}
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.RecordBlockProposal(string(b.kind))
	}

	b.nextBlockNumber++
	return nil
}

// publishProposal makes proposal/collector visible to CurrentProposal,
// for query_proposal/post_signature handlers running concurrently with
// the builder's own cycle.
func (b *Builder) publishProposal(proposal *BlockProposal, collector *SignatureCollector) {
	b.proposalMu.Lock()
	defer b.proposalMu.Unlock()
	b.proposal = proposal
	b.collector = collector
}

// FeeConfig returns this kind's fee-validation gate, for quote_fee.
func (b *Builder) FeeConfig() FeeRequirement { return b.cfg.FeeRequirement }

// CurrentProposal returns the most recently frozen BlockProposal (and its
// SignatureCollector) for this kind, if any cycle has run yet.
func (b *Builder) CurrentProposal() (*BlockProposal, *SignatureCollector, bool) {
	b.proposalMu.RLock()
	defer b.proposalMu.RUnlock()
	if b.proposal == nil {
		return nil, nil, false
	}
	return b.proposal, b.collector, true
}

func buildTxTreeRoot(requests []TxRequest, depth int) ([32]byte, error) {
	tree, err := merkle.NewIncrementalTree("tx", depth, poseidon.Hash, make([]byte, 32), nil)
	if err != nil {
		return [32]byte{}, err
	}
	for _, r := range requests {
		if _, _, _, err := tree.Append(context.Background(), poseidon.HashBytes(r.Tx)); err != nil {
			return [32]byte{}, err
		}
	}
	var root [32]byte
	copy(root[:], tree.Root())
	return root, nil
}
