// Copyright 2025 Certen Protocol
//
// Concrete Prover/Verifier/WitnessLoader wiring the worker pool's generic
// assign/prove/verify/persist loop to pkg/proofsystem's Transition circuit
// and pkg/validityprover's per-block state store. Kept in this package
// rather than proofsystem/validityprover themselves so neither package
// needs to know about the other or about the worker protocol's wire shape.

package worker

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zkpayments/rollup-core/pkg/proofsystem"
	"github.com/zkpayments/rollup-core/pkg/validityprover"
)

// ZKProver adapts proofsystem.Prover to the worker.Prover interface. The
// block number a witness belongs to travels as an 8-byte big-endian
// prefix ahead of the opaque witness bytes StoreWitnessLoader emits,
// since worker.Prover's signature carries no block number of its own.
type ZKProver struct {
	prover *proofsystem.Prover
}

// NewZKProver wraps prover for the worker pool.
func NewZKProver(prover *proofsystem.Prover) *ZKProver {
	return &ZKProver{prover: prover}
}

// ProveTransition satisfies worker.Prover.
func (p *ZKProver) ProveTransition(ctx context.Context, witness, prevProof []byte) ([]byte, error) {
	blockNumber, rawWitness, err := decodeWitnessEnvelope(witness)
	if err != nil {
		return nil, err
	}
	proof, err := p.prover.ProveTransition(ctx, blockNumber, rawWitness, prevProof)
	if err != nil {
		return nil, err
	}
	return []byte(proof), nil
}

// ZKVerifier adapts proofsystem.Verifier and validityprover's state
// machine to the worker.Verifier interface.
type ZKVerifier struct {
	verifier *proofsystem.Verifier
	sm       *validityprover.StateMachine
}

// NewZKVerifier wraps verifier and sm for the worker pool.
func NewZKVerifier(verifier *proofsystem.Verifier, sm *validityprover.StateMachine) *ZKVerifier {
	return &ZKVerifier{verifier: verifier, sm: sm}
}

// VerifyTransition satisfies worker.Verifier.
func (v *ZKVerifier) VerifyTransition(ctx context.Context, blockNumber uint64, proof []byte) (bool, error) {
	return v.verifier.VerifyTransition(ctx, blockNumber, proof)
}

// PersistTransition satisfies worker.Verifier by recording the accepted
// proof and advancing the block to Proved.
func (v *ZKVerifier) PersistTransition(ctx context.Context, blockNumber uint64, proof []byte) error {
	return v.sm.PersistProof(ctx, blockNumber, proof)
}

// StoreWitnessLoader satisfies worker.WitnessLoader against a
// validityprover.Store: LoadWitness returns a block's stored witness
// prefixed with its own block number (ZKProver's envelope), and
// LoadPreviousProof returns the predecessor block's accepted proof, or
// nil if there is no predecessor (block 0, or one never witnessed).
type StoreWitnessLoader struct {
	store validityprover.Store
}

// NewStoreWitnessLoader wraps store for the worker pool.
func NewStoreWitnessLoader(store validityprover.Store) *StoreWitnessLoader {
	return &StoreWitnessLoader{store: store}
}

// LoadWitness satisfies worker.WitnessLoader.
func (l *StoreWitnessLoader) LoadWitness(ctx context.Context, blockNumber uint64) ([]byte, error) {
	bs, found, err := l.store.GetBlockState(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("worker: load witness for block %d: %w", blockNumber, err)
	}
	if !found {
		return nil, fmt.Errorf("worker: no block state recorded for block %d", blockNumber)
	}
	return encodeWitnessEnvelope(blockNumber, bs.ValidityWitness), nil
}

// LoadPreviousProof satisfies worker.WitnessLoader.
func (l *StoreWitnessLoader) LoadPreviousProof(ctx context.Context, blockNumber uint64) ([]byte, error) {
	if blockNumber == 0 {
		return nil, nil
	}
	bs, found, err := l.store.GetBlockState(ctx, blockNumber-1)
	if err != nil {
		return nil, fmt.Errorf("worker: load previous proof for block %d: %w", blockNumber, err)
	}
	if !found {
		return nil, nil
	}
	return bs.ValidityProof, nil
}

func encodeWitnessEnvelope(blockNumber uint64, witness []byte) []byte {
	out := make([]byte, 8+len(witness))
	binary.BigEndian.PutUint64(out[:8], blockNumber)
	copy(out[8:], witness)
	return out
}

func decodeWitnessEnvelope(envelope []byte) (blockNumber uint64, witness []byte, err error) {
	if len(envelope) < 8 {
		return 0, nil, fmt.Errorf("worker: witness envelope too short for block-number prefix")
	}
	return binary.BigEndian.Uint64(envelope[:8]), envelope[8:], nil
}
