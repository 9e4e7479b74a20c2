// Copyright 2025 Certen Protocol
//
// WitnessingCheckpointStore bridges pkg/observer's EventBlockPosted stream
// to Coordinator.BuildWitness, the same decorator shape pkg/worker's
// ZKVerifier uses to glue two packages together without either importing
// the other's internals. Wrapping CheckpointStore rather than adding a
// subscriber callback to Observer keeps witness construction inside the
// same PersistBatch call the observer already uses to persist accepted
// events; it runs after the underlying store has committed the batch, so a
// witness failure does not roll the persisted events back.

package validityprover

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zkpayments/rollup-core/pkg/observer"
)

// PendingDepositSource supplies the DepositLeafInserted events a posted
// block's witness needs to fold in, looked up by block number.
type PendingDepositSource interface {
	PendingDepositsForBlock(ctx context.Context, blockNumber uint64) ([]PendingDeposit, error)
}

// Metrics records the highest block number this bridge has built a
// witness for. A nil Metrics is a valid no-op.
type Metrics interface {
	RecordWitnessBuilt(blockNumber uint64)
}

// WitnessingCheckpointStore delegates every call to an underlying
// observer.CheckpointStore, and additionally calls Coordinator.BuildWitness
// for each accepted EventBlockPosted occurrence once it is durably
// persisted.
type WitnessingCheckpointStore struct {
	observer.CheckpointStore
	coordinator *Coordinator
	deposits    PendingDepositSource
	metrics     Metrics
}

// NewWitnessingCheckpointStore wraps store so that Observer's own
// persistence path also drives witness construction. metrics may be nil.
func NewWitnessingCheckpointStore(store observer.CheckpointStore, coordinator *Coordinator, deposits PendingDepositSource, metrics Metrics) *WitnessingCheckpointStore {
	return &WitnessingCheckpointStore{CheckpointStore: store, coordinator: coordinator, deposits: deposits, metrics: metrics}
}

// PersistBatch satisfies observer.CheckpointStore, running BuildWitness for
// every BlockPosted event after the underlying store accepts the batch.
//
// The rollup contract's BlockPosted event carries only blockNumber,
// builderAddress, prevBlockHash, depositTreeRoot and txTreeRoot: it does
// not carry the block's sender list or which of them included a
// signature. Until the block builder's off-chain block body is wired as a
// second input to this bridge, SenderPubkeys/SignatureIncluded are left
// empty and IsRegistrationBlock defaults to false (non-registration),
// which is sufficient to exercise root-chaining and deposit-tree
// reconciliation but not full per-sender account-tree updates.
func (w *WitnessingCheckpointStore) PersistBatch(ctx context.Context, eventType observer.EventType, events []observer.Event, newSyncedBlock uint64) error {
	if err := w.CheckpointStore.PersistBatch(ctx, eventType, events, newSyncedBlock); err != nil {
		return err
	}
	if eventType != observer.EventBlockPosted {
		return nil
	}

	for _, e := range events {
		var payload observer.BlockPostedPayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return fmt.Errorf("validityprover: decode BlockPosted payload for block %d: %w", e.Sequence, err)
		}

		block := PostedBlock{
			BlockNumber:     payload.BlockNumber,
			TxTreeRoot:      hexToBytes32(payload.TxTreeRoot),
			PrevBlockHash:   hexToBytes32(payload.PrevBlockHash),
			DepositTreeRoot: hexToBytes32(payload.DepositTreeRoot),
		}

		var pending []PendingDeposit
		if w.deposits != nil {
			var err error
			pending, err = w.deposits.PendingDepositsForBlock(ctx, block.BlockNumber)
			if err != nil {
				return fmt.Errorf("validityprover: load pending deposits for block %d: %w", block.BlockNumber, err)
			}
		}

		if err := w.coordinator.BuildWitness(ctx, block, pending); err != nil {
			return fmt.Errorf("validityprover: build witness for block %d: %w", block.BlockNumber, err)
		}
		if w.metrics != nil {
			w.metrics.RecordWitnessBuilt(block.BlockNumber)
		}
	}
	return nil
}

func hexToBytes32(s string) [32]byte {
	var out [32]byte
	if len(s) < 2 || s[:2] != "0x" {
		return out
	}
	raw := s[2:]
	if len(raw) > 64 {
		raw = raw[len(raw)-64:]
	}
	for len(raw) < 64 {
		raw = "0" + raw
	}
	for i := 0; i < 32; i++ {
		hi := hexNibble(raw[i*2])
		lo := hexNibble(raw[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
