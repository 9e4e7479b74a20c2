// Copyright 2025 Certen Protocol
//
// ValidityProver state machine and per-block record, grounded on
// pkg/proof/lifecycle.go's ProofState/ValidTransitions pattern.

package validityprover

import (
	"context"
	"fmt"
	"sync"
)

// ProofState is the per-block proving state, repurposed from
// pkg/proof/lifecycle.go's pending/batched/anchored/attested/verified/failed
// ladder to the Validity Prover's simpler pending/proving/proved/failed one.
type ProofState string

const (
	StatePending ProofState = "pending"
	StateProving ProofState = "proving"
	StateProved  ProofState = "proved"
	StateFailed  ProofState = "failed"
)

// StateTransition is a single allowed (from, to) edge.
type StateTransition struct {
	From ProofState
	To   ProofState
}

// ValidTransitions enumerates every allowed proof-state edge. A failed
// block's task is always re-enqueued to pending by the worker-recovery path
// (lease expiry, failed verification), so Failed->Pending is valid too.
var ValidTransitions = []StateTransition{
	{StatePending, StateProving},
	{StateProving, StateProved},
	{StateProving, StateFailed},
	{StateFailed, StatePending},
}

func isValidTransition(from, to ProofState) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// BlockState is the coordinator's per-block record (spec.md §4.3).
type BlockState struct {
	BlockNumber             uint64
	BlockHash               [32]byte
	TxTreeRoot              [32]byte
	DepositTreeRootSnapshot uint64 // Tree-Store timestamp
	AccountTreeSnapshot     uint64
	BlockTreeSnapshot       uint64
	ValidityWitness         []byte // opaque blob: block hash, account root, deposit root, block-tree root (32 bytes each)
	ValidityProof           []byte // nil until proven
	State                   ProofState
}

// Store persists BlockState records and the small set of lookup indexes the
// coordinator's queries need. Snapshots referenced here are Tree-Store
// timestamps (pkg/merkle), not wall-clock.
type Store interface {
	PutBlockState(ctx context.Context, bs *BlockState) error
	GetBlockState(ctx context.Context, blockNumber uint64) (*BlockState, bool, error)
	LatestBlockNumber(ctx context.Context) (uint64, bool, error)
	LatestProvedBlockNumber(ctx context.Context) (uint64, bool, error)
	BlockNumberByTxTreeRoot(ctx context.Context, root [32]byte) (uint64, bool, error)
}

// StateMachine wraps a Store with validated transitions, mirroring
// ProofLifecycleManager's TransitionState guard.
type StateMachine struct {
	mu    sync.Mutex
	store Store
}

// NewStateMachine wraps store with transition validation.
func NewStateMachine(store Store) *StateMachine {
	return &StateMachine{store: store}
}

// Transition moves block b's state from its current value to newState,
// rejecting edges absent from ValidTransitions.
func (sm *StateMachine) Transition(ctx context.Context, blockNumber uint64, newState ProofState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	bs, found, err := sm.store.GetBlockState(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("get block state: %w", err)
	}
	if !found {
		return fmt.Errorf("validityprover: block %d not found", blockNumber)
	}
	if !isValidTransition(bs.State, newState) {
		return fmt.Errorf("validityprover: invalid transition %s -> %s for block %d", bs.State, newState, blockNumber)
	}
	bs.State = newState
	return sm.store.PutBlockState(ctx, bs)
}

// PersistProof records blockNumber's accepted validity proof and advances
// its state from Proving to Proved in one step, the write-back half of
// the worker protocol's assign->prove->verify->persist cycle.
func (sm *StateMachine) PersistProof(ctx context.Context, blockNumber uint64, proof []byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	bs, found, err := sm.store.GetBlockState(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("get block state: %w", err)
	}
	if !found {
		return fmt.Errorf("validityprover: block %d not found", blockNumber)
	}
	if !isValidTransition(bs.State, StateProved) {
		return fmt.Errorf("validityprover: invalid transition %s -> %s for block %d", bs.State, StateProved, blockNumber)
	}
	bs.ValidityProof = proof
	bs.State = StateProved
	return sm.store.PutBlockState(ctx, bs)
}

// MemoryStore is an in-process Store, used by tests and single-node
// deployments of the coordinator.
type MemoryStore struct {
	mu           sync.RWMutex
	blocks       map[uint64]*BlockState
	byTxTreeRoot map[[32]byte]uint64
	latest       uint64
	latestFound  bool
	latestProved uint64
	provedFound  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks:       make(map[uint64]*BlockState),
		byTxTreeRoot: make(map[[32]byte]uint64),
	}
}

func (m *MemoryStore) PutBlockState(_ context.Context, bs *BlockState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *bs
	m.blocks[bs.BlockNumber] = &cp
	m.byTxTreeRoot[bs.TxTreeRoot] = bs.BlockNumber

	if !m.latestFound || bs.BlockNumber > m.latest {
		m.latest = bs.BlockNumber
		m.latestFound = true
	}
	if bs.State == StateProved && (!m.provedFound || bs.BlockNumber > m.latestProved) {
		m.latestProved = bs.BlockNumber
		m.provedFound = true
	}
	return nil
}

func (m *MemoryStore) GetBlockState(_ context.Context, blockNumber uint64) (*BlockState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs, ok := m.blocks[blockNumber]
	if !ok {
		return nil, false, nil
	}
	cp := *bs
	return &cp, true, nil
}

func (m *MemoryStore) LatestBlockNumber(_ context.Context) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.latestFound, nil
}

func (m *MemoryStore) LatestProvedBlockNumber(_ context.Context) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestProved, m.provedFound, nil
}

func (m *MemoryStore) BlockNumberByTxTreeRoot(_ context.Context, root [32]byte) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byTxTreeRoot[root]
	return b, ok, nil
}
