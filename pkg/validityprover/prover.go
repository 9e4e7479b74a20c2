// Copyright 2025 Certen Protocol
//
// Coordinator: transforms the observer's stream into a chain of recursive
// validity proofs, one per posted block, per spec.md §4.3. Witness
// construction is leader-only and synchronous; proving itself is
// distributed across workers via pkg/queue (§4.4).

package validityprover

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/zkpayments/rollup-core/pkg/merkle"
	"github.com/zkpayments/rollup-core/pkg/poseidon"
)

// DepositTreeRootMismatch is raised when a block's recomputed deposit-tree
// root disagrees with the root recorded on the corresponding BlockPosted
// event.
type DepositTreeRootMismatch struct {
	BlockNumber uint64
	Computed    [32]byte
	OnChain     [32]byte
}

func (e *DepositTreeRootMismatch) Error() string {
	return fmt.Sprintf("validityprover: deposit tree root mismatch at block %d: computed %x, on-chain %x",
		e.BlockNumber, e.Computed, e.OnChain)
}

// TaskEnqueuer hands a newly witnessed block to the distributed proving
// layer (pkg/queue). Kept as an interface so the coordinator does not
// import pkg/queue directly.
type TaskEnqueuer interface {
	EnqueueTransitionTask(ctx context.Context, blockNumber uint64) error
}

// Coordinator is the Validity Prover's core: witness construction plus the
// read-query surface exposed to the Client SDK and Withdrawal Server.
type Coordinator struct {
	store       Store
	sm          *StateMachine
	accountTree *merkle.IndexedTree
	blockTree   *merkle.IncrementalTree
	depositTree *merkle.IncrementalTree
	enqueuer    TaskEnqueuer
	logger      *log.Logger

	allowSpeculativeAssignment bool
}

// Config holds Coordinator wiring.
type Config struct {
	AccountTree *merkle.IndexedTree
	BlockTree   *merkle.IncrementalTree
	DepositTree *merkle.IncrementalTree
	Enqueuer    TaskEnqueuer
	Logger      *log.Logger

	// AllowSpeculativeAssignment, when true, lets the coordinator assign
	// block b's transition task before block b-1's proof has completed.
	// spec.md §4.3 requires this default off: proof chaining is strictly
	// sequential unless explicitly configured otherwise.
	AllowSpeculativeAssignment bool
}

// NewCoordinator wires a Coordinator from its trees, store, and queue.
func NewCoordinator(store Store, cfg *Config) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("validityprover: store cannot be nil")
	}
	if cfg == nil || cfg.AccountTree == nil || cfg.BlockTree == nil || cfg.DepositTree == nil {
		return nil, fmt.Errorf("validityprover: account/block/deposit trees are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[ValidityProver] ", log.LstdFlags)
	}
	return &Coordinator{
		store:                      store,
		sm:                         NewStateMachine(store),
		accountTree:                cfg.AccountTree,
		blockTree:                  cfg.BlockTree,
		depositTree:                cfg.DepositTree,
		enqueuer:                   cfg.Enqueuer,
		logger:                     logger,
		allowSpeculativeAssignment: cfg.AllowSpeculativeAssignment,
	}, nil
}

// PostedBlock is the minimal decoded shape of a BlockPosted event the
// coordinator needs to build a witness.
type PostedBlock struct {
	BlockNumber         uint64
	IsRegistrationBlock bool
	TxTreeRoot          [32]byte
	PrevBlockHash       [32]byte
	DepositTreeRoot     [32]byte // on-chain claimed root, checked in step 5
	SenderPubkeys       [][32]byte
	SignatureIncluded   []bool // parallel to SenderPubkeys
}

// PendingDeposit is a DepositLeafInserted event observed before this block's
// DepositTreeRoot snapshot, to be folded into the deposit tree.
type PendingDeposit struct {
	DepositIndex uint64
	DepositHash  [32]byte
}

// BuildWitness runs the synchronous, leader-only block-witness construction
// steps of spec.md §4.3 for a single posted block, then (if an enqueuer is
// configured) hands the block off for distributed proving.
func (c *Coordinator) BuildWitness(ctx context.Context, block PostedBlock, pendingDeposits []PendingDeposit) error {
	if block.IsRegistrationBlock {
		if err := c.applyRegistrationBlock(ctx, block); err != nil {
			return err
		}
	} else {
		if err := c.applyNonRegistrationBlock(ctx, block); err != nil {
			return err
		}
	}

	blockHash := computeBlockHash(block)
	blockPos, blockTS, blockRoot, err := c.blockTree.Append(ctx, blockHash[:])
	if err != nil {
		return fmt.Errorf("append block hash tree: %w", err)
	}
	_ = blockPos

	for _, d := range pendingDeposits {
		if _, _, _, err := c.depositTree.Append(ctx, d.DepositHash[:]); err != nil {
			return fmt.Errorf("append deposit tree (deposit %d): %w", d.DepositIndex, err)
		}
	}
	depositRoot := c.depositTree.Root()
	var computedDepositRoot [32]byte
	copy(computedDepositRoot[:], depositRoot)
	if computedDepositRoot != block.DepositTreeRoot {
		return &DepositTreeRootMismatch{
			BlockNumber: block.BlockNumber,
			Computed:    computedDepositRoot,
			OnChain:     block.DepositTreeRoot,
		}
	}

	accountRoot := c.accountTree.Root()
	var accountRootFixed [32]byte
	copy(accountRootFixed[:], accountRoot)

	bs := &BlockState{
		BlockNumber:             block.BlockNumber,
		BlockHash:               blockHash,
		TxTreeRoot:              block.TxTreeRoot,
		DepositTreeRootSnapshot: uint64(c.depositTree.Len()),
		AccountTreeSnapshot:     uint64(c.accountTree.Len()),
		BlockTreeSnapshot:       blockTS,
		ValidityWitness:         encodeWitness(block, blockHash, accountRootFixed, computedDepositRoot, blockRoot),
		State:                   StatePending,
	}
	if err := c.store.PutBlockState(ctx, bs); err != nil {
		return fmt.Errorf("persist block state: %w", err)
	}

	if c.enqueuer != nil {
		if err := c.enqueuer.EnqueueTransitionTask(ctx, block.BlockNumber); err != nil {
			return fmt.Errorf("enqueue transition task: %w", err)
		}
	}
	return nil
}

func (c *Coordinator) applyRegistrationBlock(ctx context.Context, block PostedBlock) error {
	newSenders := 0
	for _, pubkey := range block.SenderPubkeys {
		if _, found := c.accountTree.Index(pubkey); found {
			continue // already registered; not a new sender
		}
		newSenders++
		if newSenders > 1 {
			return fmt.Errorf("validityprover: registration block %d has more than one new sender", block.BlockNumber)
		}
		if _, _, _, err := c.accountTree.Insert(ctx, pubkey, 0); err != nil {
			return fmt.Errorf("insert new account (block %d): %w", block.BlockNumber, err)
		}
	}
	return nil
}

func (c *Coordinator) applyNonRegistrationBlock(ctx context.Context, block PostedBlock) error {
	for i, pubkey := range block.SenderPubkeys {
		if i >= len(block.SignatureIncluded) || !block.SignatureIncluded[i] {
			continue
		}
		position, found := c.accountTree.Index(pubkey)
		if !found {
			return fmt.Errorf("validityprover: sender %x not found in account tree at block %d", pubkey, block.BlockNumber)
		}
		leaf, err := c.accountTree.GetLeaf(position)
		if err != nil {
			return fmt.Errorf("get account leaf: %w", err)
		}
		if _, _, err := c.accountTree.Update(ctx, position, merkle.IndexedLeaf{
			Key:       leaf.Key,
			Value:     block.BlockNumber,
			NextKey:   leaf.NextKey,
			NextIndex: leaf.NextIndex,
		}); err != nil {
			return fmt.Errorf("update account leaf (block %d): %w", block.BlockNumber, err)
		}
	}
	return nil
}

func computeBlockHash(block PostedBlock) [32]byte {
	var out [32]byte
	copy(out[:], poseidon.Hash(block.PrevBlockHash[:], block.TxTreeRoot[:]))
	return out
}

func encodeWitness(block PostedBlock, blockHash, accountRoot, depositRoot, blockTreeRoot [32]byte) []byte {
	var buf bytes.Buffer
	buf.Write(blockHash[:])
	buf.Write(accountRoot[:])
	buf.Write(depositRoot[:])
	buf.Write(blockTreeRoot[:])
	return buf.Bytes()
}

// --- Queries exposed to the Client SDK and Withdrawal Server ---

// BlockNumber returns the latest observed (witnessed) block number.
func (c *Coordinator) BlockNumber(ctx context.Context) (uint64, bool, error) {
	return c.store.LatestBlockNumber(ctx)
}

// ValidityProofBlockNumber returns the latest block number with a persisted
// validity proof.
func (c *Coordinator) ValidityProofBlockNumber(ctx context.Context) (uint64, bool, error) {
	return c.store.LatestProvedBlockNumber(ctx)
}

// UpdateWitness is the response shape for GetUpdateWitness.
type UpdateWitness struct {
	ValidityProof          []byte
	BlockMerkleProof       *merkle.InclusionProof
	AccountMembershipProof *merkle.InclusionProof
}

// GetUpdateWitness returns the proof bundle a client needs to advance its
// balance proof from rootBlock to leafBlock for pubkey.
func (c *Coordinator) GetUpdateWitness(ctx context.Context, pubkey [32]byte, rootBlock, leafBlock uint64, isPrevAccountTree bool) (*UpdateWitness, error) {
	rootState, found, err := c.store.GetBlockState(ctx, rootBlock)
	if err != nil {
		return nil, fmt.Errorf("get root block state: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("validityprover: no block state for root block %d", rootBlock)
	}
	if rootState.ValidityProof == nil {
		return nil, fmt.Errorf("validityprover: block %d has no persisted validity proof yet", rootBlock)
	}

	blockProof, err := c.blockTree.GenerateProof(int(leafBlock))
	if err != nil {
		return nil, fmt.Errorf("generate block merkle proof: %w", err)
	}

	position, found := c.accountTree.Index(pubkey)
	if !found {
		return nil, fmt.Errorf("validityprover: pubkey %x not found in account tree", pubkey)
	}
	acctProof, err := c.accountTree.GenerateProof(position)
	if err != nil {
		return nil, fmt.Errorf("generate account membership proof: %w", err)
	}

	_ = isPrevAccountTree // selects which tree snapshot a caller reads; tree-id scoping is the caller's responsibility

	return &UpdateWitness{
		ValidityProof:          rootState.ValidityProof,
		BlockMerkleProof:       blockProof,
		AccountMembershipProof: acctProof,
	}, nil
}

// GetBlockNumberByTxTreeRoot returns the block that posted the given
// tx-tree root, if any has ever been posted with it.
func (c *Coordinator) GetBlockNumberByTxTreeRoot(ctx context.Context, root [32]byte) (uint64, bool, error) {
	return c.store.BlockNumberByTxTreeRoot(ctx, root)
}

// DepositInfo is the response shape for GetDepositInfo.
type DepositInfo struct {
	DepositID    uint64
	DepositIndex *uint64
	BlockNumber  *uint64
	TokenIndex   uint32
	L1TxHash     string
}

// DepositLookup resolves deposit metadata not owned by the Coordinator's own
// store (observer-persisted event data); injected so the Coordinator stays
// decoupled from pkg/observer's storage internals.
type DepositLookup interface {
	Lookup(ctx context.Context, depositHash [32]byte) (*DepositInfo, bool, error)
}

// GetDepositInfo proxies to the configured DepositLookup.
func (c *Coordinator) GetDepositInfo(ctx context.Context, depositHash [32]byte, lookup DepositLookup) (*DepositInfo, bool, error) {
	return lookup.Lookup(ctx, depositHash)
}

// AccountInfo is the response shape for GetAccountInfo.
type AccountInfo struct {
	AccountID       *uint64
	LastBlockNumber uint64
}

// GetAccountInfo returns account_id (if registered) and the monotone
// last_block_number lower bound, per spec.md §4.3.
func (c *Coordinator) GetAccountInfo(pubkey [32]byte) (*AccountInfo, error) {
	position, found := c.accountTree.Index(pubkey)
	if !found {
		return &AccountInfo{}, nil
	}
	leaf, err := c.accountTree.GetLeaf(position)
	if err != nil {
		return nil, fmt.Errorf("get account leaf: %w", err)
	}
	id := uint64(position)
	return &AccountInfo{AccountID: &id, LastBlockNumber: leaf.Value}, nil
}

// AssignableBlock returns the smallest pending block number ready for a
// worker to claim, honoring strict sequential proof chaining unless
// speculative assignment is enabled.
func (c *Coordinator) AssignableBlock(ctx context.Context, pending []uint64) (uint64, bool, error) {
	if len(pending) == 0 {
		return 0, false, nil
	}
	smallest := pending[0]
	for _, b := range pending[1:] {
		if b < smallest {
			smallest = b
		}
	}
	if c.allowSpeculativeAssignment || smallest == 0 {
		return smallest, true, nil
	}
	prev, found, err := c.store.GetBlockState(ctx, smallest-1)
	if err != nil {
		return 0, false, fmt.Errorf("get predecessor block state: %w", err)
	}
	if !found || prev.State != StateProved {
		return 0, false, nil // b-1 not yet completed; nothing assignable
	}
	return smallest, true, nil
}
