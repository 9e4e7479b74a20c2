// Copyright 2025 Certen Protocol

package validityprover

import (
	"context"
	"testing"

	"github.com/zkpayments/rollup-core/pkg/merkle"
	"github.com/zkpayments/rollup-core/pkg/poseidon"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *MemoryStore) {
	t.Helper()
	accountTree, err := merkle.NewIndexedTree("account", 8, poseidon.Hash, nil)
	if err != nil {
		t.Fatalf("new account tree: %v", err)
	}
	blockTree, err := merkle.NewIncrementalTree("block", 16, poseidon.Hash, make([]byte, 32), nil)
	if err != nil {
		t.Fatalf("new block tree: %v", err)
	}
	depositTree, err := merkle.NewIncrementalTree("deposit", 16, poseidon.Hash, make([]byte, 32), nil)
	if err != nil {
		t.Fatalf("new deposit tree: %v", err)
	}

	store := NewMemoryStore()
	c, err := NewCoordinator(store, &Config{
		AccountTree: accountTree,
		BlockTree:   blockTree,
		DepositTree: depositTree,
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c, store
}

func TestBuildWitness_RegistrationBlock(t *testing.T) {
	c, store := newTestCoordinator(t)

	var pubkey [32]byte
	pubkey[31] = 1

	block := PostedBlock{
		BlockNumber:         1,
		IsRegistrationBlock: true,
		TxTreeRoot:          [32]byte{1},
		SenderPubkeys:       [][32]byte{pubkey},
	}
	block.DepositTreeRoot = toArray(c.depositTree.Root())

	if err := c.BuildWitness(context.Background(), block, nil); err != nil {
		t.Fatalf("BuildWitness: %v", err)
	}

	bs, found, err := store.GetBlockState(context.Background(), 1)
	if err != nil || !found {
		t.Fatalf("expected block state for block 1, found=%v err=%v", found, err)
	}
	if bs.State != StatePending {
		t.Fatalf("expected pending state, got %s", bs.State)
	}

	info, err := c.GetAccountInfo(pubkey)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info.AccountID == nil {
		t.Fatal("expected the registered pubkey to have an account id")
	}
}

func TestBuildWitness_RejectsMultipleNewSendersInRegistrationBlock(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var p1, p2 [32]byte
	p1[31] = 1
	p2[31] = 2

	block := PostedBlock{
		BlockNumber:         1,
		IsRegistrationBlock: true,
		TxTreeRoot:          [32]byte{1},
		SenderPubkeys:       [][32]byte{p1, p2},
	}
	block.DepositTreeRoot = toArray(c.depositTree.Root())

	if err := c.BuildWitness(context.Background(), block, nil); err == nil {
		t.Fatal("expected OnlyOneSenderAllowed-style rejection")
	}
}

func TestBuildWitness_DepositTreeRootMismatch(t *testing.T) {
	c, _ := newTestCoordinator(t)

	block := PostedBlock{
		BlockNumber:     1,
		TxTreeRoot:      [32]byte{1},
		DepositTreeRoot: [32]byte{0xFF}, // deliberately wrong
	}

	err := c.BuildWitness(context.Background(), block, nil)
	if err == nil {
		t.Fatal("expected a deposit tree root mismatch error")
	}
	if _, ok := err.(*DepositTreeRootMismatch); !ok {
		t.Fatalf("expected *DepositTreeRootMismatch, got %T", err)
	}
}

func toArray(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}
