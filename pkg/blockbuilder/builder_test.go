// Copyright 2025 Certen Protocol

package blockbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

type fakeRollupPoster struct {
	shouldFail bool
	posted     []PostedBlockTx
}

func (f *fakeRollupPoster) PostBlock(ctx context.Context, block PostedBlockTx) ([32]byte, error) {
	if f.shouldFail {
		return [32]byte{}, context.DeadlineExceeded
	}
	f.posted = append(f.posted, block)
	return [32]byte{0xAA}, nil
}

func newTestBuilder(t *testing.T, rollup RollupPoster) (*Builder, *KindStateMachine) {
	t.Helper()
	sm := NewKindStateMachine(KindNonRegistration)
	queue := NewRequestQueue(KindNonRegistration, 16)
	nonces := NewNonceManager(&fakeChainNonceSource{next: 1}, time.Minute)
	poster := NewPoster(KindNonRegistration, sm, nonces, rollup)

	cfg := DefaultConfig()
	cfg.AcceptingTxsWindow = 5 * time.Millisecond

	b := NewBuilder(KindNonRegistration, cfg, sm, queue, poster, 8, func([32]byte) *bls12.PublicKey { return nil }, 1)
	return b, sm
}

func TestBuilder_ForceEmptyBlockPostsAndAdvances(t *testing.T) {
	rollup := &fakeRollupPoster{}
	b, sm := newTestBuilder(t, rollup)

	if err := b.ForceEmptyBlock(context.Background()); err != nil {
		t.Fatalf("ForceEmptyBlock: %v", err)
	}
	if len(rollup.posted) != 1 {
		t.Fatalf("posted %d blocks, want 1", len(rollup.posted))
	}
	if rollup.posted[0].BlockNumber != 1 {
		t.Fatalf("posted block number = %d, want 1", rollup.posted[0].BlockNumber)
	}
	if sm.State() != StatePausing {
		t.Fatalf("state = %s, want pausing after successful post", sm.State())
	}
	if b.nextBlockNumber != 2 {
		t.Fatalf("nextBlockNumber = %d, want 2", b.nextBlockNumber)
	}
}

func TestBuilder_FailedPostResetsToPausingAndBacksOff(t *testing.T) {
	rollup := &fakeRollupPoster{shouldFail: true}
	b, sm := newTestBuilder(t, rollup)

	start := time.Now()
	err := b.ForceEmptyBlock(context.Background())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected error from failing rollup poster")
	}
	if sm.State() != StatePausing {
		t.Fatalf("state = %s, want pausing after failed post", sm.State())
	}
	if b.nextBlockNumber != 1 {
		t.Fatalf("nextBlockNumber advanced despite failed post: %d", b.nextBlockNumber)
	}
	if elapsed < PostBackoff {
		t.Fatalf("did not observe post backoff: elapsed %v, want >= %v", elapsed, PostBackoff)
	}
}

func TestBuilder_RunCycleDrainsQueueAndPosts(t *testing.T) {
	rollup := &fakeRollupPoster{}
	b, _ := newTestBuilder(t, rollup)

	_, err := b.Submit(context.Background(), pubkeyFor(1), []byte("tx1"), nil, false, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(rollup.posted) != 1 {
		t.Fatalf("posted %d blocks, want 1", len(rollup.posted))
	}
	if len(rollup.posted[0].SenderFlags) != 1 {
		t.Fatalf("sender flags = %d, want 1 request reflected", len(rollup.posted[0].SenderFlags))
	}
}

type fakeProverSyncChecker struct {
	caughtUp bool
}

func (f *fakeProverSyncChecker) IsCaughtUp(ctx context.Context) (bool, error) {
	return f.caughtUp, nil
}

func TestBuilder_SubmitRejectsWhenProverBehind(t *testing.T) {
	rollup := &fakeRollupPoster{}
	b, _ := newTestBuilder(t, rollup)

	_, err := b.Submit(context.Background(), pubkeyFor(1), []byte("tx1"), nil, false, &fakeProverSyncChecker{caughtUp: false})
	rej, ok := err.(*RejectionError)
	if !ok || rej.Reason != RejectProverBehind {
		t.Fatalf("expected validity_prover_behind rejection, got %v", err)
	}
}
