// Copyright 2025 Certen Protocol

package withdrawal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type fakeChainer struct {
	shouldFail bool
}

func (f *fakeChainer) ChainProofs(ctx context.Context, records []Record) ([]byte, error) {
	if f.shouldFail {
		return nil, errors.New("chaining failed")
	}
	return []byte("chained"), nil
}

type fakeWrapper struct {
	shouldFail bool
}

func (f *fakeWrapper) WrapProof(ctx context.Context, chained []byte) ([]byte, error) {
	if f.shouldFail {
		return nil, errors.New("wrapping failed")
	}
	return []byte("wrapped"), nil
}

type fakeRelayer struct {
	needClaim  bool
	shouldFail bool
}

func (f *fakeRelayer) RelayWithdrawals(ctx context.Context, wrapped []byte, records []Record) (bool, error) {
	if f.shouldFail {
		return false, errors.New("relay failed")
	}
	return f.needClaim, nil
}

func seedRequested(t *testing.T, repo Repository, n byte) uuid.UUID {
	t.Helper()
	rec := &Record{Nullifier: [32]byte{n}}
	if err := repo.CreateRequested(context.Background(), rec); err != nil {
		t.Fatalf("seed requested: %v", err)
	}
	return rec.UUID
}

func TestAggregator_RelayOnce_SuccessPath(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRequested(t, repo, 1)

	agg := NewAggregator(repo, &fakeChainer{}, &fakeWrapper{}, &fakeRelayer{}, AggregatorConfig{MaxBatch: 10})
	if err := agg.RelayOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := repo.GetByUUID(context.Background(), id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != StatusSuccess {
		t.Fatalf("expected Success, got %s", rec.Status)
	}
}

func TestAggregator_RelayOnce_NeedClaimPath(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRequested(t, repo, 2)

	agg := NewAggregator(repo, &fakeChainer{}, &fakeWrapper{}, &fakeRelayer{needClaim: true}, AggregatorConfig{MaxBatch: 10})
	if err := agg.RelayOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := repo.GetByUUID(context.Background(), id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != StatusNeedClaim {
		t.Fatalf("expected NeedClaim, got %s", rec.Status)
	}
}

func TestAggregator_RelayOnce_ChainFailureMarksFailed(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRequested(t, repo, 3)

	agg := NewAggregator(repo, &fakeChainer{shouldFail: true}, &fakeWrapper{}, &fakeRelayer{}, AggregatorConfig{MaxBatch: 10})
	if err := agg.RelayOnce(context.Background()); err == nil {
		t.Fatal("expected chaining error")
	}

	rec, err := repo.GetByUUID(context.Background(), id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != StatusFailed {
		t.Fatalf("expected Failed, got %s", rec.Status)
	}
}

func TestAggregator_RelayOnce_RelayFailureMarksFailedAfterRelayed(t *testing.T) {
	repo := NewMemoryRepository()
	id := seedRequested(t, repo, 4)

	agg := NewAggregator(repo, &fakeChainer{}, &fakeWrapper{}, &fakeRelayer{shouldFail: true}, AggregatorConfig{MaxBatch: 10})
	if err := agg.RelayOnce(context.Background()); err == nil {
		t.Fatal("expected relay error")
	}

	rec, err := repo.GetByUUID(context.Background(), id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != StatusFailed {
		t.Fatalf("expected Failed, got %s", rec.Status)
	}
}

func TestAggregator_RelayOnce_NoRequestedRecordsIsNoop(t *testing.T) {
	repo := NewMemoryRepository()
	agg := NewAggregator(repo, &fakeChainer{}, &fakeWrapper{}, &fakeRelayer{}, AggregatorConfig{MaxBatch: 10})
	if err := agg.RelayOnce(context.Background()); err != nil {
		t.Fatalf("expected nil error on empty queue, got %v", err)
	}
}

func TestAggregator_StartStopIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	agg := NewAggregator(repo, &fakeChainer{}, &fakeWrapper{}, &fakeRelayer{}, AggregatorConfig{MaxBatch: 10})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg.Start(ctx)
	agg.Start(ctx) // no-op
	agg.Stop()
	agg.Stop() // no-op
}
