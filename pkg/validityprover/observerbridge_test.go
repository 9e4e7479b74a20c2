// Copyright 2025 Certen Protocol

package validityprover

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/zkpayments/rollup-core/pkg/observer"
)

type fakeCheckpointStore struct {
	persistErr   error
	persisted    []observer.Event
	persistCalls int
}

func (f *fakeCheckpointStore) LastSyncedBlock(ctx context.Context, eventType observer.EventType) (uint64, bool, error) {
	return 0, false, nil
}

func (f *fakeCheckpointStore) LastSequence(ctx context.Context, eventType observer.EventType) (uint64, bool, error) {
	return 0, false, nil
}

func (f *fakeCheckpointStore) PersistBatch(ctx context.Context, eventType observer.EventType, events []observer.Event, newSyncedBlock uint64) error {
	f.persistCalls++
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, events...)
	return nil
}

func blockPostedEvent(t *testing.T, blockNumber uint64, depositRoot [32]byte) observer.Event {
	t.Helper()
	payload := observer.BlockPostedPayload{
		BlockNumber:     blockNumber,
		PrevBlockHash:   "0x00",
		DepositTreeRoot: "0x" + hexString(depositRoot),
		TxTreeRoot:      "0x01",
		BuilderAddress:  "0xbuilder",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return observer.Event{Type: observer.EventBlockPosted, Sequence: blockNumber, Payload: raw}
}

func hexString(b [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

func TestWitnessingCheckpointStore_BuildsWitnessForBlockPosted(t *testing.T) {
	coordinator, store := newTestCoordinator(t)
	underlying := &fakeCheckpointStore{}
	w := NewWitnessingCheckpointStore(underlying, coordinator, nil, nil)

	depositRoot := toArray(coordinator.depositTree.Root())
	event := blockPostedEvent(t, 1, depositRoot)

	if err := w.PersistBatch(context.Background(), observer.EventBlockPosted, []observer.Event{event}, 100); err != nil {
		t.Fatalf("PersistBatch: %v", err)
	}
	if underlying.persistCalls != 1 {
		t.Fatalf("expected underlying PersistBatch called once, got %d", underlying.persistCalls)
	}

	bs, found, err := store.GetBlockState(context.Background(), 1)
	if err != nil || !found {
		t.Fatalf("expected block state for block 1, found=%v err=%v", found, err)
	}
	if bs.BlockNumber != 1 {
		t.Fatalf("unexpected block state: %+v", bs)
	}
}

func TestWitnessingCheckpointStore_IgnoresNonBlockPostedEvents(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	underlying := &fakeCheckpointStore{}
	w := NewWitnessingCheckpointStore(underlying, coordinator, nil, nil)

	event := observer.Event{Type: observer.EventDeposited, Sequence: 1, Payload: []byte(`{}`)}
	if err := w.PersistBatch(context.Background(), observer.EventDeposited, []observer.Event{event}, 50); err != nil {
		t.Fatalf("PersistBatch: %v", err)
	}
	if underlying.persistCalls != 1 {
		t.Fatalf("expected underlying PersistBatch called once, got %d", underlying.persistCalls)
	}

	if _, found, _ := coordinator.store.GetBlockState(context.Background(), 1); found {
		t.Fatal("expected no witness to be built for a non-BlockPosted event")
	}
}

func TestWitnessingCheckpointStore_ShortCircuitsOnUnderlyingFailure(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	underlying := &fakeCheckpointStore{persistErr: errors.New("boom")}
	w := NewWitnessingCheckpointStore(underlying, coordinator, nil, nil)

	depositRoot := toArray(coordinator.depositTree.Root())
	event := blockPostedEvent(t, 1, depositRoot)

	if err := w.PersistBatch(context.Background(), observer.EventBlockPosted, []observer.Event{event}, 100); err == nil {
		t.Fatal("expected PersistBatch to propagate underlying store error")
	}

	if _, found, _ := coordinator.store.GetBlockState(context.Background(), 1); found {
		t.Fatal("expected no witness to be built when the underlying store fails")
	}
}
