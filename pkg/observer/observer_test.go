// Copyright 2025 Certen Protocol

package observer

import (
	"context"
	"testing"
	"time"
)

// fakeFetcher returns a fixed set of events regardless of the requested
// block range, for exercising gap detection deterministically.
type fakeFetcher struct {
	latest uint64
	events []Event
}

func (f *fakeFetcher) LatestBlock(_ context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeFetcher) FetchEvents(_ context.Context, _ EventType, _, _ uint64) ([]Event, error) {
	return f.events, nil
}

func TestSyncEventType_AcceptsGapFreeSequence(t *testing.T) {
	store := NewMemoryCheckpointStore()
	fetcher := &fakeFetcher{
		latest: 10,
		events: []Event{
			{Type: EventBlockPosted, Sequence: 1, EthBlockNumber: 1},
			{Type: EventBlockPosted, Sequence: 2, EthBlockNumber: 2},
			{Type: EventBlockPosted, Sequence: 3, EthBlockNumber: 3},
		},
	}

	obs, err := New(store, map[EventType]EventFetcher{EventBlockPosted: fetcher}, &Config{
		PollInterval:           time.Hour,
		ThreadHeartbeatTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := obs.syncEventType(context.Background(), EventBlockPosted, fetcher); err != nil {
		t.Fatalf("syncEventType: %v", err)
	}

	got := store.Events(EventBlockPosted)
	if len(got) != 3 {
		t.Fatalf("expected 3 persisted events, got %d", len(got))
	}
	seq, found, err := store.LastSequence(context.Background(), EventBlockPosted)
	if err != nil || !found || seq != 3 {
		t.Fatalf("expected last sequence 3, got %d (found=%v err=%v)", seq, found, err)
	}
}

// TestSyncEventType_DetectsGap mirrors spec.md's end-to-end scenario 6:
// injecting events [1,2,3,5] persists only the prefix [1,2,3] and raises a
// GapError{expected:4, got:5} without advancing the checkpoint past 3.
func TestSyncEventType_DetectsGap(t *testing.T) {
	store := NewMemoryCheckpointStore()
	fetcher := &fakeFetcher{
		latest: 10,
		events: []Event{
			{Type: EventBlockPosted, Sequence: 1, EthBlockNumber: 1},
			{Type: EventBlockPosted, Sequence: 2, EthBlockNumber: 2},
			{Type: EventBlockPosted, Sequence: 3, EthBlockNumber: 3},
			{Type: EventBlockPosted, Sequence: 5, EthBlockNumber: 5},
		},
	}

	obs, err := New(store, map[EventType]EventFetcher{EventBlockPosted: fetcher}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = obs.syncEventType(context.Background(), EventBlockPosted, fetcher)
	if err == nil {
		t.Fatal("expected a gap error")
	}
	gapErr, ok := err.(*GapError)
	if !ok {
		t.Fatalf("expected *GapError, got %T: %v", err, err)
	}
	if gapErr.Expected != 4 || gapErr.Got != 5 {
		t.Fatalf("expected GapError{expected:4, got:5}, got %+v", gapErr)
	}

	got := store.Events(EventBlockPosted)
	if len(got) != 3 {
		t.Fatalf("expected 3 persisted events (the valid prefix), got %d", len(got))
	}
	seq, found, err := store.LastSequence(context.Background(), EventBlockPosted)
	if err != nil || !found || seq != 3 {
		t.Fatalf("expected checkpoint sequence to stop at 3, got %d (found=%v err=%v)", seq, found, err)
	}

	// Re-running the sync against the same (unresolved) fetch window
	// re-raises the same gap rather than silently dropping event 5.
	err = obs.syncEventType(context.Background(), EventBlockPosted, fetcher)
	if _, ok := err.(*GapError); !ok {
		t.Fatalf("expected the gap to persist on retry, got %v", err)
	}
}

func TestSyncEventType_NoNewEventsAdvancesBlockCheckpointOnly(t *testing.T) {
	store := NewMemoryCheckpointStore()
	fetcher := &fakeFetcher{latest: 42}

	obs, err := New(store, map[EventType]EventFetcher{EventDeposited: fetcher}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := obs.syncEventType(context.Background(), EventDeposited, fetcher); err != nil {
		t.Fatalf("syncEventType: %v", err)
	}

	block, found, err := store.LastSyncedBlock(context.Background(), EventDeposited)
	if err != nil || !found || block != 42 {
		t.Fatalf("expected synced block 42, got %d (found=%v err=%v)", block, found, err)
	}
	if _, found, _ := store.LastSequence(context.Background(), EventDeposited); found {
		t.Fatal("expected no sequence to be recorded when no events were observed")
	}
}

func TestRateManager_UnhealthyUntilFirstBeat(t *testing.T) {
	rm := NewRateManager([]EventType{EventBlockPosted}, time.Minute)
	if healthy, _ := rm.Healthy(); healthy {
		t.Fatal("expected unhealthy before any heartbeat")
	}
	rm.Beat(EventBlockPosted)
	if healthy, _ := rm.Healthy(); !healthy {
		t.Fatal("expected healthy immediately after a heartbeat")
	}
}
