// Copyright 2025 Certen Protocol
//
// CheckpointStore implementations: an in-memory store for tests and a
// Postgres-backed store for production, grounded on the teacher's
// database/repository_proof.go query style and pkg/merkle/store.go's
// "never mutate in place" timestamp discipline.

package observer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryCheckpointStore is a CheckpointStore backed by in-process maps, used
// in tests and single-process deployments.
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	syncedBlock map[EventType]uint64
	sequence    map[EventType]uint64
	events      map[EventType][]Event
}

// NewMemoryCheckpointStore creates an empty MemoryCheckpointStore.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		syncedBlock: make(map[EventType]uint64),
		sequence:    make(map[EventType]uint64),
		events:      make(map[EventType][]Event),
	}
}

func (m *MemoryCheckpointStore) LastSyncedBlock(_ context.Context, eventType EventType) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.syncedBlock[eventType]
	return b, ok, nil
}

func (m *MemoryCheckpointStore) LastSequence(_ context.Context, eventType EventType) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sequence[eventType]
	return s, ok, nil
}

func (m *MemoryCheckpointStore) PersistBatch(_ context.Context, eventType EventType, events []Event, newSyncedBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.syncedBlock[eventType] = newSyncedBlock
	if len(events) > 0 {
		m.events[eventType] = append(m.events[eventType], events...)
		m.sequence[eventType] = events[len(events)-1].Sequence
	}
	return nil
}

// Events returns a copy of every event persisted for eventType, in
// acceptance order. Exposed for tests and operator inspection; not part of
// the CheckpointStore interface.
func (m *MemoryCheckpointStore) Events(eventType EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events[eventType]))
	copy(out, m.events[eventType])
	return out
}

// PostgresCheckpointStore persists events and checkpoints in Postgres.
// Target schema:
//
//	CREATE TABLE observer_checkpoints (
//	    event_type    TEXT PRIMARY KEY,
//	    synced_block  BIGINT NOT NULL,
//	    last_sequence BIGINT NOT NULL
//	);
//	CREATE TABLE observer_events (
//	    event_type       TEXT NOT NULL,
//	    sequence         BIGINT NOT NULL,
//	    eth_block_number BIGINT NOT NULL,
//	    tx_hash          TEXT NOT NULL,
//	    payload          JSONB NOT NULL,
//	    PRIMARY KEY (event_type, sequence)
//	);
type PostgresCheckpointStore struct {
	db *sql.DB
}

// NewPostgresCheckpointStore wraps an existing *sql.DB connection pool.
func NewPostgresCheckpointStore(db *sql.DB) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{db: db}
}

func (p *PostgresCheckpointStore) LastSyncedBlock(ctx context.Context, eventType EventType) (uint64, bool, error) {
	var block int64
	err := p.db.QueryRowContext(ctx,
		`SELECT synced_block FROM observer_checkpoints WHERE event_type = $1`,
		string(eventType),
	).Scan(&block)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query last synced block: %w", err)
	}
	return uint64(block), true, nil
}

func (p *PostgresCheckpointStore) LastSequence(ctx context.Context, eventType EventType) (uint64, bool, error) {
	var seq int64
	err := p.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM observer_checkpoints WHERE event_type = $1`,
		string(eventType),
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query last sequence: %w", err)
	}
	return uint64(seq), true, nil
}

func (p *PostgresCheckpointStore) PersistBatch(ctx context.Context, eventType EventType, events []Event, newSyncedBlock uint64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		payload := ev.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO observer_events (event_type, sequence, eth_block_number, tx_hash, payload)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (event_type, sequence) DO NOTHING`,
			string(eventType), int64(ev.Sequence), int64(ev.EthBlockNumber), ev.TxHash, []byte(payload),
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	var lastSeq int64
	if len(events) > 0 {
		lastSeq = int64(events[len(events)-1].Sequence)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO observer_checkpoints (event_type, synced_block, last_sequence)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_type) DO UPDATE SET
		     synced_block = EXCLUDED.synced_block,
		     last_sequence = GREATEST(observer_checkpoints.last_sequence, EXCLUDED.last_sequence)`,
		string(eventType), int64(newSyncedBlock), lastSeq,
	); err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}

	return tx.Commit()
}
