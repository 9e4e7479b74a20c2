// Copyright 2025 Certen Protocol
//
// Redis-backed work queue for distributed transition-proof tasks
// (spec.md §4.3/§4.4): keys {pending, assigned(worker_id), completed} with a
// TTL-based lease. Grounded on spec.md's explicit description — no teacher
// analogue exists for a distributed work queue — using
// github.com/redis/go-redis/v9, the same client pkg/validityprover's leader
// election already wires.

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingKey   = "certen:queue:pending"   // sorted set, member=blockNumber, score=blockNumber
	assignedKey  = "certen:queue:assigned"  // hash, field=blockNumber, value=workerID
	completedKey = "certen:queue:completed" // set of completed blockNumbers
	leasePrefix  = "certen:queue:lease:"    // one string key per in-flight blockNumber, PX-expiring
)

// TransitionQueue is the redis-backed work queue described in spec.md
// §4.3's "Distributed proving" section.
type TransitionQueue struct {
	rdb      *redis.Client
	leaseTTL time.Duration
}

// NewTransitionQueue wires a TransitionQueue against an existing redis
// client. leaseTTL is the default lease window a worker's heartbeat must
// renew before it expires.
func NewTransitionQueue(rdb *redis.Client, leaseTTL time.Duration) *TransitionQueue {
	return &TransitionQueue{rdb: rdb, leaseTTL: leaseTTL}
}

// Enqueue adds block to the pending set. Re-enqueuing an already-pending
// block is a no-op (ZADD is idempotent on the member). A block that is
// currently assigned has already left the pending set, so Enqueue adds it
// back; its assignment record and lease are left in place (RequeueFailed
// clears both).
func (q *TransitionQueue) Enqueue(ctx context.Context, blockNumber uint64) error {
	if err := q.rdb.ZAdd(ctx, pendingKey, redis.Z{Score: float64(blockNumber), Member: blockNumber}).Err(); err != nil {
		return fmt.Errorf("queue: enqueue block %d: %w", blockNumber, err)
	}
	return nil
}

// EnqueueTransitionTask implements pkg/validityprover's TaskEnqueuer
// interface.
func (q *TransitionQueue) EnqueueTransitionTask(ctx context.Context, blockNumber uint64) error {
	return q.Enqueue(ctx, blockNumber)
}

// Assign pops the smallest pending block number, grants workerID a lease on
// it, and returns it. ok is false if nothing is pending.
func (q *TransitionQueue) Assign(ctx context.Context, workerID string) (blockNumber uint64, ok bool, err error) {
	popped, err := q.rdb.ZPopMin(ctx, pendingKey, 1).Result()
	if err != nil {
		return 0, false, fmt.Errorf("queue: pop smallest pending: %w", err)
	}
	if len(popped) == 0 {
		return 0, false, nil
	}

	blockNumber = uint64(popped[0].Score)
	if err := q.rdb.HSet(ctx, assignedKey, fmt.Sprint(blockNumber), workerID).Err(); err != nil {
		return 0, false, fmt.Errorf("queue: record assignment for block %d: %w", blockNumber, err)
	}
	if err := q.rdb.Set(ctx, leaseKey(blockNumber), workerID, q.leaseTTL).Err(); err != nil {
		return 0, false, fmt.Errorf("queue: set lease for block %d: %w", blockNumber, err)
	}
	return blockNumber, true, nil
}

// Heartbeat extends workerID's lease on blockNumber by the queue's
// configured leaseTTL. Returns ErrNotOwner if another worker now holds the
// lease (it expired and was reassigned), or ErrLeaseExpired if the lease is
// gone entirely.
func (q *TransitionQueue) Heartbeat(ctx context.Context, workerID string, blockNumber uint64) error {
	owner, err := q.rdb.Get(ctx, leaseKey(blockNumber)).Result()
	if err == redis.Nil {
		return ErrLeaseExpired
	}
	if err != nil {
		return fmt.Errorf("queue: read lease for block %d: %w", blockNumber, err)
	}
	if owner != workerID {
		return ErrNotOwner
	}
	if err := q.rdb.Expire(ctx, leaseKey(blockNumber), q.leaseTTL).Err(); err != nil {
		return fmt.Errorf("queue: extend lease for block %d: %w", blockNumber, err)
	}
	return nil
}

// Complete marks blockNumber done by workerID: removes the lease and
// assignment record, records completion. Returns ErrNotOwner if the lease
// had already expired and been reassigned elsewhere.
func (q *TransitionQueue) Complete(ctx context.Context, workerID string, blockNumber uint64) error {
	owner, err := q.rdb.Get(ctx, leaseKey(blockNumber)).Result()
	if err == redis.Nil {
		return ErrLeaseExpired
	}
	if err != nil {
		return fmt.Errorf("queue: read lease for block %d: %w", blockNumber, err)
	}
	if owner != workerID {
		return ErrNotOwner
	}

	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, leaseKey(blockNumber))
	pipe.HDel(ctx, assignedKey, fmt.Sprint(blockNumber))
	pipe.SAdd(ctx, completedKey, blockNumber)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: commit completion for block %d: %w", blockNumber, err)
	}
	return nil
}

// RequeueFailed moves blockNumber back to pending after a failed
// verification (spec.md §4.3: "if complete fails verification, the task is
// re-enqueued"). The caller is expected to separately rate-limit workerID.
func (q *TransitionQueue) RequeueFailed(ctx context.Context, blockNumber uint64) error {
	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, leaseKey(blockNumber))
	pipe.HDel(ctx, assignedKey, fmt.Sprint(blockNumber))
	pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(blockNumber), Member: blockNumber})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: requeue failed block %d: %w", blockNumber, err)
	}
	return nil
}

// ReclaimExpired scans every currently-assigned block and moves it back to
// pending if its lease key has expired without a Complete call — the
// "lease expires without complete" recovery path.
func (q *TransitionQueue) ReclaimExpired(ctx context.Context) (int, error) {
	assigned, err := q.rdb.HGetAll(ctx, assignedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: list assigned blocks: %w", err)
	}

	reclaimed := 0
	for blockStr := range assigned {
		exists, err := q.rdb.Exists(ctx, leaseKey(blockStr)).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("queue: check lease for block %s: %w", blockStr, err)
		}
		if exists > 0 {
			continue
		}
		var blockNumber uint64
		if _, err := fmt.Sscanf(blockStr, "%d", &blockNumber); err != nil {
			continue
		}
		if err := q.rdb.HDel(ctx, assignedKey, blockStr).Err(); err != nil {
			return reclaimed, fmt.Errorf("queue: clear stale assignment for block %s: %w", blockStr, err)
		}
		if err := q.rdb.ZAdd(ctx, pendingKey, redis.Z{Score: float64(blockNumber), Member: blockNumber}).Err(); err != nil {
			return reclaimed, fmt.Errorf("queue: requeue expired block %d: %w", blockNumber, err)
		}
		reclaimed++
	}
	return reclaimed, nil
}

func leaseKey(blockNumber interface{}) string {
	return fmt.Sprintf("%s%v", leasePrefix, blockNumber)
}
