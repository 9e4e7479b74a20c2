// Copyright 2025 Certen Protocol
//
// RedisNonceManager shares builder_nonce reservations across a
// horizontally-scaled block-builder cluster via a single atomic Redis
// counter, enforcing the same "nonce 0 is sentinel" rule as the in-memory
// NonceManager: both clamp the chain's next-nonce to at least 1 before
// handing anything out. See nonce_test.go for the in-memory backend's
// nonce-0 sentinel coverage, which this backend's seeding step mirrors.

package blockbuilder

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisNonceManager reserves nonces via INCR on a shared counter key,
// seeded once from the chain's next-nonce so a freshly-deployed cluster
// does not reuse nonces the chain has already seen.
type RedisNonceManager struct {
	rdb        *redis.Client
	counterKey string
	source     ChainNonceSource
}

// NewRedisNonceManager creates a RedisNonceManager. counterKey should be
// unique per deployment (e.g. "certen:nonce:registration").
func NewRedisNonceManager(rdb *redis.Client, counterKey string, source ChainNonceSource) *RedisNonceManager {
	return &RedisNonceManager{rdb: rdb, counterKey: counterKey, source: source}
}

// Reserve atomically increments the shared counter and returns the new
// value, seeding it from the chain's next nonce (minus one, since INCR
// returns the post-increment value) on first use.
func (n *RedisNonceManager) Reserve(ctx context.Context) (uint64, error) {
	seeded, err := n.rdb.Exists(ctx, n.counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("nonce manager (redis): check counter existence: %w", err)
	}
	if seeded == 0 {
		onChainNext, err := n.source.NextOnChainNonce(ctx)
		if err != nil {
			return 0, fmt.Errorf("nonce manager (redis): refresh from chain: %w", err)
		}
		if onChainNext < 1 {
			onChainNext = 1
		}
		// SetNX seeds counter-1 so the first INCR below yields onChainNext.
		if err := n.rdb.SetNX(ctx, n.counterKey, onChainNext-1, 0).Err(); err != nil {
			return 0, fmt.Errorf("nonce manager (redis): seed counter: %w", err)
		}
	}

	next, err := n.rdb.Incr(ctx, n.counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("nonce manager (redis): increment counter: %w", err)
	}
	if next < 1 {
		// Defensive: should be unreachable given the seed above, but never
		// hand out the sentinel value.
		return 1, nil
	}
	return uint64(next), nil
}

// Confirm does nothing: the shared counter keeps no per-nonce state, so a
// reserved nonce needs no settling once its post lands.
func (n *RedisNonceManager) Confirm(nonce uint64) {}

// Release does nothing: the shared counter only moves forward, so a
// released nonce is not handed out again.
func (n *RedisNonceManager) Release(nonce uint64) {}
