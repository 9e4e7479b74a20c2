// Copyright 2025 Certen Protocol
//
// NonceManager reserves monotone builder_nonce values for on-chain block
// posts, per spec.md §4.5. Grounded on pkg/execution/nonce_tracker.go's
// idiom (read in full before that package's deletion — see DESIGN.md):
// refresh the cached next-nonce from chain when it goes stale, track a
// pending/in-flight set so concurrent reservations don't collide, and skip
// re-querying chain for nonces already known to be reserved. On-chain nonce
// 0 is always treated as "unused"; the manager issues max(onchain_next, 1).

package blockbuilder

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ChainNonceSource reports the next nonce the chain would accept for the
// builder's address (i.e. one past the highest nonce it has seen used).
type ChainNonceSource interface {
	NextOnChainNonce(ctx context.Context) (uint64, error)
}

// NonceManager reserves builder_nonce values such that two concurrent
// callers never receive the same value, and submission can be gated on
// "smallest reserved nonce" ordering.
//
// This is the in-memory backend (single-process builder). The
// cluster-shared backend is the separate RedisNonceManager type; both
// satisfy NonceReserver.
type NonceManager struct {
	mu         sync.Mutex
	source     ChainNonceSource
	cacheTTL   time.Duration
	cachedNext uint64
	cachedAt   time.Time
	reserved   map[uint64]bool // in-flight reservations not yet confirmed posted
}

// NewNonceManager creates an in-memory NonceManager polling source for the
// chain's next nonce, caching it for cacheTTL between refreshes.
func NewNonceManager(source ChainNonceSource, cacheTTL time.Duration) *NonceManager {
	return &NonceManager{
		source:   source,
		cacheTTL: cacheTTL,
		reserved: make(map[uint64]bool),
	}
}

// Reserve returns the next nonce to use, refreshing the on-chain cache if
// stale, and never returning 0 (the sentinel "unused" value) or a nonce
// already reserved and unconfirmed.
func (n *NonceManager) Reserve(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.refreshLocked(ctx); err != nil {
		return 0, err
	}

	candidate := n.cachedNext
	if candidate == 0 {
		candidate = 1
	}
	for n.reserved[candidate] {
		candidate++
	}
	n.reserved[candidate] = true
	if candidate >= n.cachedNext {
		n.cachedNext = candidate + 1
	}
	return candidate, nil
}

func (n *NonceManager) refreshLocked(ctx context.Context) error {
	if !n.cachedAt.IsZero() && time.Since(n.cachedAt) < n.cacheTTL {
		return nil
	}
	onChainNext, err := n.source.NextOnChainNonce(ctx)
	if err != nil {
		return fmt.Errorf("nonce manager: refresh from chain: %w", err)
	}
	if onChainNext < 1 {
		onChainNext = 1 // nonce 0 is always "unused"
	}
	if onChainNext > n.cachedNext {
		n.cachedNext = onChainNext
	}
	n.cachedAt = time.Now()
	return nil
}

// Confirm marks nonce as successfully posted on-chain, releasing it from
// the in-flight reservation set.
func (n *NonceManager) Confirm(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reserved, nonce)
}

// Release gives back a reserved nonce without confirming it was used (a
// failed post that reset to Pausing without submitting).
func (n *NonceManager) Release(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reserved, nonce)
}

// SmallestReservedNonce returns the smallest currently in-flight reserved
// nonce, used to gate ordered submission: a builder must not submit nonce N
// before every reservation smaller than N has been confirmed or released.
func (n *NonceManager) SmallestReservedNonce() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	found := false
	var smallest uint64
	for nonce := range n.reserved {
		if !found || nonce < smallest {
			smallest = nonce
			found = true
		}
	}
	return smallest, found
}
