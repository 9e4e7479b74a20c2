// Copyright 2025 Certen Protocol
//
// KeyStore tracks the BLS public key behind every account ID the builder
// has seen, so Poster can look up a signer's key when assembling the
// aggregated signature for a block it never held the raw pubkey for
// itself (only the account ID travels with a queued TxRequest).

package blockbuilder

import (
	"sync"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

// KeyStore is a concurrency-safe accountID -> BLS public key map.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[[32]byte]*bls12.PublicKey
}

// NewKeyStore creates an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[[32]byte]*bls12.PublicKey)}
}

// Register records pub under its own AccountID, idempotently.
func (s *KeyStore) Register(pub *bls12.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[pub.AccountID()] = pub
}

// Lookup satisfies the pubkeyLookup func(...) *bls12.PublicKey parameter
// NewBuilder expects.
func (s *KeyStore) Lookup(accountID [32]byte) *bls12.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[accountID]
}
