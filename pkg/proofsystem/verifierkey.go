// Copyright 2025 Certen Protocol
//
// Verifier-key loading: the process-wide "lazily-initialized set of
// circuit verifier keys loaded from disk at first use" singleton. Grounded
// on pkg/crypto/bls_zkp/prover.go's InitializeFromKeys (groth16.NewVerifyingKey
// + ReadFrom) and on pkg/strategy's sync.Once-backed global-registry idiom.

package proofsystem

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
)

// Registry holds one groth16.VerifyingKey per Kind, loaded from a
// directory of "<kind>.vk" files on first use.
type Registry struct {
	dir string

	mu   sync.RWMutex
	keys map[Kind]groth16.VerifyingKey
}

// NewRegistry returns a Registry that loads verifier keys from dir on
// demand. Nothing is read from disk until Get is first called for a kind.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, keys: make(map[Kind]groth16.VerifyingKey)}
}

// Get returns the verifying key for kind, loading it from disk on first
// use and caching it for subsequent calls.
func (r *Registry) Get(kind Kind) (groth16.VerifyingKey, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind{Kind: kind}
	}

	r.mu.RLock()
	vk, ok := r.keys[kind]
	r.mu.RUnlock()
	if ok {
		return vk, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if vk, ok := r.keys[kind]; ok {
		return vk, nil
	}

	path := filepath.Join(r.dir, string(kind)+".vk")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("proofsystem: open verifier key for %s: %w", kind, err)
	}
	defer f.Close()

	loaded := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := loaded.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("proofsystem: read verifier key for %s: %w", kind, err)
	}

	r.keys[kind] = loaded
	return loaded, nil
}

// SetKey installs vk directly into the cache, bypassing disk. Used by
// tests and by any caller that generates keys in-process rather than
// shipping them as files (e.g. a local trusted-setup tool).
func (r *Registry) SetKey(kind Kind, vk groth16.VerifyingKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[kind] = vk
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// GlobalRegistry returns the process-wide Registry, rooted at dir on its
// first call. Later calls ignore dir and return the same instance -
// callers that need a second independently-configured Registry should
// construct one directly with NewRegistry.
func GlobalRegistry(dir string) *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry(dir)
	})
	return globalRegistry
}
