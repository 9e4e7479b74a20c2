// Copyright 2025 Certen Protocol
//
// KeyManager handles loading, generating and persisting an L2 account's
// BLS key, and minting the one-time ephemeral keys a sender uses to
// address a Store Vault blob. Ported from the teacher's
// pkg/crypto/bls/key_manager.go (validator-key load-or-generate) and
// retargeted from "one key per validator" to "one key per L2 account,
// plus throwaway ephemeral keys per transfer".

package bls12

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyManager owns a single long-lived account key, optionally persisted
// to disk as hex (client-side use only — server components never hold a
// user's private key).
type KeyManager struct {
	keyPath    string
	privateKey *PrivateKey
	publicKey  *PublicKey
}

func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// LoadOrGenerateKey loads the key at keyPath, or generates and persists a
// new one if the file doesn't exist yet.
func (km *KeyManager) LoadOrGenerateKey() error {
	if err := Initialize(); err != nil {
		return fmt.Errorf("initialize bls12: %w", err)
	}
	if km.keyPath != "" {
		if _, err := os.Stat(km.keyPath); err == nil {
			return km.LoadKey()
		}
	}
	return km.GenerateNewKey()
}

func (km *KeyManager) LoadKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("no key path specified")
	}
	data, err := os.ReadFile(km.keyPath)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	keyBytes, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("decode key hex: %w", err)
	}
	km.privateKey, err = PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	km.publicKey = km.privateKey.PublicKey()
	return nil
}

func (km *KeyManager) GenerateNewKey() error {
	var err error
	km.privateKey, km.publicKey, err = GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}
	if km.keyPath != "" {
		return km.SaveKey()
	}
	return nil
}

// GenerateFromSeed derives the account key deterministically — the path
// pkg/keyderiv uses to turn an Ethereum signature into an L2 key.
func (km *KeyManager) GenerateFromSeed(seed []byte) error {
	var err error
	km.privateKey, km.publicKey, err = GenerateKeyPairFromSeed(seed)
	if err != nil {
		return fmt.Errorf("generate from seed: %w", err)
	}
	if km.keyPath != "" {
		return km.SaveKey()
	}
	return nil
}

func (km *KeyManager) SaveKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("no key path specified")
	}
	if err := os.MkdirAll(filepath.Dir(km.keyPath), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(km.keyPath, []byte(km.privateKey.Hex()), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func (km *KeyManager) PrivateKey() *PrivateKey { return km.privateKey }
func (km *KeyManager) PublicKey() *PublicKey   { return km.publicKey }

// EphemeralKeyPair mints a throwaway BLS keypair for one Store Vault
// upload/download pair (spec.md §3's SenderProofSet.ephemeral_key). It is
// never persisted to keyPath and is discarded by the caller after use.
func EphemeralKeyPair() (*PrivateKey, *PublicKey, error) {
	return GenerateKeyPair()
}
