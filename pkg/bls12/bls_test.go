// Copyright 2025 Certen Protocol

package bls12

import (
	"bytes"
	"testing"
)

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := Initialize(); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
}

func TestGenerateKeyPair(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	if len(sk.Bytes()) != PrivateKeySize {
		t.Errorf("private key size: got %d, want %d", len(sk.Bytes()), PrivateKeySize)
	}
	if len(pk.Bytes()) != PublicKeySize {
		t.Errorf("public key size: got %d, want %d", len(pk.Bytes()), PublicKeySize)
	}
}

func TestGenerateKeyPairFromSeed(t *testing.T) {
	seed := []byte("this is a test seed for BLS key generation - 32+ bytes required")

	sk1, pk1, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("generate from seed: %v", err)
	}
	sk2, pk2, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("generate from seed (second): %v", err)
	}
	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) {
		t.Error("same seed produced different private keys")
	}
	if !bytes.Equal(pk1.Bytes(), pk2.Bytes()) {
		t.Error("same seed produced different public keys")
	}
}

func TestSignAndVerify(t *testing.T) {
	sk, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	message := []byte("tx-tree-root-bytes")
	sig := sk.Sign(message)
	if !pk.Verify(sig, message) {
		t.Fatal("valid signature failed to verify")
	}
	if pk.Verify(sig, []byte("different message")) {
		t.Fatal("signature verified against the wrong message")
	}
}

func TestAggregateSignatures(t *testing.T) {
	const n = 5
	message := []byte("block message point")
	sks := make([]*PrivateKey, n)
	pks := make([]*PublicKey, n)
	sigs := make([]*Signature, n)

	for i := 0; i < n; i++ {
		sk, pk, err := GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate key pair %d: %v", i, err)
		}
		sks[i], pks[i] = sk, pk
		sigs[i] = sk.Sign(message)
	}

	aggSig, err := AggregateSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregate signatures: %v", err)
	}
	if !VerifyAggregateSignature(aggSig, pks, message) {
		t.Fatal("aggregate signature failed to verify")
	}

	wrongMessage := []byte("not the block message")
	if VerifyAggregateSignature(aggSig, pks, wrongMessage) {
		t.Fatal("aggregate signature verified against the wrong message")
	}
}

func TestAccountIDStableUnderReload(t *testing.T) {
	_, pk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	reloaded, err := PublicKeyFromBytes(pk.Bytes())
	if err != nil {
		t.Fatalf("reload public key: %v", err)
	}
	if pk.AccountID() != reloaded.AccountID() {
		t.Fatal("account id changed across a serialize/deserialize round trip")
	}
}
