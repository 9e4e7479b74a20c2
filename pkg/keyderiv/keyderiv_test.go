// Copyright 2025 Certen Protocol

package keyderiv

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestDeriveFromPrivateKey_IsDeterministic(t *testing.T) {
	sk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate eth key: %v", err)
	}

	priv1, pub1, err := DeriveFromPrivateKey(sk)
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	priv2, pub2, err := DeriveFromPrivateKey(sk)
	if err != nil {
		t.Fatalf("derive 2: %v", err)
	}

	if priv1.Hex() != priv2.Hex() {
		t.Fatal("expected deterministic private key derivation")
	}
	if !pub1.Equal(pub2) {
		t.Fatal("expected deterministic public key derivation")
	}
}

func TestDeriveFromPrivateKey_DifferentKeysDiffer(t *testing.T) {
	sk1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate eth key 1: %v", err)
	}
	sk2, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate eth key 2: %v", err)
	}

	_, pub1, err := DeriveFromPrivateKey(sk1)
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	_, pub2, err := DeriveFromPrivateKey(sk2)
	if err != nil {
		t.Fatalf("derive 2: %v", err)
	}

	if pub1.Equal(pub2) {
		t.Fatal("expected different eth keys to derive different BLS keys")
	}
}

func TestDeriveFromSignature_RejectsWrongLength(t *testing.T) {
	if _, _, err := DeriveFromSignature([]byte("too-short")); err == nil {
		t.Fatal("expected error for non-65-byte signature")
	}
}
