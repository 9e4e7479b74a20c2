// Copyright 2025 Certen Protocol

package blsecies

import (
	"bytes"
	"testing"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func TestSealOpenRoundTrip(t *testing.T) {
	recipientPriv, recipientPub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate recipient key: %v", err)
	}

	plaintext := []byte("encrypted store vault payload")
	env, err := Seal(recipientPub, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := Open(recipientPriv, env)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestOpenRejectsWrongRecipient(t *testing.T) {
	_, recipientPub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate recipient key: %v", err)
	}
	wrongPriv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate wrong key: %v", err)
	}

	env, err := Seal(recipientPub, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(wrongPriv, env); err == nil {
		t.Fatal("expected decryption with the wrong private key to fail")
	}
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	recipientPriv, recipientPub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env, err := Seal(recipientPub, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	env.Version = 99
	if _, err := Open(recipientPriv, env); err == nil {
		t.Fatal("expected an unknown envelope version to be rejected")
	}
}
