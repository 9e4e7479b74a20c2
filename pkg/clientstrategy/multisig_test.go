// Copyright 2025 Certen Protocol

package clientstrategy

import (
	"testing"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func newParticipant(t *testing.T, weight uint32) (*bls12.PrivateKey, MultisigParticipant) {
	t.Helper()
	priv, pub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return priv, MultisigParticipant{PublicKey: pub, Weight: weight}
}

func TestMultisigSession_ThresholdMetAfterEnoughWeight(t *testing.T) {
	sk1, p1 := newParticipant(t, 1)
	sk2, p2 := newParticipant(t, 1)
	_, p3 := newParticipant(t, 1)

	account := MultisigAccount{Participants: []MultisigParticipant{p1, p2, p3}, Threshold: 2}
	msg := []byte("tx-digest")
	session := NewMultisigSession(account, msg)

	if session.ThresholdMet() {
		t.Fatal("threshold should not be met with zero signatures")
	}

	if err := session.Submit(p1.PublicKey, sk1.Sign(msg)); err != nil {
		t.Fatalf("submit sig 1: %v", err)
	}
	if session.ThresholdMet() {
		t.Fatal("threshold should not be met with weight 1 of 2")
	}

	if err := session.Submit(p2.PublicKey, sk2.Sign(msg)); err != nil {
		t.Fatalf("submit sig 2: %v", err)
	}
	if !session.ThresholdMet() {
		t.Fatal("threshold should be met with weight 2 of 2")
	}

	if _, err := session.Aggregate(); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
}

func TestMultisigSession_RejectsNonParticipant(t *testing.T) {
	_, p1 := newParticipant(t, 1)
	outsiderSk, outsiderPub := newParticipant(t, 1)

	account := MultisigAccount{Participants: []MultisigParticipant{p1}, Threshold: 1}
	session := NewMultisigSession(account, []byte("msg"))

	if err := session.Submit(outsiderPub.PublicKey, outsiderSk.Sign([]byte("msg"))); err == nil {
		t.Fatal("expected rejection of non-participant signature")
	}
}

func TestMultisigSession_RejectsInvalidSignature(t *testing.T) {
	sk1, p1 := newParticipant(t, 1)
	account := MultisigAccount{Participants: []MultisigParticipant{p1}, Threshold: 1}
	session := NewMultisigSession(account, []byte("real-message"))

	wrongSig := sk1.Sign([]byte("a-different-message"))
	if err := session.Submit(p1.PublicKey, wrongSig); err == nil {
		t.Fatal("expected rejection of signature over wrong message")
	}
}

func TestMultisigSession_AggregateFailsBelowThreshold(t *testing.T) {
	sk1, p1 := newParticipant(t, 1)
	_, p2 := newParticipant(t, 1)

	account := MultisigAccount{Participants: []MultisigParticipant{p1, p2}, Threshold: 2}
	session := NewMultisigSession(account, []byte("msg"))

	if err := session.Submit(p1.PublicKey, sk1.Sign([]byte("msg"))); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := session.Aggregate(); err == nil {
		t.Fatal("expected aggregate to fail below threshold")
	}
}

func TestMultisigAccount_AccountPublicKeyIsDeterministic(t *testing.T) {
	_, p1 := newParticipant(t, 1)
	_, p2 := newParticipant(t, 1)
	account := MultisigAccount{Participants: []MultisigParticipant{p1, p2}, Threshold: 2}

	pk1, err := account.AccountPublicKey()
	if err != nil {
		t.Fatalf("account public key: %v", err)
	}
	pk2, err := account.AccountPublicKey()
	if err != nil {
		t.Fatalf("account public key: %v", err)
	}
	if !pk1.Equal(pk2) {
		t.Fatal("expected deterministic aggregate public key")
	}
}
