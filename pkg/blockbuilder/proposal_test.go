// Copyright 2025 Certen Protocol

package blockbuilder

import (
	"testing"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func mustKeyPair(t *testing.T) (*bls12.PrivateKey, *bls12.PublicKey) {
	t.Helper()
	sk, pk, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return sk, pk
}

func TestSignatureCollector_AcceptsValidSignature(t *testing.T) {
	sk, pk := mustKeyPair(t)
	pubkey := pk.AccountID()

	requests := []TxRequest{{Pubkey: pubkey, Tx: []byte("tx")}}
	proposal := BuildProposal(1, KindNonRegistration, requests, [32]byte{1}, time.Now().Add(time.Minute))
	collector := NewSignatureCollector(proposal)

	sig := sk.SignWithDomain(proposal.SigningMessage(), signatureDomain)
	if err := collector.Submit(pubkey, pk, sig); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	flags := collector.SenderFlags()
	if len(flags) != 1 || !flags[0] {
		t.Fatalf("flags = %v, want [true]", flags)
	}
}

func TestSignatureCollector_RejectsBadSignature(t *testing.T) {
	sk, pk := mustKeyPair(t)
	_, otherPk := mustKeyPair(t)
	pubkey := pk.AccountID()

	requests := []TxRequest{{Pubkey: pubkey, Tx: []byte("tx")}}
	proposal := BuildProposal(1, KindNonRegistration, requests, [32]byte{1}, time.Now().Add(time.Minute))
	collector := NewSignatureCollector(proposal)

	// Sign the wrong message and present a different sender's key.
	sig := sk.SignWithDomain([]byte("wrong message"), signatureDomain)
	if err := collector.Submit(pubkey, otherPk, sig); err == nil {
		t.Fatalf("expected rejection of mismatched signature")
	}
}

func TestSignatureCollector_UnsignedSendersExcludedFromFlags(t *testing.T) {
	sk1, pk1 := mustKeyPair(t)
	_, pk2 := mustKeyPair(t)
	p1, p2 := pk1.AccountID(), pk2.AccountID()

	requests := []TxRequest{{Pubkey: p1, Tx: []byte("tx1")}, {Pubkey: p2, Tx: []byte("tx2")}}
	proposal := BuildProposal(1, KindNonRegistration, requests, [32]byte{1}, time.Now().Add(time.Minute))
	collector := NewSignatureCollector(proposal)

	sig := sk1.SignWithDomain(proposal.SigningMessage(), signatureDomain)
	if err := collector.Submit(p1, pk1, sig); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	flags := collector.SenderFlags()
	if !flags[0] || flags[1] {
		t.Fatalf("flags = %v, want [true false]", flags)
	}

	lookup := map[[32]byte]*bls12.PublicKey{p1: pk1, p2: pk2}
	aggSig, pubkeys, err := collector.Aggregate(func(k [32]byte) *bls12.PublicKey { return lookup[k] })
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(pubkeys) != 1 {
		t.Fatalf("aggregated pubkeys = %d, want 1 (only the signer)", len(pubkeys))
	}
	if !pubkeys[0].VerifyWithDomain(aggSig, proposal.SigningMessage(), signatureDomain) {
		// Aggregate of a single signature verifies directly against its own key.
		t.Fatalf("single-signer aggregate does not verify")
	}
}

func TestSignatureCollector_AggregateFailsWithNoSignatures(t *testing.T) {
	_, pk := mustKeyPair(t)
	pubkey := pk.AccountID()
	requests := []TxRequest{{Pubkey: pubkey, Tx: []byte("tx")}}
	proposal := BuildProposal(1, KindNonRegistration, requests, [32]byte{1}, time.Now().Add(time.Minute))
	collector := NewSignatureCollector(proposal)

	if _, _, err := collector.Aggregate(func([32]byte) *bls12.PublicKey { return pk }); err == nil {
		t.Fatalf("expected error aggregating with no collected signatures")
	}
}
