// Copyright 2025 Certen Protocol

package blockbuilder

import "testing"

func pubkeyFor(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	return k
}

func TestRequestQueue_RejectsWhenFull(t *testing.T) {
	q := NewRequestQueue(KindNonRegistration, 2)
	if _, err := q.Submit(pubkeyFor(1), []byte("tx1"), nil, false, FeeRequirement{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := q.Submit(pubkeyFor(2), []byte("tx2"), nil, false, FeeRequirement{}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	_, err := q.Submit(pubkeyFor(3), []byte("tx3"), nil, false, FeeRequirement{})
	rej, ok := err.(*RejectionError)
	if !ok || rej.Reason != RejectBlockFull {
		t.Fatalf("expected block_full rejection, got %v", err)
	}
}

func TestRequestQueue_RejectsDuplicateSender(t *testing.T) {
	q := NewRequestQueue(KindNonRegistration, 10)
	pk := pubkeyFor(1)
	if _, err := q.Submit(pk, []byte("tx1"), nil, false, FeeRequirement{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := q.Submit(pk, []byte("tx2"), nil, false, FeeRequirement{})
	rej, ok := err.(*RejectionError)
	if !ok || rej.Reason != RejectDuplicateSender {
		t.Fatalf("expected duplicate_sender_in_block rejection, got %v", err)
	}
}

func TestRequestQueue_RegistrationOnlyOneNewSenderPerBlock(t *testing.T) {
	q := NewRequestQueue(KindRegistration, 10)
	if _, err := q.Submit(pubkeyFor(1), []byte("tx1"), nil, true, FeeRequirement{}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	_, err := q.Submit(pubkeyFor(2), []byte("tx2"), nil, true, FeeRequirement{})
	rej, ok := err.(*RejectionError)
	if !ok || rej.Reason != RejectOnlyOneSenderAllowed {
		t.Fatalf("expected only_one_sender_allowed rejection, got %v", err)
	}
}

func TestRequestQueue_InvalidFeeProofRejected(t *testing.T) {
	q := NewRequestQueue(KindNonRegistration, 10)
	req := FeeRequirement{UseFee: true, FeeBeneficiary: pubkeyFor(9), FeeTokenIndex: 0, QuotedFee: 100}

	_, err := q.Submit(pubkeyFor(1), []byte("tx1"), nil, false, req)
	rej, ok := err.(*RejectionError)
	if !ok || rej.Reason != RejectInvalidFeeProof {
		t.Fatalf("expected invalid_fee_proof for missing proof, got %v", err)
	}

	underpaid := &FeeProof{FeeTransferWitness: FeeTransferWitness{Recipient: pubkeyFor(9), TokenIndex: 0, Amount: 50}}
	_, err = q.Submit(pubkeyFor(1), []byte("tx1"), underpaid, false, req)
	rej, ok = err.(*RejectionError)
	if !ok || rej.Reason != RejectInvalidFeeProof {
		t.Fatalf("expected invalid_fee_proof for underpayment, got %v", err)
	}

	sufficient := &FeeProof{FeeTransferWitness: FeeTransferWitness{Recipient: pubkeyFor(9), TokenIndex: 0, Amount: 100}}
	if _, err := q.Submit(pubkeyFor(1), []byte("tx1"), sufficient, false, req); err != nil {
		t.Fatalf("expected acceptance with sufficient fee, got %v", err)
	}
}

func TestRequestQueue_DrainResetsQueue(t *testing.T) {
	q := NewRequestQueue(KindNonRegistration, 10)
	_, _ = q.Submit(pubkeyFor(1), []byte("tx1"), nil, false, FeeRequirement{})
	_, _ = q.Submit(pubkeyFor(2), []byte("tx2"), nil, false, FeeRequirement{})

	drained := q.Drain()
	if len(drained) != 2 {
		t.Fatalf("drained = %d requests, want 2", len(drained))
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after drain: %d", q.Len())
	}
	// Previously-duplicate sender should now be acceptable again.
	if _, err := q.Submit(pubkeyFor(1), []byte("tx1b"), nil, false, FeeRequirement{}); err != nil {
		t.Fatalf("resubmit after drain: %v", err)
	}
}
