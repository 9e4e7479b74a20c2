// Copyright 2025 Certen Protocol

package storevault

import (
	"context"
	"testing"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func TestPaymentMemo_SaveAndRetrieveRoundTrips(t *testing.T) {
	store := NewMemoryStore()
	priv, pub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	memo := PaymentMemo{TransferDigest: "deadbeef", Memo: "rent for March"}
	if _, err := SavePaymentMemo(context.Background(), store, "owner-1", pub, memo); err != nil {
		t.Fatalf("save payment memo: %v", err)
	}

	memos, err := GetAllPaymentMemos(context.Background(), store, "owner-1", priv)
	if err != nil {
		t.Fatalf("get all payment memos: %v", err)
	}
	if len(memos) != 1 {
		t.Fatalf("expected 1 memo, got %d", len(memos))
	}
	if memos[0] != memo {
		t.Fatalf("expected %+v, got %+v", memo, memos[0])
	}
}

func TestPaymentMemo_IsolatedPerOwner(t *testing.T) {
	store := NewMemoryStore()
	priv1, pub1, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair 1: %v", err)
	}
	_, pub2, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair 2: %v", err)
	}

	if _, err := SavePaymentMemo(context.Background(), store, "owner-1", pub1, PaymentMemo{TransferDigest: "a", Memo: "one"}); err != nil {
		t.Fatalf("save memo owner 1: %v", err)
	}
	if _, err := SavePaymentMemo(context.Background(), store, "owner-2", pub2, PaymentMemo{TransferDigest: "b", Memo: "two"}); err != nil {
		t.Fatalf("save memo owner 2: %v", err)
	}

	memos, err := GetAllPaymentMemos(context.Background(), store, "owner-1", priv1)
	if err != nil {
		t.Fatalf("get all payment memos: %v", err)
	}
	if len(memos) != 1 || memos[0].TransferDigest != "a" {
		t.Fatalf("expected only owner-1's memo, got %+v", memos)
	}
}

func TestPaymentMemo_NoMemosReturnsEmpty(t *testing.T) {
	store := NewMemoryStore()
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	memos, err := GetAllPaymentMemos(context.Background(), store, "owner-with-none", priv)
	if err != nil {
		t.Fatalf("get all payment memos: %v", err)
	}
	if len(memos) != 0 {
		t.Fatalf("expected no memos, got %d", len(memos))
	}
}
