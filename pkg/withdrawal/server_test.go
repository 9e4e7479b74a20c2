// Copyright 2025 Certen Protocol

package withdrawal

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

var errNotRecognized = errors.New("withdrawal: proof not recognized by fake verifier")

type fakeVerifier struct {
	withdrawals map[string]*Withdrawal // keyed by string(proofBlob)
}

func (f *fakeVerifier) VerifySingleWithdrawal(ctx context.Context, proofBlob []byte) (*Withdrawal, error) {
	w, ok := f.withdrawals[string(proofBlob)]
	if !ok {
		return nil, errNotRecognized
	}
	return w, nil
}

type fakeResolver struct {
	transfers []TransferRecord
}

func (f *fakeResolver) ResolveFeeTransfers(ctx context.Context, pubkey string, digests []FeeTransferDigest) ([]TransferRecord, error) {
	return f.transfers, nil
}

type fakeFeeSchedule struct {
	fee *big.Int
}

func (f *fakeFeeSchedule) QuotedFee(tokenIndex uint32) *big.Int { return f.fee }

func newTestServer(t *testing.T, w *Withdrawal, transfers []TransferRecord) (*Server, Repository) {
	t.Helper()
	repo := NewMemoryRepository()
	verifier := &fakeVerifier{withdrawals: map[string]*Withdrawal{"proof-1": w}}
	resolver := &fakeResolver{transfers: transfers}
	fees := &fakeFeeSchedule{fee: big.NewInt(10)}
	server := NewServer(repo, verifier, resolver, fees, Config{FeeBeneficiary: "beneficiary"})
	return server, repo
}

func TestServer_RequestWithdrawal_Succeeds(t *testing.T) {
	w := &Withdrawal{TokenIndex: 1, Amount: big.NewInt(1000), Nullifier: [32]byte{1}}
	transfers := []TransferRecord{{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(10), SettledBlock: 5}}
	server, _ := newTestServer(t, w, transfers)

	rec, err := server.RequestWithdrawal(context.Background(), "pubkey-1", []byte("proof-1"), 1, []FeeTransferDigest{"d1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != StatusRequested {
		t.Fatalf("expected Requested, got %s", rec.Status)
	}
	if rec.Nullifier != w.Nullifier {
		t.Fatalf("nullifier mismatch")
	}
}

func TestServer_RequestWithdrawal_RejectsDuplicateNullifier(t *testing.T) {
	w := &Withdrawal{TokenIndex: 1, Amount: big.NewInt(1000), Nullifier: [32]byte{2}}
	transfers := []TransferRecord{{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(10), SettledBlock: 5}}
	server, _ := newTestServer(t, w, transfers)

	if _, err := server.RequestWithdrawal(context.Background(), "pubkey-1", []byte("proof-1"), 1, []FeeTransferDigest{"d1"}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := server.RequestWithdrawal(context.Background(), "pubkey-1", []byte("proof-1"), 1, []FeeTransferDigest{"d1"})
	if err != ErrDuplicateNullifier {
		t.Fatalf("expected ErrDuplicateNullifier, got %v", err)
	}
}

func TestServer_RequestWithdrawal_RejectsInsufficientFee(t *testing.T) {
	w := &Withdrawal{TokenIndex: 1, Amount: big.NewInt(1000), Nullifier: [32]byte{3}}
	transfers := []TransferRecord{{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(1), SettledBlock: 5}}
	server, _ := newTestServer(t, w, transfers)

	_, err := server.RequestWithdrawal(context.Background(), "pubkey-1", []byte("proof-1"), 1, []FeeTransferDigest{"d1"})
	if err == nil {
		t.Fatal("expected fee validation error")
	}
}
