// Copyright 2025 Certen Protocol

package clientstrategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func TestClient_QuoteFee(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FeeQuote{TokenIndex: 0, Amount: "100"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	quote, err := c.QuoteFee(context.Background(), "transfer")
	if err != nil {
		t.Fatalf("quote fee: %v", err)
	}
	if quote.Amount != "100" {
		t.Fatalf("expected amount 100, got %s", quote.Amount)
	}
}

func TestClient_SubmitTxRequest(t *testing.T) {
	wantID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(txRequestResponse{RequestID: wantID})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	id, err := c.SubmitTxRequest(context.Background(), "transfer", "pub-1", []byte("tx"))
	if err != nil {
		t.Fatalf("submit tx request: %v", err)
	}
	if id != wantID {
		t.Fatalf("expected id %s, got %s", wantID, id)
	}
}

func TestClient_QueryProposal_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(proposalResponse{Ready: false})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	_, ready, err := c.QueryProposal(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("query proposal: %v", err)
	}
	if ready {
		t.Fatal("expected not ready")
	}
}

func TestClient_PostSignature_RejectsExpiredProposal(t *testing.T) {
	c := NewClient("http://unused", 0)
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	proposal := Proposal{
		RequestID: uuid.New(),
		Expiry:    time.Now().Add(-time.Hour),
	}
	if err := c.PostSignature(context.Background(), priv, proposal); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestClient_PostSignature_Succeeds(t *testing.T) {
	var received postSignatureBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	proposal := Proposal{
		RequestID: uuid.New(),
		Expiry:    time.Now().Add(time.Hour),
	}
	if err := c.PostSignature(context.Background(), priv, proposal); err != nil {
		t.Fatalf("post signature: %v", err)
	}
	if received.Pubkey != priv.PublicKey().Hex() {
		t.Fatalf("expected pubkey %s, got %s", priv.PublicKey().Hex(), received.Pubkey)
	}
}

type fakeRootWatcher struct {
	hasRoot bool
}

func (f *fakeRootWatcher) HasRoot(ctx context.Context, root [32]byte) (bool, error) {
	return f.hasRoot, nil
}

func TestWaitForRoot_SucceedsWhenRootPresent(t *testing.T) {
	proposal := Proposal{Expiry: time.Now().Add(time.Hour)}
	if err := WaitForRoot(context.Background(), &fakeRootWatcher{hasRoot: true}, proposal, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForRoot_AbortsAfterDeadline(t *testing.T) {
	proposal := Proposal{Expiry: time.Now().Add(-time.Minute)}
	err := WaitForRoot(context.Background(), &fakeRootWatcher{hasRoot: false}, proposal, time.Millisecond)
	if err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}
