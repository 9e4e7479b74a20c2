// Copyright 2025 Certen Protocol

package withdrawal

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
	"github.com/zkpayments/rollup-core/pkg/storevault"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	server, _ := newTestServer(t, &Withdrawal{TokenIndex: 1, Amount: big.NewInt(1000), Nullifier: [32]byte{9}},
		[]TransferRecord{{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(10), SettledBlock: 5}})
	return NewHandlers(server, &fakeFeeSchedule{fee: big.NewInt(10)}, nil, false)
}

func TestHandleRequestWithdrawal_Succeeds(t *testing.T) {
	h := newTestHandlers(t)
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	proofBlob := []byte("proof-1")
	auth, err := storevault.Sign(priv, proofBlob, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	reqBody, err := json.Marshal(requestWithdrawalRequest{
		ProofBlob:          proofBlob,
		FeeTokenIndex:      1,
		FeeTransferDigests: []FeeTransferDigest{"d1"},
		Auth:               auth,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/request-withdrawal", bytes.NewBuffer(reqBody))
	rec := httptest.NewRecorder()
	h.HandleRequestWithdrawal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRequestWithdrawal_RejectsWrongMethod(t *testing.T) {
	h := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/request-withdrawal", nil)
	rec := httptest.NewRecorder()
	h.HandleRequestWithdrawal(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleWithdrawalFee_ReturnsQuote(t *testing.T) {
	h := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/withdrawal-fee?token_index=1", nil)
	rec := httptest.NewRecorder()
	h.HandleWithdrawalFee(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["quoted_fee"] != "10" {
		t.Fatalf("expected quoted_fee 10, got %v", resp["quoted_fee"])
	}
}
