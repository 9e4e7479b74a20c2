// Copyright 2025 Certen Protocol

package blockbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func newTestHandlers(t *testing.T, rollup RollupPoster) (*Handlers, *Builder) {
	t.Helper()
	sm := NewKindStateMachine(KindNonRegistration)
	queue := NewRequestQueue(KindNonRegistration, 16)
	nonces := NewNonceManager(&fakeChainNonceSource{next: 1}, time.Minute)
	poster := NewPoster(KindNonRegistration, sm, nonces, rollup)

	cfg := DefaultConfig()
	cfg.AcceptingTxsWindow = 5 * time.Millisecond
	cfg.SignatureWindow = time.Minute
	cfg.FeeRequirement = FeeRequirement{UseFee: true, FeeTokenIndex: 2, QuotedFee: 100}

	keys := map[[32]byte]*bls12.PublicKey{}
	b := NewBuilder(KindNonRegistration, cfg, sm, queue, poster, 8, func(id [32]byte) *bls12.PublicKey { return keys[id] }, 1)

	h := NewHandlers(map[Kind]*Builder{KindNonRegistration: b}, nil, ResolvePubkeyHex, NewKeyStore(), nil, false)
	return h, b
}

func TestHandleQuoteFee_ReturnsConfiguredFee(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeRollupPoster{})

	req := httptest.NewRequest(http.MethodGet, "/quote_fee?kind=non_registration", nil)
	rec := httptest.NewRecorder()
	h.HandleQuoteFee(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp feeQuoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TokenIndex != 2 || resp.Amount != "100" {
		t.Fatalf("unexpected fee quote: %+v", resp)
	}
}

func TestHandleQuoteFee_RejectsUnknownKind(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeRollupPoster{})

	req := httptest.NewRequest(http.MethodGet, "/quote_fee?kind=bogus", nil)
	rec := httptest.NewRecorder()
	h.HandleQuoteFee(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleTxRequest_AcceptsAndReturnsRequestID(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeRollupPoster{})
	_, pub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	// The fixture requires a fee of 100 in token 2 paid to the zero
	// beneficiary; an unresolvable recipient maps to the zero account ID.
	reqBody := txRequestBody{Kind: string(KindNonRegistration), Pubkey: pub.Hex(), Tx: []byte("tx1")}
	reqBody.FeeProof = &struct {
		Recipient  string `json:"recipient"`
		TokenIndex uint32 `json:"token_index"`
		Amount     uint64 `json:"amount"`
	}{TokenIndex: 2, Amount: 100}
	body, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/tx_request", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleTxRequest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		RequestID uuid.UUID `json:"request_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RequestID == uuid.Nil {
		t.Fatalf("expected non-nil request_id")
	}
}

func TestQueryProposalAndPostSignature_RoundTrip(t *testing.T) {
	h, b := newTestHandlers(t, &fakeRollupPoster{})
	sk, pub, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	accountID, _, err := ResolvePubkeyHex(pub.Hex())
	if err != nil {
		t.Fatalf("resolve pubkey: %v", err)
	}
	requestID, err := b.Submit(context.Background(), accountID, []byte("tx1"), &FeeProof{FeeTransferWitness: FeeTransferWitness{TokenIndex: 2, Amount: 100}}, false, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	requests := b.queue.Drain()
	proposal := BuildProposal(b.nextBlockNumber, KindNonRegistration, requests, [32]byte{7}, time.Now().Add(time.Minute))
	collector := NewSignatureCollector(proposal)
	b.publishProposal(&proposal, collector)

	queryReq := httptest.NewRequest(http.MethodGet, "/query_proposal?request_id="+requestID, nil)
	queryRec := httptest.NewRecorder()
	h.HandleQueryProposal(queryRec, queryReq)

	if queryRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", queryRec.Code, queryRec.Body.String())
	}
	var queryResp proposalResponse
	if err := json.Unmarshal(queryRec.Body.Bytes(), &queryResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !queryResp.Ready {
		t.Fatalf("expected ready=true once proposal is published")
	}

	msg := proposal.SigningMessage()
	sig := sk.SignWithDomain(msg, signatureDomain)
	postBody, err := json.Marshal(postSignatureBody{
		RequestID: uuid.MustParse(requestID),
		Pubkey:    pub.Hex(),
		Signature: sig.Hex(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	postReq := httptest.NewRequest(http.MethodPost, "/post_signature", bytes.NewReader(postBody))
	postRec := httptest.NewRecorder()
	h.HandlePostSignature(postRec, postReq)

	if postRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", postRec.Code, postRec.Body.String())
	}

	flags := collector.SenderFlags()
	if len(flags) != 1 || !flags[0] {
		t.Fatalf("expected sender flag set after post_signature, got %v", flags)
	}
}

func TestHandleQueryProposal_UnknownRequestIDReportsNotReady(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeRollupPoster{})

	req := httptest.NewRequest(http.MethodGet, "/query_proposal?request_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	h.HandleQueryProposal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp proposalResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Ready {
		t.Fatalf("expected ready=false for unknown request_id")
	}
}
