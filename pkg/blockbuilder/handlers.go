// Copyright 2025 Certen Protocol
//
// Block Builder HTTP Handlers
// Implements the quote_fee/tx_request/query_proposal/post_signature surface
// of spec.md §6.3 (Block Builder), matching the wire shapes already spoken
// by pkg/clientstrategy/client.go, in the same
// method-check/parse/call-repo/writeJSON shape as pkg/storevault/handlers.go.
// Errors route through pkg/httpapi so every failure crosses the wire as
// {status, message, url, brief_request}.

package blockbuilder

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zkpayments/rollup-core/pkg/bls12"
	"github.com/zkpayments/rollup-core/pkg/httpapi"
)

// PubkeyResolver turns a hex-encoded BLS public key into its account ID
// and the key object itself, for validating tx_request/post_signature
// submissions without round-tripping through the key store twice.
type PubkeyResolver func(hex string) (accountID [32]byte, pub *bls12.PublicKey, err error)

// Handlers serves the Block Builder's HTTP surface across both block
// kinds (registration, non-registration).
type Handlers struct {
	builders   map[Kind]*Builder
	proverSync ProverSyncChecker
	resolve    PubkeyResolver
	keys       *KeyStore
	logger     *log.Logger
	errs       httpapi.Writer
}

// NewHandlers wires Handlers against one Builder per kind. proverSync may
// be nil to skip the validity-prover lag check on tx_request, as Builder.Submit
// already allows. keys may be nil to skip registering senders' public keys
// as tx_requests arrive (e.g. in tests that pre-populate their own lookup).
// debug preserves full request bodies in error responses instead of
// truncating them to 500 characters.
func NewHandlers(builders map[Kind]*Builder, proverSync ProverSyncChecker, resolve PubkeyResolver, keys *KeyStore, logger *log.Logger, debug bool) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[BlockBuilder] ", log.LstdFlags)
	}
	if resolve == nil {
		resolve = ResolvePubkeyHex
	}
	return &Handlers{builders: builders, proverSync: proverSync, resolve: resolve, keys: keys, logger: logger, errs: httpapi.Writer{Debug: debug}}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, fallbackStatus int, err error, body []byte) {
	h.errs.WriteError(w, r, fallbackStatus, err, body)
}

func (h *Handlers) builderFor(kind Kind) (*Builder, bool) {
	b, ok := h.builders[kind]
	return b, ok
}

// ResolvePubkeyHex decodes a hex-encoded BLS public key and derives its
// account ID, the default PubkeyResolver for NewHandlers.
func ResolvePubkeyHex(hexStr string) ([32]byte, *bls12.PublicKey, error) {
	pub, err := bls12.PublicKeyFromHex(hexStr)
	if err != nil {
		return [32]byte{}, nil, fmt.Errorf("blockbuilder: decode pubkey: %w", err)
	}
	return pub.AccountID(), pub, nil
}

// feeQuoteResponse mirrors clientstrategy.FeeQuote's untagged wire shape.
type feeQuoteResponse struct {
	TokenIndex uint32
	Amount     string
}

// HandleQuoteFee handles GET /quote_fee?kind=registration|non_registration.
func (h *Handlers) HandleQuoteFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only GET is allowed"), nil)
		return
	}

	kind := Kind(r.URL.Query().Get("kind"))
	b, ok := h.builderFor(kind)
	if !ok {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("UNKNOWN_KIND", "unknown block kind %q", kind), nil)
		return
	}

	fee := b.FeeConfig()
	resp := feeQuoteResponse{Amount: "0"}
	if fee.UseFee {
		resp.TokenIndex = fee.FeeTokenIndex
		resp.Amount = strconv.FormatUint(fee.QuotedFee, 10)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type txRequestBody struct {
	Kind     string `json:"kind"`
	Pubkey   string `json:"pubkey"`
	Tx       []byte `json:"tx"`
	FeeProof *struct {
		Recipient  string `json:"recipient"`
		TokenIndex uint32 `json:"token_index"`
		Amount     uint64 `json:"amount"`
	} `json:"fee_proof,omitempty"`
}

// HandleTxRequest handles POST /tx_request.
func (h *Handlers) HandleTxRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req txRequestBody
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	b, ok := h.builderFor(Kind(req.Kind))
	if !ok {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("UNKNOWN_KIND", "unknown block kind %q", req.Kind), body)
		return
	}

	accountID, pub, err := h.resolve(req.Pubkey)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_PUBKEY", "%v", err), body)
		return
	}
	if h.keys != nil {
		h.keys.Register(pub)
	}

	var feeProof *FeeProof
	if req.FeeProof != nil {
		var recipientID [32]byte
		if rid, _, err := h.resolve(req.FeeProof.Recipient); err == nil {
			recipientID = rid
		}
		feeProof = &FeeProof{FeeTransferWitness: FeeTransferWitness{
			Recipient:  recipientID,
			TokenIndex: req.FeeProof.TokenIndex,
			Amount:     req.FeeProof.Amount,
		}}
	}

	isNewSender := Kind(req.Kind) == KindRegistration
	requestID, err := b.Submit(r.Context(), accountID, req.Tx, feeProof, isNewSender, h.proverSync)
	if err != nil {
		if rej, ok := err.(*RejectionError); ok {
			h.writeError(w, r, http.StatusConflict, httpapi.ValidationErrorf("REJECTED", "%s", rej.Reason), body)
			return
		}
		h.logger.Printf("tx request: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to accept tx request"), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"request_id": requestID})
}

type proposalResponse struct {
	Ready       bool      `json:"ready"`
	BlockNumber uint64    `json:"block_number"`
	TxTreeRoot  [32]byte  `json:"tx_tree_root"`
	PubkeysHash [32]byte  `json:"pubkeys_hash"`
	Expiry      time.Time `json:"expiry"`
}

// HandleQueryProposal handles GET /query_proposal?request_id=....
func (h *Handlers) HandleQueryProposal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only GET is allowed"), nil)
		return
	}

	requestID, err := uuid.Parse(r.URL.Query().Get("request_id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_REQUEST_ID", "request_id must be a valid uuid"), nil)
		return
	}

	proposal, _, found := h.findProposal(requestID)
	if !found {
		h.writeJSON(w, http.StatusOK, proposalResponse{Ready: false})
		return
	}

	h.writeJSON(w, http.StatusOK, proposalResponse{
		Ready:       true,
		BlockNumber: proposal.BlockNumber,
		TxTreeRoot:  proposal.TxTreeRoot,
		PubkeysHash: proposal.PubkeysHash,
		Expiry:      proposal.Expiry,
	})
}

type postSignatureBody struct {
	RequestID uuid.UUID `json:"request_id"`
	Pubkey    string    `json:"pubkey"`
	Signature string    `json:"signature"`
}

// HandlePostSignature handles POST /post_signature.
func (h *Handlers) HandlePostSignature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req postSignatureBody
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	_, collector, found := h.findProposal(req.RequestID)
	if !found {
		h.writeError(w, r, http.StatusNotFound, httpapi.ValidationErrorf("PROPOSAL_NOT_FOUND", "no proposal covers this request_id"), body)
		return
	}

	accountID, pub, err := h.resolve(req.Pubkey)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_PUBKEY", "%v", err), body)
		return
	}
	sig, err := bls12.SignatureFromHex(req.Signature)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_SIGNATURE", "signature is not valid hex"), body)
		return
	}

	if err := collector.Submit(accountID, pub, sig); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("SIGNATURE_REJECTED", "%v", err), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// findProposal locates the BlockProposal (and its SignatureCollector) whose
// Requests contain requestID, searching every kind's current proposal.
func (h *Handlers) findProposal(requestID uuid.UUID) (*BlockProposal, *SignatureCollector, bool) {
	for _, b := range h.builders {
		proposal, collector, ok := b.CurrentProposal()
		if !ok {
			continue
		}
		for _, req := range proposal.Requests {
			if req.RequestID == requestID {
				return proposal, collector, true
			}
		}
	}
	return nil, nil, false
}

// HandleHealthCheck handles GET /health.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "block-builder",
		"version": "1.0.0",
		"time":    time.Now().UTC(),
	})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httpapi.WriteJSON(w, status, data); err != nil {
		h.logger.Printf("Error encoding response: %v", err)
	}
}
