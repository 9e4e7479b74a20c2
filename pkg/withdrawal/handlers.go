// Copyright 2025 Certen Protocol
//
// Withdrawal Server HTTP handlers, per spec.md §6.3's /request-withdrawal,
// /get-withdrawal-info and /withdrawal-fee routes. Grounded on
// pkg/server/proof_handlers.go's method-check/decode/call/writeJSON shape,
// the same way pkg/storevault/handlers.go is. Errors route through
// pkg/httpapi so every failure crosses the wire as
// {status, message, url, brief_request}.

package withdrawal

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/zkpayments/rollup-core/pkg/httpapi"
	"github.com/zkpayments/rollup-core/pkg/storevault"
)

// Handlers provides HTTP handlers for Withdrawal Server operations.
type Handlers struct {
	server *Server
	fees   FeeSchedule
	logger *log.Logger
	errs   httpapi.Writer
}

// NewHandlers creates new Withdrawal Server handlers. debug preserves
// full request bodies in error responses instead of truncating them to
// 500 characters.
func NewHandlers(server *Server, fees FeeSchedule, logger *log.Logger, debug bool) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[Withdrawal] ", log.LstdFlags)
	}
	return &Handlers{server: server, fees: fees, logger: logger, errs: httpapi.Writer{Debug: debug}}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, fallbackStatus int, err error, body []byte) {
	h.errs.WriteError(w, r, fallbackStatus, err, body)
}

// requestWithdrawalRequest is the signed body of POST /request-withdrawal.
type requestWithdrawalRequest struct {
	ProofBlob          []byte              `json:"proof_blob"`
	FeeTokenIndex      uint32              `json:"fee_token_index"`
	FeeTransferDigests []FeeTransferDigest `json:"fee_transfer_digests"`
	Auth               storevault.Auth     `json:"auth"`
}

// HandleRequestWithdrawal handles POST /request-withdrawal.
func (h *Handlers) HandleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req requestWithdrawalRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	pub, err := storevault.Verify(req.ProofBlob, req.Auth)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, httpapi.ValidationErrorf("UNAUTHORIZED", "%v", err), body)
		return
	}

	rec, err := h.server.RequestWithdrawal(r.Context(), pub.Hex(), req.ProofBlob, req.FeeTokenIndex, req.FeeTransferDigests)
	switch err {
	case nil:
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"fee_result": "accepted", "uuid": rec.UUID})
	case ErrDuplicateNullifier:
		h.writeError(w, r, http.StatusConflict, httpapi.ValidationErrorf("DUPLICATE_NULLIFIER", "%v", err), body)
	case ErrFeeTooLow, ErrWrongFeeRecipient, ErrWrongFeeToken, ErrUnsettledFeeTransfer:
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_FEE", "%v", err), body)
	default:
		h.logger.Printf("request withdrawal: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to process withdrawal request"), body)
	}
}

// getWithdrawalInfoRequest is the signed body of POST /get-withdrawal-info.
type getWithdrawalInfoRequest struct {
	Auth storevault.Auth `json:"auth"`
}

// HandleGetWithdrawalInfo handles POST /get-withdrawal-info.
func (h *Handlers) HandleGetWithdrawalInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req getWithdrawalInfoRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	pub, err := storevault.Verify([]byte{}, req.Auth)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, httpapi.ValidationErrorf("UNAUTHORIZED", "%v", err), body)
		return
	}

	records, err := h.server.WithdrawalInfo(r.Context(), pub.Hex())
	if err != nil {
		h.logger.Printf("get withdrawal info: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to retrieve withdrawal info"), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawal_info": records})
}

// HandleWithdrawalFee handles GET /withdrawal-fee.
func (h *Handlers) HandleWithdrawalFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only GET is allowed"), nil)
		return
	}

	tokenIndex := parseUintParam(r, "token_index", 0)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token_index": tokenIndex,
		"quoted_fee":  h.fees.QuotedFee(tokenIndex).String(),
	})
}

func parseUintParam(r *http.Request, name string, defaultVal uint32) uint32 {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	var val uint32
	if _, err := fmt.Sscan(valStr, &val); err != nil {
		return defaultVal
	}
	return val
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httpapi.WriteJSON(w, status, data); err != nil {
		h.logger.Printf("Error encoding response: %v", err)
	}
}
