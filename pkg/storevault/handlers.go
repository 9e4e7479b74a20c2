// Copyright 2025 Certen Protocol
//
// Store Vault HTTP Handlers
// Implements the /save-user-data, /get-user-data, /save-data-batch,
// /get-data-sequence surface of spec.md §6.3, in the same
// method-check/parse/call-repo/writeJSON shape as
// pkg/server/proof_handlers.go. Errors route through pkg/httpapi so every
// failure crosses the wire as {status, message, url, brief_request}.

package storevault

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/zkpayments/rollup-core/pkg/httpapi"
)

// Handlers provides HTTP handlers for Store Vault operations.
type Handlers struct {
	store  Store
	logger *log.Logger
	errs   httpapi.Writer
}

// NewHandlers creates new Store Vault handlers. debug preserves full
// request bodies in error responses instead of truncating them to 500
// characters.
func NewHandlers(store Store, logger *log.Logger, debug bool) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[StoreVault] ", log.LstdFlags)
	}
	return &Handlers{store: store, logger: logger, errs: httpapi.Writer{Debug: debug}}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, fallbackStatus int, err error, body []byte) {
	h.errs.WriteError(w, r, fallbackStatus, err, body)
}

// saveUserDataRequest is the signed body of POST /save-user-data.
type saveUserDataRequest struct {
	Data       VersionedBlsEncryption `json:"data"`
	PrevDigest *string                `json:"prev_digest,omitempty"`
	Auth       Auth                   `json:"auth"`
}

// HandleSaveUserData handles POST /save-user-data.
func (h *Handlers) HandleSaveUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req saveUserDataRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	content, err := json.Marshal(req.Data)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("encode content: %w", err), body)
		return
	}
	pub, err := Verify(content, req.Auth)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, httpapi.ValidationErrorf("UNAUTHORIZED", "%v", err), body)
		return
	}

	digest, err := h.store.SaveUserData(r.Context(), pub.Hex(), req.PrevDigest, req.Data)
	if err == ErrStaleDigest {
		h.writeError(w, r, http.StatusConflict, httpapi.ValidationErrorf("STALE_DIGEST", "prev_digest does not match the current stored digest"), body)
		return
	}
	if err != nil {
		h.logger.Printf("save user data: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to save user data"), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"digest": digest})
}

// getUserDataRequest is the signed body of POST /get-user-data.
type getUserDataRequest struct {
	Auth Auth `json:"auth"`
}

// HandleGetUserData handles POST /get-user-data.
func (h *Handlers) HandleGetUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req getUserDataRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	pub, err := Verify([]byte{}, req.Auth)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, httpapi.ValidationErrorf("UNAUTHORIZED", "%v", err), body)
		return
	}

	obj, digest, err := h.store.GetUserData(r.Context(), pub.Hex())
	if err == ErrNotFound {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": nil})
		return
	}
	if err != nil {
		h.logger.Printf("get user data: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to retrieve user data"), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": obj, "digest": digest})
}

// saveDataBatchRequest is the signed body of POST /save-data-batch.
type saveDataBatchRequest struct {
	Topic   string                   `json:"topic"`
	Entries []VersionedBlsEncryption `json:"entries"`
	Auth    Auth                     `json:"auth"`
}

// HandleSaveDataBatch handles POST /save-data-batch.
func (h *Handlers) HandleSaveDataBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req saveDataBatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}
	if len(req.Entries) > MaxBatchSize {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("BATCH_TOO_LARGE", "batch exceeds max size %d", MaxBatchSize), body)
		return
	}

	topic, err := ParseTopic(req.Topic)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_TOPIC", "%v", err), body)
		return
	}

	content, err := json.Marshal(req.Entries)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("encode content: %w", err), body)
		return
	}
	var pub string
	if topic.RequiresAuthToWrite() {
		signer, err := Verify(content, req.Auth)
		if err != nil {
			h.writeError(w, r, http.StatusUnauthorized, httpapi.ValidationErrorf("UNAUTHORIZED", "%v", err), body)
			return
		}
		pub = signer.Hex()
	} else {
		pub = req.Auth.Pubkey
	}

	digests, err := h.store.SaveDataBatch(r.Context(), pub, topic, req.Entries)
	if err != nil {
		h.logger.Printf("save data batch: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to save data batch"), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"digests": digests})
}

// getDataSequenceRequest is the signed body of POST /get-data-sequence.
type getDataSequenceRequest struct {
	Topic  string  `json:"topic"`
	Cursor *Cursor `json:"cursor,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Auth   Auth    `json:"auth"`
}

// HandleGetDataSequence handles POST /get-data-sequence.
func (h *Handlers) HandleGetDataSequence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("only POST is allowed"), nil)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req getDataSequenceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_BODY", "invalid request body: %v", err), body)
		return
	}

	topic, err := ParseTopic(req.Topic)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, httpapi.ValidationErrorf("INVALID_TOPIC", "%v", err), body)
		return
	}

	var pub string
	if topic.RequiresAuthToRead() {
		signer, err := Verify([]byte(req.Topic), req.Auth)
		if err != nil {
			h.writeError(w, r, http.StatusUnauthorized, httpapi.ValidationErrorf("UNAUTHORIZED", "%v", err), body)
			return
		}
		pub = signer.Hex()
	} else {
		pub = req.Auth.Pubkey
	}

	cursor := Cursor{}
	if req.Cursor != nil {
		cursor = *req.Cursor
	}

	entries, next, err := h.store.GetDataSequence(r.Context(), pub, topic, cursor, req.Limit)
	if err != nil {
		h.logger.Printf("get data sequence: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, httpapi.TransientIOErrorf("INTERNAL_ERROR", "failed to retrieve data sequence"), body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":            entries,
		"cursor_response": next,
	})
}

// HandleHealthCheck handles GET /health.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "store-vault",
		"version": "1.0.0",
		"time":    time.Now().UTC(),
	})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := httpapi.WriteJSON(w, status, data); err != nil {
		h.logger.Printf("error encoding response: %v", err)
	}
}
