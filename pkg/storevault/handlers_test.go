// Copyright 2025 Certen Protocol

package storevault

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

func newTestHandlers(t *testing.T) (*Handlers, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewHandlers(store, nil, false), store
}

func doJSON(t *testing.T, h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleSaveUserData_RejectsWrongMethod(t *testing.T) {
	h, _ := newTestHandlers(t)
	rec := doJSON(t, h.HandleSaveUserData, http.MethodGet, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleSaveUserData_SavesAndRoundTrips(t *testing.T) {
	h, _ := newTestHandlers(t)
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	data := VersionedBlsEncryption{Version: 1, Data: []byte("ciphertext")}
	content, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	auth, err := Sign(priv, content, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	reqBody, err := json.Marshal(saveUserDataRequest{Data: data, Auth: auth})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := doJSON(t, h.HandleSaveUserData, http.MethodPost, string(reqBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["digest"] != data.Digest() {
		t.Fatalf("expected digest %s, got %s", data.Digest(), resp["digest"])
	}

	// get-user-data is signed over empty content, not over the saved data.
	getAuth, err := Sign(priv, []byte{}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign get request: %v", err)
	}
	getBody, err := json.Marshal(getUserDataRequest{Auth: getAuth})
	if err != nil {
		t.Fatalf("marshal get request: %v", err)
	}
	getRec := doJSON(t, h.HandleGetUserData, http.MethodPost, string(getBody))
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
}

func TestHandleSaveUserData_RejectsExpiredAuth(t *testing.T) {
	h, _ := newTestHandlers(t)
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	data := VersionedBlsEncryption{Version: 1, Data: []byte("ciphertext")}
	content, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	auth, err := Sign(priv, content, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	reqBody, err := json.Marshal(saveUserDataRequest{Data: data, Auth: auth})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := doJSON(t, h.HandleSaveUserData, http.MethodPost, string(reqBody))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleSaveUserData_StaleDigestReturnsConflict(t *testing.T) {
	h, store := newTestHandlers(t)
	priv, _, err := bls12.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pub := priv.PublicKey().Hex()

	if _, err := store.SaveUserData(context.Background(), pub, nil, VersionedBlsEncryption{Version: 1, Data: []byte("v1")}); err != nil {
		t.Fatalf("seed user data: %v", err)
	}

	data := VersionedBlsEncryption{Version: 1, Data: []byte("v2")}
	content, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	auth, err := Sign(priv, content, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	wrongPrev := "not-the-real-digest"
	reqBody, err := json.Marshal(saveUserDataRequest{Data: data, PrevDigest: &wrongPrev, Auth: auth})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := doJSON(t, h.HandleSaveUserData, http.MethodPost, string(reqBody))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetDataSequence_OpenTopicSkipsAuth(t *testing.T) {
	h, store := newTestHandlers(t)
	topic, err := ParseTopic("v1/ro_wo/balances")
	if err != nil {
		t.Fatalf("parse topic: %v", err)
	}

	if _, err := store.SaveDataBatch(context.Background(), "owner-1", topic, []VersionedBlsEncryption{
		{Version: 1, Data: []byte("a")},
		{Version: 1, Data: []byte("b")},
	}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	reqBody, err := json.Marshal(getDataSequenceRequest{Topic: "v1/ro_wo/balances", Auth: Auth{Pubkey: "owner-1"}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := doJSON(t, h.HandleGetDataSequence, http.MethodPost, string(reqBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []DataWithMeta `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Data))
	}
}

func TestHandleGetDataSequence_InvalidTopicRejected(t *testing.T) {
	h, _ := newTestHandlers(t)
	reqBody, err := json.Marshal(getDataSequenceRequest{Topic: "not-a-topic", Auth: Auth{Pubkey: "owner-1"}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := doJSON(t, h.HandleGetDataSequence, http.MethodPost, string(reqBody))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHealthCheck(t *testing.T) {
	h, _ := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealthCheck(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
