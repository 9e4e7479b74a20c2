// Copyright 2025 Certen Protocol

package withdrawal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/zkpayments/rollup-core/pkg/storevault"
)

func saveTransfer(t *testing.T, store *storevault.MemoryStore, owner string, p transferPayload) string {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal transfer payload: %v", err)
	}
	topic, err := storevault.ParseTopic(TransferTopic)
	if err != nil {
		t.Fatalf("parse topic: %v", err)
	}
	digests, err := store.SaveDataBatch(context.Background(), owner, topic, []storevault.VersionedBlsEncryption{
		{Version: 1, Data: data},
	})
	if err != nil {
		t.Fatalf("save data batch: %v", err)
	}
	return digests[0]
}

func TestStoreVaultTransferResolver_ResolvesSettledTransfer(t *testing.T) {
	store := storevault.NewMemoryStore()
	digest := saveTransfer(t, store, "sender-1", transferPayload{
		Recipient:    "beneficiary",
		TokenIndex:   1,
		Amount:       "100",
		SettledBlock: 42,
	})

	resolver := NewStoreVaultTransferResolver(store)
	records, err := resolver.ResolveFeeTransfers(context.Background(), "sender-1", []FeeTransferDigest{FeeTransferDigest(digest)})
	if err != nil {
		t.Fatalf("resolve fee transfers: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Recipient != "beneficiary" || records[0].TokenIndex != 1 || records[0].SettledBlock != 42 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if records[0].Amount.String() != "100" {
		t.Fatalf("expected amount 100, got %s", records[0].Amount)
	}
}

func TestStoreVaultTransferResolver_RejectsMalformedAmount(t *testing.T) {
	store := storevault.NewMemoryStore()
	digest := saveTransfer(t, store, "sender-1", transferPayload{
		Recipient:    "beneficiary",
		TokenIndex:   1,
		Amount:       "not-a-number",
		SettledBlock: 42,
	})

	resolver := NewStoreVaultTransferResolver(store)
	if _, err := resolver.ResolveFeeTransfers(context.Background(), "sender-1", []FeeTransferDigest{FeeTransferDigest(digest)}); err == nil {
		t.Fatal("expected error decoding malformed amount")
	}
}

func TestStoreVaultTransferResolver_EmptyDigestsReturnsEmpty(t *testing.T) {
	store := storevault.NewMemoryStore()
	resolver := NewStoreVaultTransferResolver(store)
	records, err := resolver.ResolveFeeTransfers(context.Background(), "sender-1", nil)
	if err != nil {
		t.Fatalf("resolve fee transfers: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
