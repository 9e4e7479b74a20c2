// Copyright 2025 Certen Protocol
//
// StoreVaultTransferResolver resolves fee-transfer digests against a
// sender's own Store Vault Transfer log, the lookup ValidateFee (fee.go)
// needs before a withdrawal or claim is accepted. Grounded on
// pkg/storevault/store.go's GetDataBatch, the exact shape for fetching a
// known set of digests out of one owner's topic log.

package withdrawal

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/zkpayments/rollup-core/pkg/storevault"
)

// TransferTopic is the well-known Store Vault topic every Transfer record
// a sender ever settles is logged under, read-auth/write-many-auth since
// only the owning pubkey may append to or read its own transfer history.
const TransferTopic = "v1/ra_wa/transfers"

// transferPayload is the JSON shape a settled Transfer record's
// VersionedBlsEncryption.Data decodes to. Store Vault itself never
// interprets object contents; the Withdrawal Server is one of the parties
// that holds the key to, and therefore the schema for, this particular
// topic's entries.
type transferPayload struct {
	Recipient    string `json:"recipient"`
	TokenIndex   uint32 `json:"token_index"`
	Amount       string `json:"amount"`
	SettledBlock uint64 `json:"settled_block"`
}

// StoreVaultTransferResolver implements TransferResolver against a Store
// Vault Store, decoding each matched digest's stored object as a
// transferPayload.
type StoreVaultTransferResolver struct {
	store storevault.Store
	topic storevault.Topic
}

// NewStoreVaultTransferResolver wraps store, parsing TransferTopic once at
// construction since a malformed constant is a programmer error, not a
// runtime one.
func NewStoreVaultTransferResolver(store storevault.Store) *StoreVaultTransferResolver {
	topic, err := storevault.ParseTopic(TransferTopic)
	if err != nil {
		panic(fmt.Sprintf("withdrawal: %v", err))
	}
	return &StoreVaultTransferResolver{store: store, topic: topic}
}

// ResolveFeeTransfers satisfies TransferResolver.
func (r *StoreVaultTransferResolver) ResolveFeeTransfers(ctx context.Context, pubkey string, digests []FeeTransferDigest) ([]TransferRecord, error) {
	raw := make([]string, len(digests))
	for i, d := range digests {
		raw[i] = string(d)
	}

	entries, err := r.store.GetDataBatch(ctx, pubkey, r.topic, raw)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: resolve fee transfers: %w", err)
	}

	records := make([]TransferRecord, 0, len(entries))
	for _, entry := range entries {
		var p transferPayload
		if err := json.Unmarshal(entry.Object.Data, &p); err != nil {
			return nil, fmt.Errorf("withdrawal: decode transfer record %s: %w", entry.Digest, err)
		}
		amount, ok := new(big.Int).SetString(p.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("withdrawal: transfer record %s has a malformed amount %q", entry.Digest, p.Amount)
		}
		records = append(records, TransferRecord{
			Digest:       FeeTransferDigest(entry.Digest),
			Recipient:    p.Recipient,
			TokenIndex:   p.TokenIndex,
			Amount:       amount,
			SettledBlock: p.SettledBlock,
		})
	}
	return records, nil
}
