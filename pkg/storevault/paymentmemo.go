// Copyright 2025 Certen Protocol
//
// Payment memos: a typed wrapper over save_misc/get_misc_sequence binding
// a free-text memo to the transfer it annotates, matching the original
// client's memo-attached-to-transfer idiom (save_payment_memo /
// get_all_payment_memos).

package storevault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zkpayments/rollup-core/pkg/bls12"
	"github.com/zkpayments/rollup-core/pkg/blsecies"
)

// PaymentMemo is a free-text note a sender attaches to one of their own
// transfers, stored encrypted for their own later retrieval.
type PaymentMemo struct {
	TransferDigest string `json:"transfer_digest"`
	Memo           string `json:"memo"`
}

// miscName scopes a misc bucket name to one owner, since Store's
// SaveMisc/GetMiscSequence take a single flat name with no separate owner
// parameter.
func miscName(owner, bucket string) string {
	return owner + ":" + bucket
}

// SavePaymentMemo encrypts memo for recipientPub and appends it to owner's
// payment-memo misc log.
func SavePaymentMemo(ctx context.Context, store Store, owner string, recipientPub *bls12.PublicKey, memo PaymentMemo) (string, error) {
	plaintext, err := json.Marshal(memo)
	if err != nil {
		return "", fmt.Errorf("storevault: marshal payment memo: %w", err)
	}
	env, err := blsecies.Seal(recipientPub, plaintext)
	if err != nil {
		return "", fmt.Errorf("storevault: seal payment memo: %w", err)
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("storevault: marshal envelope: %w", err)
	}

	obj := VersionedBlsEncryption{Version: uint8(env.Version), Data: envBytes}
	return store.SaveMisc(ctx, miscName(owner, "payment_memo"), obj)
}

// GetAllPaymentMemos decrypts and returns every payment memo owner has
// saved, in ascending (timestamp, digest) order, paginating until
// exhausted.
func GetAllPaymentMemos(ctx context.Context, store Store, owner string, recipientPriv *bls12.PrivateKey) ([]PaymentMemo, error) {
	name := miscName(owner, "payment_memo")

	var memos []PaymentMemo
	var cursor Cursor
	for {
		entries, next, err := store.GetMiscSequence(ctx, name, cursor, DefaultSequencePageSize)
		if err != nil {
			return nil, fmt.Errorf("storevault: get payment memos: %w", err)
		}
		for _, e := range entries {
			var env blsecies.Envelope
			if err := json.Unmarshal(e.Object.Data, &env); err != nil {
				return nil, fmt.Errorf("storevault: unmarshal envelope for digest %s: %w", e.Digest, err)
			}
			plaintext, err := blsecies.Open(recipientPriv, &env)
			if err != nil {
				return nil, fmt.Errorf("storevault: open payment memo envelope for digest %s: %w", e.Digest, err)
			}
			var memo PaymentMemo
			if err := json.Unmarshal(plaintext, &memo); err != nil {
				return nil, fmt.Errorf("storevault: unmarshal payment memo for digest %s: %w", e.Digest, err)
			}
			memos = append(memos, memo)
		}
		if next.IsZero() || len(entries) == 0 {
			break
		}
		cursor = next
	}
	return memos, nil
}
