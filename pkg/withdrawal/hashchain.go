// Copyright 2025 Certen Protocol
//
// Default HashChainProcessor: chains a batch's single-withdrawal proof
// blobs into one running sha256 digest, the same "commit" idiom
// pkg/proofsystem/circuits.go's commit() uses inside a circuit, done here
// in plain Go since the hash-chain itself is opaque to the two wrapper
// circuits that consume it.

package withdrawal

import (
	"context"
	"crypto/sha256"
)

// Sha256HashChainer satisfies HashChainProcessor by folding each record's
// single-withdrawal proof blob into a running digest, in Record order.
type Sha256HashChainer struct{}

// ChainProofs folds records in order into one sha256 hash chain, seeded
// with the zero digest.
func (Sha256HashChainer) ChainProofs(ctx context.Context, records []Record) ([]byte, error) {
	chain := make([]byte, sha256.Size)
	for _, rec := range records {
		h := sha256.New()
		h.Write(chain)
		h.Write(rec.SingleWithdrawalProofBlob)
		chain = h.Sum(nil)
	}
	return chain, nil
}
