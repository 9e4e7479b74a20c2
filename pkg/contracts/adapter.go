// Copyright 2025 Certen Protocol
//
// Adapts RollupContract to the narrow interfaces pkg/blockbuilder defines,
// so that package never needs to import go-ethereum directly.

package contracts

import (
	"context"

	"github.com/zkpayments/rollup-core/pkg/blockbuilder"
)

// BlockBuilderPoster satisfies blockbuilder.RollupPoster.
type BlockBuilderPoster struct {
	Rollup          *RollupContract
	RegistrationTag uint8
	NonRegTag       uint8
}

// PostBlock adapts a blockbuilder.PostedBlockTx into a PostBlockArgs call.
func (p *BlockBuilderPoster) PostBlock(ctx context.Context, block blockbuilder.PostedBlockTx) ([32]byte, error) {
	kind := p.NonRegTag
	if block.Kind == blockbuilder.KindRegistration {
		kind = p.RegistrationTag
	}

	var aggSigBytes []byte
	if block.AggregatedSig != nil {
		aggSigBytes = block.AggregatedSig.Bytes()
	}

	return p.Rollup.PostBlock(ctx, PostBlockArgs{
		Kind:                kind,
		TxTreeRoot:          block.TxTreeRoot,
		SenderFlags:         block.SenderFlags,
		AggregatedSignature: aggSigBytes,
		BuilderNonce:        block.BuilderNonce,
	})
}
