// Copyright 2025 Certen Protocol
//
// Conversions between each Kind's typed public-input struct and the flat
// ordered []*big.Int a gnark public witness is built from. The order in
// each *FieldOrder function must match the corresponding circuit's public
// field declaration order in circuits.go exactly - gnark assigns public
// witness values positionally.

package proofsystem

import (
	"fmt"
	"math/big"
)

func boolToBigInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func spentFieldOrder(pub SpentPublicInputs) []*big.Int {
	return []*big.Int{
		zeroIfNil(pub.PrevPrivateCommitment),
		zeroIfNil(pub.NewPrivateCommitment),
		zeroIfNil(pub.Tx),
		zeroIfNil(pub.InsufficientFlags),
		boolToBigInt(pub.IsValid),
	}
}

func spentFromFieldOrder(fields []*big.Int) (SpentPublicInputs, error) {
	if len(fields) != 5 {
		return SpentPublicInputs{}, fmt.Errorf("proofsystem: spent proof expects 5 public inputs, got %d", len(fields))
	}
	return SpentPublicInputs{
		PrevPrivateCommitment: fields[0],
		NewPrivateCommitment:  fields[1],
		Tx:                    fields[2],
		InsufficientFlags:     fields[3],
		IsValid:               fields[4].Sign() != 0,
	}, nil
}

func balanceFieldOrder(pub BalancePublicInputs) []*big.Int {
	return []*big.Int{
		zeroIfNil(pub.Pubkey),
		zeroIfNil(pub.PrivateCommitment),
		zeroIfNil(pub.LastTxHash),
		zeroIfNil(pub.LastBlockNumber),
		zeroIfNil(pub.PublicState.BlockHash),
		zeroIfNil(pub.PublicState.AccountTreeRoot),
		zeroIfNil(pub.PublicState.DepositTreeRoot),
	}
}

func balanceFromFieldOrder(fields []*big.Int) (BalancePublicInputs, error) {
	if len(fields) != 7 {
		return BalancePublicInputs{}, fmt.Errorf("proofsystem: balance proof expects 7 public inputs, got %d", len(fields))
	}
	return BalancePublicInputs{
		Pubkey:            fields[0],
		PrivateCommitment: fields[1],
		LastTxHash:        fields[2],
		LastBlockNumber:   fields[3],
		PublicState: PublicState{
			BlockHash:       fields[4],
			AccountTreeRoot: fields[5],
			DepositTreeRoot: fields[6],
		},
	}, nil
}

func singleWithdrawalFieldOrder(pub SingleWithdrawalPublicInputs) []*big.Int {
	return []*big.Int{
		zeroIfNil(pub.Recipient),
		zeroIfNil(pub.TokenIndex),
		zeroIfNil(pub.Amount),
		zeroIfNil(pub.Nullifier),
	}
}

func singleWithdrawalFromFieldOrder(fields []*big.Int) (SingleWithdrawalPublicInputs, error) {
	if len(fields) != 4 {
		return SingleWithdrawalPublicInputs{}, fmt.Errorf("proofsystem: single-withdrawal proof expects 4 public inputs, got %d", len(fields))
	}
	return SingleWithdrawalPublicInputs{
		Recipient:  fields[0],
		TokenIndex: fields[1],
		Amount:     fields[2],
		Nullifier:  fields[3],
	}, nil
}

func singleClaimFieldOrder(pub SingleClaimPublicInputs) []*big.Int {
	return []*big.Int{
		zeroIfNil(pub.Recipient),
		zeroIfNil(pub.PeriodNumber),
		zeroIfNil(pub.Amount),
		zeroIfNil(pub.Nullifier),
	}
}

func singleClaimFromFieldOrder(fields []*big.Int) (SingleClaimPublicInputs, error) {
	if len(fields) != 4 {
		return SingleClaimPublicInputs{}, fmt.Errorf("proofsystem: single-claim proof expects 4 public inputs, got %d", len(fields))
	}
	return SingleClaimPublicInputs{
		Recipient:    fields[0],
		PeriodNumber: fields[1],
		Amount:       fields[2],
		Nullifier:    fields[3],
	}, nil
}

func transitionFieldOrder(pub TransitionPublicInputs) []*big.Int {
	return []*big.Int{
		zeroIfNil(pub.PrevRoot),
		zeroIfNil(pub.NewRoot),
		zeroIfNil(pub.BlockNumber),
	}
}

func transitionFromFieldOrder(fields []*big.Int) (TransitionPublicInputs, error) {
	if len(fields) != 3 {
		return TransitionPublicInputs{}, fmt.Errorf("proofsystem: transition proof expects 3 public inputs, got %d", len(fields))
	}
	return TransitionPublicInputs{
		PrevRoot:    fields[0],
		NewRoot:     fields[1],
		BlockNumber: fields[2],
	}, nil
}
