// Copyright 2025 Certen Protocol
//
// WithdrawalContract wraps pkg/ethereum.Client with the withdrawal
// contract's address and ABI, the withdrawal-side sibling of
// RollupContract, and adapts it to withdrawal.OnChainRelayer.

package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/zkpayments/rollup-core/pkg/ethereum"
	"github.com/zkpayments/rollup-core/pkg/withdrawal"
)

// WithdrawalABI is the minimal ABI surface the withdrawal aggregator
// depends on to relay a wrapped aggregate proof and let recipients claim
// their share when the relay can't settle every withdrawal atomically.
const WithdrawalABI = `[
  {"type":"function","name":"relayWithdrawals","inputs":[
    {"name":"wrappedProof","type":"bytes"},
    {"name":"count","type":"uint256"}
  ],"outputs":[{"name":"needClaim","type":"bool"}]}
]`

// WithdrawalContract adapts the withdrawal contract to withdrawal.OnChainRelayer.
type WithdrawalContract struct {
	client        *ethereum.Client
	address       ethcommon.Address
	abiJSON       abi.ABI
	privateKeyHex string
	gasLimit      uint64
}

// NewWithdrawalContract parses WithdrawalABI once and binds it to address.
func NewWithdrawalContract(client *ethereum.Client, address ethcommon.Address, privateKeyHex string, gasLimit uint64) (*WithdrawalContract, error) {
	parsed, err := abi.JSON(strings.NewReader(WithdrawalABI))
	if err != nil {
		return nil, fmt.Errorf("contracts: parse withdrawal ABI: %w", err)
	}
	return &WithdrawalContract{
		client:        client,
		address:       address,
		abiJSON:       parsed,
		privateKeyHex: privateKeyHex,
		gasLimit:      gasLimit,
	}, nil
}

// RelayWithdrawals satisfies withdrawal.OnChainRelayer by submitting the
// wrapped aggregate proof to the withdrawal contract. It does not decode
// the call's needClaim return value: a relay that does not fail always
// reports needClaim=false.
func (w *WithdrawalContract) RelayWithdrawals(ctx context.Context, wrapped []byte, records []withdrawal.Record) (needClaim bool, err error) {
	result, err := w.client.SendContractTransactionWithRetry(
		ctx, w.address, WithdrawalABI, w.privateKeyHex, "relayWithdrawals", w.gasLimit, 3,
		wrapped, big.NewInt(int64(len(records))),
	)
	if err != nil {
		return false, fmt.Errorf("contracts: relay withdrawals: %w", err)
	}
	// The receipt carries no return data, so needClaim is not read back;
	// the Aggregator therefore never moves records to NeedClaim through
	// this relayer.
	_ = result
	return false, nil
}
