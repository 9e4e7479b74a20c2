// Copyright 2025 Certen Protocol
//
// Contracts bridges the rollup's L1/L2 contracts and withdrawal contract to
// the block builder, validity prover and withdrawal server, built on top of
// pkg/ethereum's Client the way pkg/batch/anchor_adapter.go builds on it for
// batch anchoring.

package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/zkpayments/rollup-core/pkg/ethereum"
)

// RollupABI is the minimal ABI surface the block builder and validity
// prover depend on. Production deployments load the full generated ABI;
// this subset is what CallContract/SendContractTransaction need to pack
// and unpack the methods this package calls.
const RollupABI = `[
  {"type":"function","name":"postBlock","inputs":[
    {"name":"kind","type":"uint8"},
    {"name":"txTreeRoot","type":"bytes32"},
    {"name":"senderFlags","type":"bytes"},
    {"name":"aggregatedSignature","type":"bytes"},
    {"name":"builderNonce","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"pendingDepositCount","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"latestPostedBlockNumber","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Deposited","inputs":[
    {"name":"depositIndex","type":"uint256","indexed":true},
    {"name":"sender","type":"address","indexed":true},
    {"name":"pubkeySaltHash","type":"bytes32"},
    {"name":"tokenIndex","type":"uint32"},
    {"name":"amount","type":"uint256"}
  ]},
  {"type":"event","name":"DepositLeafInserted","inputs":[
    {"name":"depositIndex","type":"uint256","indexed":true},
    {"name":"depositHash","type":"bytes32"}
  ]},
  {"type":"event","name":"BlockPosted","inputs":[
    {"name":"blockNumber","type":"uint256","indexed":true},
    {"name":"builderAddress","type":"address","indexed":true},
    {"name":"prevBlockHash","type":"bytes32"},
    {"name":"depositTreeRoot","type":"bytes32"},
    {"name":"txTreeRoot","type":"bytes32"}
  ]}
]`

// RollupContract wraps pkg/ethereum.Client with the rollup contract's
// address and ABI, and adapts it to the narrow interfaces blockbuilder,
// validityprover and observer define.
type RollupContract struct {
	client        *ethereum.Client
	address       ethcommon.Address
	abiJSON       abi.ABI
	privateKeyHex string
	gasLimit      uint64
}

// NewRollupContract parses RollupABI once and binds it to address.
func NewRollupContract(client *ethereum.Client, address ethcommon.Address, privateKeyHex string, gasLimit uint64) (*RollupContract, error) {
	parsed, err := abi.JSON(strings.NewReader(RollupABI))
	if err != nil {
		return nil, fmt.Errorf("contracts: parse rollup ABI: %w", err)
	}
	return &RollupContract{
		client:        client,
		address:       address,
		abiJSON:       parsed,
		privateKeyHex: privateKeyHex,
		gasLimit:      gasLimit,
	}, nil
}

// NextOnChainNonce satisfies blockbuilder.ChainNonceSource by reading the
// builder address's pending nonce.
func (r *RollupContract) NextOnChainNonce(ctx context.Context) (uint64, error) {
	addr, err := ethereum.GetPublicAddress(r.privateKeyHex)
	if err != nil {
		return 0, fmt.Errorf("contracts: derive builder address: %w", err)
	}
	nonce, err := r.client.GetNonce(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("contracts: read on-chain nonce: %w", err)
	}
	return nonce, nil
}

// PendingDepositCount satisfies blockbuilder.DepositChecker.
func (r *RollupContract) PendingDepositCount(ctx context.Context) (int, error) {
	out, err := r.client.CallContract(ctx, r.address, RollupABI, "pendingDepositCount")
	if err != nil {
		return 0, fmt.Errorf("contracts: call pendingDepositCount: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("contracts: unexpected pendingDepositCount return shape")
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("contracts: pendingDepositCount did not return a uint256")
	}
	return int(count.Int64()), nil
}

// LatestBlock satisfies observer.EventFetcher.
func (r *RollupContract) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := r.client.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func encodeSenderFlags(flags []bool) []byte {
	out := make([]byte, (len(flags)+7)/8)
	for i, set := range flags {
		if set {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// PostBlockArgs carries the calldata for a postBlock call; blockbuilder's
// PostedBlockTx is adapted into this shape at the call site, keeping
// pkg/contracts free of a direct import on pkg/bls12's signature type.
type PostBlockArgs struct {
	Kind                uint8
	TxTreeRoot          [32]byte
	SenderFlags         []bool
	AggregatedSignature []byte
	BuilderNonce        uint64
}

// PostBlock submits a finished block to the rollup contract.
func (r *RollupContract) PostBlock(ctx context.Context, args PostBlockArgs) (txHash [32]byte, err error) {
	result, err := r.client.SendContractTransactionWithRetry(
		ctx, r.address, RollupABI, r.privateKeyHex, "postBlock", r.gasLimit, 3,
		args.Kind, args.TxTreeRoot, encodeSenderFlags(args.SenderFlags), args.AggregatedSignature, new(big.Int).SetUint64(args.BuilderNonce),
	)
	if err != nil {
		return [32]byte{}, fmt.Errorf("contracts: post block: %w", err)
	}
	hashBytes := ethcommon.HexToHash(result.TransactionHash)
	return hashBytes, nil
}

// eventTopic returns the log topic hash for a named event in RollupABI.
func (r *RollupContract) eventTopic(name string) (ethcommon.Hash, error) {
	ev, ok := r.abiJSON.Events[name]
	if !ok {
		return ethcommon.Hash{}, fmt.Errorf("contracts: event %s not found in ABI", name)
	}
	return ev.ID, nil
}

// FilterLogsInRange retrieves raw logs for a named event between fromBlock
// and toBlock (inclusive), for use by observer-compatible FetchEvents
// implementations defined alongside each service's event payload decoding.
func (r *RollupContract) FilterLogsInRange(ctx context.Context, eventName string, fromBlock, toBlock uint64) ([]ethtypes.Log, error) {
	topic, err := r.eventTopic(eventName)
	if err != nil {
		return nil, err
	}
	return r.client.GetClient().FilterLogs(ctx, ethereumFilterQuery(r.address, topic, fromBlock, toBlock))
}

// ABI exposes the parsed ABI for callers that need to unpack log data
// (e.g. the event-decoding FetchEvents implementations).
func (r *RollupContract) ABI() *abi.ABI { return &r.abiJSON }
