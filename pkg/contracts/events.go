// Copyright 2025 Certen Protocol
//
// Event decoding: adapts RollupContract's raw log access into
// observer.EventFetcher implementations, one per watched event, encoding
// each log's typed fields into an observer.Event's JSON payload.

package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/zkpayments/rollup-core/pkg/observer"
)

func ethereumFilterQuery(address ethcommon.Address, topic ethcommon.Hash, fromBlock, toBlock uint64) geth.FilterQuery {
	return geth.FilterQuery{
		Addresses: []ethcommon.Address{address},
		Topics:    [][]ethcommon.Hash{{topic}},
		FromBlock: blockNumberToBig(fromBlock),
		ToBlock:   blockNumberToBig(toBlock),
	}
}

func blockNumberToBig(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

// DepositedFetcher adapts RollupContract into an observer.EventFetcher for
// the L1 Deposited event. Sequence is the contract's depositIndex, which is
// assigned monotonically by the contract itself, satisfying observer's
// requirement that Sequence be an intrinsic property of the event rather
// than something the observer assigns.
type DepositedFetcher struct {
	Rollup *RollupContract
}

func (f *DepositedFetcher) LatestBlock(ctx context.Context) (uint64, error) {
	return f.Rollup.LatestBlock(ctx)
}

func (f *DepositedFetcher) FetchEvents(ctx context.Context, eventType observer.EventType, fromBlock, toBlock uint64) ([]observer.Event, error) {
	logs, err := f.Rollup.FilterLogsInRange(ctx, "Deposited", fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("contracts: fetch Deposited logs: %w", err)
	}

	events := make([]observer.Event, 0, len(logs))
	for _, lg := range logs {
		unpacked := make(map[string]interface{})
		if err := f.Rollup.ABI().UnpackIntoMap(unpacked, "Deposited", lg.Data); err != nil {
			return nil, fmt.Errorf("contracts: unpack Deposited log: %w", err)
		}
		depositIndex := indexedTopicAsUint64(lg.Topics, 1)
		sender := indexedTopicAsAddress(lg.Topics, 2)

		payload, err := json.Marshal(observer.DepositedPayload{
			DepositIndex:    depositIndex,
			SenderL1Address: sender.Hex(),
			PubkeySaltHash:  fmt.Sprintf("%#x", unpacked["pubkeySaltHash"]),
			TokenIndex:      unpacked["tokenIndex"].(uint32),
			Amount:          fmt.Sprintf("%v", unpacked["amount"]),
		})
		if err != nil {
			return nil, fmt.Errorf("contracts: encode DepositedPayload: %w", err)
		}

		events = append(events, observer.Event{
			Type:           observer.EventDeposited,
			Sequence:       depositIndex,
			EthBlockNumber: lg.BlockNumber,
			TxHash:         lg.TxHash.Hex(),
			Payload:        payload,
		})
	}
	return events, nil
}

// DepositLeafInsertedFetcher adapts RollupContract into an
// observer.EventFetcher for the L2 DepositLeafInserted event.
type DepositLeafInsertedFetcher struct {
	Rollup *RollupContract
}

func (f *DepositLeafInsertedFetcher) LatestBlock(ctx context.Context) (uint64, error) {
	return f.Rollup.LatestBlock(ctx)
}

func (f *DepositLeafInsertedFetcher) FetchEvents(ctx context.Context, eventType observer.EventType, fromBlock, toBlock uint64) ([]observer.Event, error) {
	logs, err := f.Rollup.FilterLogsInRange(ctx, "DepositLeafInserted", fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("contracts: fetch DepositLeafInserted logs: %w", err)
	}

	events := make([]observer.Event, 0, len(logs))
	for _, lg := range logs {
		unpacked := make(map[string]interface{})
		if err := f.Rollup.ABI().UnpackIntoMap(unpacked, "DepositLeafInserted", lg.Data); err != nil {
			return nil, fmt.Errorf("contracts: unpack DepositLeafInserted log: %w", err)
		}
		depositIndex := indexedTopicAsUint64(lg.Topics, 1)

		payload, err := json.Marshal(observer.DepositLeafInsertedPayload{
			DepositIndex: depositIndex,
			DepositHash:  fmt.Sprintf("%#x", unpacked["depositHash"]),
		})
		if err != nil {
			return nil, fmt.Errorf("contracts: encode DepositLeafInsertedPayload: %w", err)
		}

		events = append(events, observer.Event{
			Type:           observer.EventDepositLeafInserted,
			Sequence:       depositIndex,
			EthBlockNumber: lg.BlockNumber,
			TxHash:         lg.TxHash.Hex(),
			Payload:        payload,
		})
	}
	return events, nil
}

// BlockPostedFetcher adapts RollupContract into an observer.EventFetcher
// for the L2 BlockPosted event. Sequence is the posted block number.
type BlockPostedFetcher struct {
	Rollup *RollupContract
}

func (f *BlockPostedFetcher) LatestBlock(ctx context.Context) (uint64, error) {
	return f.Rollup.LatestBlock(ctx)
}

func (f *BlockPostedFetcher) FetchEvents(ctx context.Context, eventType observer.EventType, fromBlock, toBlock uint64) ([]observer.Event, error) {
	logs, err := f.Rollup.FilterLogsInRange(ctx, "BlockPosted", fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("contracts: fetch BlockPosted logs: %w", err)
	}

	events := make([]observer.Event, 0, len(logs))
	for _, lg := range logs {
		unpacked := make(map[string]interface{})
		if err := f.Rollup.ABI().UnpackIntoMap(unpacked, "BlockPosted", lg.Data); err != nil {
			return nil, fmt.Errorf("contracts: unpack BlockPosted log: %w", err)
		}
		blockNumber := indexedTopicAsUint64(lg.Topics, 1)
		builderAddress := indexedTopicAsAddress(lg.Topics, 2)

		payload, err := json.Marshal(observer.BlockPostedPayload{
			BlockNumber:     blockNumber,
			PrevBlockHash:   fmt.Sprintf("%#x", unpacked["prevBlockHash"]),
			DepositTreeRoot: fmt.Sprintf("%#x", unpacked["depositTreeRoot"]),
			TxTreeRoot:      fmt.Sprintf("%#x", unpacked["txTreeRoot"]),
			BuilderAddress:  builderAddress.Hex(),
		})
		if err != nil {
			return nil, fmt.Errorf("contracts: encode BlockPostedPayload: %w", err)
		}

		events = append(events, observer.Event{
			Type:           observer.EventBlockPosted,
			Sequence:       blockNumber,
			EthBlockNumber: lg.BlockNumber,
			TxHash:         lg.TxHash.Hex(),
			Payload:        payload,
		})
	}
	return events, nil
}

func indexedTopicAsUint64(topics []ethcommon.Hash, idx int) uint64 {
	if idx >= len(topics) {
		return 0
	}
	return new(big.Int).SetBytes(topics[idx].Bytes()).Uint64()
}

func indexedTopicAsAddress(topics []ethcommon.Hash, idx int) ethcommon.Address {
	if idx >= len(topics) {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(topics[idx].Bytes())
}
