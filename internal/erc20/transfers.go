package erc20

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"transferScope/internal/chain"
	"transferScope/internal/model"
)

var (
	errTopicCount = errors.New("unexpected topic count")
	errDataLength = errors.New("unexpected data length")
	errTopic0     = errors.New("unexpected topic0")
)

// TransferQuerier fetches and decodes Transfer events for a single token.
type TransferQuerier struct {
	logs chain.LogFilterer
}

func NewTransferQuerier(logs chain.LogFilterer) *TransferQuerier {
	return &TransferQuerier{logs: logs}
}

// TransferLogs returns decoded Transfer events of token in [fromBlock, toBlock].
// A log that does not match the Transfer(address,address,uint256) shape fails the
// whole window with a *chain.DecodeError.
func (q *TransferQuerier) TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]model.TransferEvent, error) {
	if q == nil || q.logs == nil {
		return nil, fmt.Errorf("log filterer is nil")
	}
	logs, err := q.logs.FilterLogs(ctx, fromBlock, toBlock, []common.Address{token}, []common.Hash{TransferTopic})
	if err != nil {
		return nil, err
	}

	events := make([]model.TransferEvent, 0, len(logs))
	for i := range logs {
		if logs[i].Removed {
			continue
		}
		event, err := DecodeTransfer(logs[i])
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// DecodeTransfer decodes a raw Transfer log.
func DecodeTransfer(log types.Log) (model.TransferEvent, error) {
	fail := func(err error) (model.TransferEvent, error) {
		return model.TransferEvent{}, &chain.DecodeError{
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash,
			LogIndex:    log.Index,
			Err:         err,
		}
	}

	if len(log.Topics) != 3 {
		return fail(fmt.Errorf("%w: %d", errTopicCount, len(log.Topics)))
	}
	if log.Topics[0] != TransferTopic {
		return fail(fmt.Errorf("%w: %s", errTopic0, log.Topics[0].Hex()))
	}
	if len(log.Data) != 32 {
		return fail(fmt.Errorf("%w: %d", errDataLength, len(log.Data)))
	}

	return model.TransferEvent{
		Token:       log.Address,
		From:        common.BytesToAddress(log.Topics[1].Bytes()),
		To:          common.BytesToAddress(log.Topics[2].Bytes()),
		Quantity:    new(big.Int).SetBytes(log.Data),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, nil
}
