package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractStateReader reads contract state at a historical block.
type ContractStateReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LogFilterer fetches raw logs for a block range.
type LogFilterer interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// HeadReader reports the current chain head.
type HeadReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

var (
	_ ContractStateReader = (*Client)(nil)
	_ LogFilterer         = (*Client)(nil)
	_ HeadReader          = (*Client)(nil)
)
