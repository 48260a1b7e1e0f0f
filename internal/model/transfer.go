package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferEvent is a decoded ERC20 Transfer log. Quantity is in raw token units.
type TransferEvent struct {
	Token       common.Address
	From        common.Address
	To          common.Address
	Quantity    *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// TransferColumns is the fixed column order of the transfer output table.
var TransferColumns = []string{"address", "from", "to", "quantity", "blockNumber", "transactionHash"}
