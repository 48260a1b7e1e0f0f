package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CallMethod packs, calls and unpacks a view method on contract at block.
func CallMethod(ctx context.Context, reader ContractStateReader, contract common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if reader == nil {
		return nil, fmt.Errorf("contract state reader is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := reader.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), ErrEmptyResult)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s on %s: %w", method, contract.Hex(), err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s on %s returned no values", method, contract.Hex())
	}
	return values, nil
}

// BlockArg converts a block number into an eth_call block argument. Zero means latest.
func BlockArg(number uint64) *big.Int {
	if number == 0 {
		return nil
	}
	return new(big.Int).SetUint64(number)
}
