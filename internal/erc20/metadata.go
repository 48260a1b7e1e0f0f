package erc20

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"transferScope/internal/chain"
	"transferScope/internal/model"
)

// FetchTokenMeta loads token metadata via ERC20 calls at block (0 = latest).
// Decimals are required; symbol, name and totalSupply are best effort.
func FetchTokenMeta(ctx context.Context, reader chain.ContractStateReader, token common.Address, block uint64, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if reader == nil {
		return meta, fmt.Errorf("contract state reader is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	decimals, err := Decimals(ctx, reader, token, block)
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if symbol, err := readText(ctx, reader, token, "symbol", block); err == nil {
		meta.Symbol = symbol
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if name, err := readText(ctx, reader, token, "name", block); err == nil {
		meta.Name = name
	} else {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if supply, err := TotalSupply(ctx, reader, token, block); err == nil {
		meta.TotalSupply = supply.String()
	} else {
		logger.Debug("totalSupply call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// Decimals reads decimals() at block, retrying at latest state when the
// historical read fails (archive-less nodes).
func Decimals(ctx context.Context, reader chain.ContractStateReader, token common.Address, block uint64) (uint8, error) {
	values, err := callWithFallback(ctx, reader, token, "decimals", block)
	if err != nil {
		return 0, err
	}
	return chain.AsUint8(values[0])
}

// TotalSupply reads totalSupply() at block.
func TotalSupply(ctx context.Context, reader chain.ContractStateReader, token common.Address, block uint64) (*big.Int, error) {
	values, err := callWithFallback(ctx, reader, token, "totalSupply", block)
	if err != nil {
		return nil, err
	}
	return chain.AsBigInt(values[0])
}

// BalanceOf reads balanceOf(owner) at block.
func BalanceOf(ctx context.Context, reader chain.ContractStateReader, token, owner common.Address, block uint64) (*big.Int, error) {
	values, err := callWithFallback(ctx, reader, token, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	return chain.AsBigInt(values[0])
}

// IsERC20 probes a contract with balanceOf and totalSupply. Both must succeed and decode.
func IsERC20(ctx context.Context, reader chain.ContractStateReader, contract common.Address, block uint64) bool {
	parsed, err := ABI()
	if err != nil {
		return false
	}
	if _, err := chain.CallMethod(ctx, reader, contract, parsed, "balanceOf", chain.BlockArg(block), contract); err != nil {
		return false
	}
	if _, err := chain.CallMethod(ctx, reader, contract, parsed, "totalSupply", chain.BlockArg(block)); err != nil {
		return false
	}
	return true
}

func callWithFallback(ctx context.Context, reader chain.ContractStateReader, token common.Address, method string, block uint64, args ...interface{}) ([]interface{}, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := chain.CallMethod(ctx, reader, token, parsed, method, chain.BlockArg(block), args...)
	if err == nil || block == 0 {
		return values, err
	}
	if ctx.Err() != nil {
		return nil, err
	}
	values, latestErr := chain.CallMethod(ctx, reader, token, parsed, method, nil, args...)
	if latestErr != nil {
		return nil, fmt.Errorf("%w (latest: %v)", err, latestErr)
	}
	return values, nil
}

func readText(ctx context.Context, reader chain.ContractStateReader, token common.Address, method string, block uint64) (string, error) {
	parsed, err := ABI()
	if err != nil {
		return "", err
	}
	values, err := chain.CallMethod(ctx, reader, token, parsed, method, chain.BlockArg(block))
	if err == nil {
		if text, ok := values[0].(string); ok {
			return text, nil
		}
	}

	fallback, parseErr := Bytes32ABI()
	if parseErr != nil {
		return "", parseErr
	}
	values, b32Err := chain.CallMethod(ctx, reader, token, fallback, method, chain.BlockArg(block))
	if b32Err != nil {
		if err == nil {
			err = b32Err
		}
		return "", err
	}
	text, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("%s: unsupported type %T", method, values[0])
	}
	return text, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
