package indexer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"transferScope/internal/erc20"
	"transferScope/internal/model"
)

// CreationLookup finds the transaction that deployed a contract.
type CreationLookup interface {
	ContractCreationTx(ctx context.Context, contract common.Address) (common.Hash, error)
}

// ResolveToken builds a token row for an existing contract: the explorer
// supplies the deployment transaction, the node supplies its receipt, the
// block header and current ERC20 metadata.
func ResolveToken(ctx context.Context, explorer CreationLookup, chainReader ChainReader, contract common.Address, logger *zap.Logger) (model.Token, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	txHash, err := explorer.ContractCreationTx(ctx, contract)
	if err != nil {
		return model.Token{}, fmt.Errorf("creation tx for %s: %w", contract.Hex(), err)
	}
	receipt, err := chainReader.TransactionReceipt(ctx, txHash)
	if err != nil {
		return model.Token{}, fmt.Errorf("receipt %s: %w", txHash.Hex(), err)
	}
	if receipt.BlockNumber == nil {
		return model.Token{}, fmt.Errorf("receipt %s has no block number", txHash.Hex())
	}
	number := receipt.BlockNumber.Uint64()

	header, err := chainReader.HeaderByNumber(ctx, number)
	if err != nil {
		return model.Token{}, fmt.Errorf("header %d: %w", number, err)
	}

	meta, err := erc20.FetchTokenMeta(ctx, chainReader, contract, 0, logger)
	if err != nil {
		return model.Token{}, fmt.Errorf("metadata for %s: %w", contract.Hex(), err)
	}

	token := tokenFromMeta(meta, contract)
	token.CreationBlock = number
	token.CreationBlockHash = receipt.BlockHash
	token.CreationTimestamp = header.Time
	logger.Info("token resolved",
		zap.String("token", contract.Hex()),
		zap.String("symbol", token.Symbol),
		zap.Uint64("creation_block", number),
	)
	return token, nil
}

func tokenFromMeta(meta model.TokenMeta, contract common.Address) model.Token {
	token := model.Token{
		Address:  contract,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: meta.Decimals,
	}
	if meta.TotalSupply != "" {
		if supply, ok := new(big.Int).SetString(meta.TotalSupply, 10); ok {
			token.TotalSupply = supply
		}
	}
	return token
}
