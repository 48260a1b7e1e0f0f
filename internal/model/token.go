package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20 contract together with the data captured at its creation.
type Token struct {
	Address           common.Address
	Symbol            string
	Name              string
	Decimals          uint8
	TotalSupply       *big.Int
	CreationBlock     uint64
	CreationBlockHash common.Hash
	CreationTimestamp uint64
}

// Meta returns the descriptive subset of the token.
func (t Token) Meta() TokenMeta {
	return TokenMeta{
		Address:  t.Address.Hex(),
		Decimals: t.Decimals,
		Symbol:   t.Symbol,
		Name:     t.Name,
	}
}
