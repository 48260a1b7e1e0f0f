package pricing

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"transferScope/internal/chain"
	"transferScope/internal/erc20"
)

// DecimalsSource resolves ERC20 decimals.
type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// DecimalsCache caches token decimals by address. Decimals are immutable, so
// they are read once at latest state.
type DecimalsCache struct {
	reader chain.ContractStateReader

	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewDecimalsCache(reader chain.ContractStateReader) *DecimalsCache {
	return &DecimalsCache{reader: reader, data: make(map[common.Address]uint8)}
}

func (c *DecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *DecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}

// Decimals returns cached decimals, loading them via chain RPC on a miss.
func (c *DecimalsCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if decimals, ok := c.Get(token); ok {
		return decimals, nil
	}
	decimals, err := erc20.Decimals(ctx, c.reader, token, 0)
	if err != nil {
		return 0, err
	}
	c.Set(token, decimals)
	return decimals, nil
}
