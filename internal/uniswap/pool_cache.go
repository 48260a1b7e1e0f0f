package uniswap

import (
	"bytes"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type pairKey struct {
	lo, hi common.Address
}

func newPairKey(a, b common.Address) pairKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// poolCache caches factory lookups by unordered pair. A zero address records
// that the factory has no pool for the pair.
type poolCache struct {
	mu   sync.RWMutex
	data map[pairKey]common.Address
}

func newPoolCache() *poolCache {
	return &poolCache{data: make(map[pairKey]common.Address)}
}

func (c *poolCache) Get(a, b common.Address) (common.Address, bool) {
	c.mu.RLock()
	pool, ok := c.data[newPairKey(a, b)]
	c.mu.RUnlock()
	return pool, ok
}

func (c *poolCache) Set(a, b, pool common.Address) {
	c.mu.Lock()
	c.data[newPairKey(a, b)] = pool
	c.mu.Unlock()
}
