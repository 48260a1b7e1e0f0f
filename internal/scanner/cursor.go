package scanner

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// Cursor is the adaptive scan state of one token. It is owned by a single
// scan task and is not safe for concurrent use.
type Cursor struct {
	Token common.Address

	fromBlock   uint64
	latestBlock uint64
	chunkSize   uint64
	minChunk    uint64
	maxChunk    uint64
	consumed    uint64
	done        bool
	// single restricts the next window to one block while a failing
	// minimum-size window is narrowed down.
	single  bool
	skipped []BlockRange
}

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// NewCursor starts a cursor covering [fromBlock, latestBlock].
func NewCursor(token common.Address, fromBlock, latestBlock, chunkSize uint64) *Cursor {
	return &Cursor{
		Token:       token,
		fromBlock:   fromBlock,
		latestBlock: latestBlock,
		chunkSize:   chunkSize,
		minChunk:    1,
	}
}

// withBounds clamps the chunk size into [minChunk, maxChunk]. A zero max means unbounded.
func (c *Cursor) withBounds(minChunk, maxChunk uint64) *Cursor {
	if minChunk == 0 {
		minChunk = 1
	}
	c.minChunk = minChunk
	c.maxChunk = maxChunk
	c.chunkSize = c.clamp(c.chunkSize)
	return c
}

func (c *Cursor) clamp(size uint64) uint64 {
	if size < c.minChunk {
		size = c.minChunk
	}
	if c.maxChunk > 0 && size > c.maxChunk {
		size = c.maxChunk
	}
	return size
}

// Done reports whether the whole range has been consumed.
func (c *Cursor) Done() bool {
	return c.done || c.fromBlock > c.latestBlock
}

// Window returns the next range to request: [from, min(from+chunk, latest)].
func (c *Cursor) Window() (uint64, uint64) {
	if c.single {
		return c.fromBlock, c.fromBlock
	}
	to := c.latestBlock
	if c.fromBlock <= math.MaxUint64-c.chunkSize && c.fromBlock+c.chunkSize < to {
		to = c.fromBlock + c.chunkSize
	}
	return c.fromBlock, to
}

// advance moves past the current window. The chunk doubles only when grow is set.
func (c *Cursor) advance(grow bool) uint64 {
	from, to := c.Window()
	blocks := to - from + 1
	c.consumed += blocks
	c.single = false
	if to == math.MaxUint64 {
		c.done = true
	} else {
		c.fromBlock = to + 1
	}
	if grow {
		if c.chunkSize > math.MaxUint64/2 {
			c.chunkSize = math.MaxUint64
		} else {
			c.chunkSize *= 2
		}
		c.chunkSize = c.clamp(c.chunkSize)
	}
	return blocks
}

// shrink halves the chunk, never below the minimum. It reports whether the
// chunk was already at the minimum.
func (c *Cursor) shrink() bool {
	atFloor := c.chunkSize <= c.minChunk
	c.chunkSize = c.clamp(c.chunkSize / 2)
	return atFloor
}

// narrow limits the following windows to the single block at fromBlock. It
// reports false when the current window already is that block.
func (c *Cursor) narrow() bool {
	from, to := c.Window()
	if from == to {
		return false
	}
	c.single = true
	return true
}

// skip records the current window as a gap and moves past it without growing.
func (c *Cursor) skip() (BlockRange, uint64) {
	from, to := c.Window()
	gap := BlockRange{From: from, To: to}
	c.skipped = append(c.skipped, gap)
	return gap, c.advance(false)
}

// Skipped lists the windows given up after repeated transient failures, in block order.
func (c *Cursor) Skipped() []BlockRange {
	return append([]BlockRange(nil), c.skipped...)
}

func (c *Cursor) FromBlock() uint64   { return c.fromBlock }
func (c *Cursor) LatestBlock() uint64 { return c.latestBlock }
func (c *Cursor) ChunkSize() uint64   { return c.chunkSize }

// Consumed is the number of blocks covered so far.
func (c *Cursor) Consumed() uint64 { return c.consumed }

func (c *Cursor) String() string {
	return fmt.Sprintf("%s from=%d latest=%d chunk=%d", c.Token.Hex(), c.fromBlock, c.latestBlock, c.chunkSize)
}
