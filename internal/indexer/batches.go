package indexer

import (
	"fmt"
	"math"
)

// batch is one checkpointed unit of discovery work, inclusive on both ends.
type batch struct {
	From uint64
	To   uint64
}

func (b batch) blocks() uint64 {
	return b.To - b.From + 1
}

// planBatches cuts [from, to] into checkpoint batches. The batch size is
// rounded up to a multiple of workers so a full batch keeps every worker busy.
func planBatches(from, to, batchSize uint64, workers int) ([]batch, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}
	if workers > 1 {
		w := uint64(workers)
		if rem := batchSize % w; rem != 0 && batchSize <= math.MaxUint64-(w-rem) {
			batchSize += w - rem
		}
	}

	var batches []batch
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		batches = append(batches, batch{From: start, To: end})
		if end == to {
			return batches, nil
		}
		start = end + 1
	}
}
