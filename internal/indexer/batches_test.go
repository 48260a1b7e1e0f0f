package indexer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanBatchesRoundsToWorkers(t *testing.T) {
	got, err := planBatches(18_000_000, 18_000_019, 5, 4)
	require.NoError(t, err)
	require.Equal(t, []batch{
		{From: 18_000_000, To: 18_000_007},
		{From: 18_000_008, To: 18_000_015},
		{From: 18_000_016, To: 18_000_019},
	}, got)
	require.Equal(t, uint64(4), got[2].blocks())
}

func TestPlanBatchesCoversRange(t *testing.T) {
	const from, to = 1_000, 1_337
	got, err := planBatches(from, to, 100, 8)
	require.NoError(t, err)

	next := uint64(from)
	var total uint64
	for _, b := range got {
		require.Equal(t, next, b.From)
		require.LessOrEqual(t, b.blocks(), uint64(104))
		total += b.blocks()
		next = b.To + 1
	}
	require.Equal(t, uint64(to+1), next)
	require.Equal(t, uint64(to-from+1), total)
}

func TestPlanBatchesSingleBlock(t *testing.T) {
	got, err := planBatches(42, 42, 100, 1)
	require.NoError(t, err)
	require.Equal(t, []batch{{From: 42, To: 42}}, got)
}

func TestPlanBatchesEndOfRange(t *testing.T) {
	got, err := planBatches(math.MaxUint64-2, math.MaxUint64, 2, 1)
	require.NoError(t, err)
	require.Equal(t, []batch{
		{From: math.MaxUint64 - 2, To: math.MaxUint64 - 1},
		{From: math.MaxUint64, To: math.MaxUint64},
	}, got)
}

func TestPlanBatchesInvalid(t *testing.T) {
	_, err := planBatches(10, 9, 1, 1)
	require.Error(t, err)
	_, err = planBatches(1, 10, 0, 1)
	require.Error(t, err)
}
