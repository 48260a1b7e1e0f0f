package scanner

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"transferScope/internal/chain"
	"transferScope/internal/model"
)

var testToken = common.HexToAddress("0x1111111111111111111111111111111111111111")

type window struct {
	from, to uint64
}

type scriptedQuerier struct {
	windows []window
	respond func(call int, from, to uint64) ([]model.TransferEvent, error)
}

func (q *scriptedQuerier) TransferLogs(_ context.Context, _ common.Address, from, to uint64) ([]model.TransferEvent, error) {
	q.windows = append(q.windows, window{from, to})
	if q.respond == nil {
		return nil, nil
	}
	return q.respond(len(q.windows), from, to)
}

func newTestScanner(q TransferQuerier, cfg Config) *Scanner {
	return New(q, chain.NewClassifier(nil), cfg, nil, nil)
}

func TestScanEmptyWindowAdvancesAndDoubles(t *testing.T) {
	q := &scriptedQuerier{}
	s := newTestScanner(q, Config{InitialChunkSize: 5000})
	cursor := s.NewCursor(testToken, 1000, 20000, 0)

	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))
	require.Equal(t, window{1000, 6000}, q.windows[0])
	// next window starts at 6001 with a chunk of 10000
	require.Equal(t, window{6001, 16001}, q.windows[1])
	require.Equal(t, window{16002, 20000}, q.windows[2])
	require.True(t, cursor.Done())
	require.Equal(t, uint64(19001), cursor.Consumed())
}

func TestScanTooLargeShrinksAndRetriesSameFrom(t *testing.T) {
	q := &scriptedQuerier{respond: func(call int, _, _ uint64) ([]model.TransferEvent, error) {
		if call == 1 {
			return nil, errors.New("query returned more than 10000 results")
		}
		return nil, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 5000})
	cursor := s.NewCursor(testToken, 1000, 6000, 0)

	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))
	require.Equal(t, window{1000, 6000}, q.windows[0])
	require.Equal(t, window{1000, 3500}, q.windows[1])
	require.Equal(t, window{3501, 6000}, q.windows[2])
}

func TestScanDecodeErrorIsTransient(t *testing.T) {
	q := &scriptedQuerier{respond: func(call int, from, _ uint64) ([]model.TransferEvent, error) {
		if call == 1 {
			return nil, &chain.DecodeError{BlockNumber: from, Err: errors.New("bad topics")}
		}
		return nil, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 100})
	cursor := s.NewCursor(testToken, 0, 100, 0)

	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))
	require.Equal(t, window{0, 50}, q.windows[1])
}

func TestScanChunkFloorAndTermination(t *testing.T) {
	q := &scriptedQuerier{respond: func(int, uint64, uint64) ([]model.TransferEvent, error) {
		return nil, chain.ErrResultTooLarge
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 4, MinChunkSize: 1, FloorRetries: 2})
	cursor := s.NewCursor(testToken, 10, 12, 0)

	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))
	require.True(t, cursor.Done())
	require.Equal(t, uint64(1), cursor.ChunkSize())
	for _, w := range q.windows {
		require.GreaterOrEqual(t, w.to, w.from)
	}
	last := q.windows[len(q.windows)-1]
	require.Equal(t, window{12, 12}, last)
	require.Equal(t, []BlockRange{{10, 10}, {11, 11}, {12, 12}}, cursor.Skipped())
	require.Equal(t, uint64(3), cursor.Consumed())
}

func TestScanFloorSkipKeepsNeighbouringBlock(t *testing.T) {
	good := model.TransferEvent{
		Token:       testToken,
		From:        common.HexToAddress("0x2222222222222222222222222222222222222222"),
		To:          common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Quantity:    big.NewInt(7),
		BlockNumber: 12,
	}
	q := &scriptedQuerier{respond: func(_ int, from, to uint64) ([]model.TransferEvent, error) {
		if from <= 11 && 11 <= to {
			return nil, &chain.DecodeError{BlockNumber: 11, Err: errors.New("bad topics")}
		}
		if from <= 12 && 12 <= to {
			return []model.TransferEvent{good}, nil
		}
		return nil, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 8, MinChunkSize: 1, FloorRetries: 2})
	cursor := s.NewCursor(testToken, 10, 20, 0)

	var emitted []model.TransferEvent
	require.NoError(t, s.Scan(context.Background(), cursor, func(events []model.TransferEvent) error {
		emitted = append(emitted, events...)
		return nil
	}))

	require.Equal(t, []model.TransferEvent{good}, emitted)
	require.Equal(t, []BlockRange{{11, 11}}, cursor.Skipped())
	require.True(t, cursor.Done())
	require.Equal(t, uint64(11), cursor.Consumed())
}

func TestScanMonotonicRecovery(t *testing.T) {
	q := &scriptedQuerier{respond: func(call int, _, _ uint64) ([]model.TransferEvent, error) {
		if call <= 2 {
			return nil, chain.ErrResultTooLarge
		}
		return nil, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 5000})
	cursor := s.NewCursor(testToken, 0, 100_000, 0)

	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))
	widths := make([]uint64, 0, 4)
	for _, w := range q.windows[2:6] {
		widths = append(widths, w.to-w.from)
	}
	require.Equal(t, []uint64{1250, 2500, 5000, 10000}, widths)
}

func TestScanCoverage(t *testing.T) {
	const creation, latest = 777, 123_457
	q := &scriptedQuerier{respond: func(call int, _, _ uint64) ([]model.TransferEvent, error) {
		if call%3 == 1 {
			return nil, chain.ErrResultTooLarge
		}
		return nil, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 3000})
	cursor := s.NewCursor(testToken, creation, latest, 0)
	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))

	next := uint64(creation)
	for i, w := range q.windows {
		if (i+1)%3 == 1 {
			continue
		}
		require.Equal(t, next, w.from, "gap or overlap at window %d", i)
		next = w.to + 1
	}
	require.Equal(t, uint64(latest+1), next)
	require.Equal(t, uint64(latest-creation+1), cursor.Consumed())
}

func TestScanFatalErrorReportsFromBlock(t *testing.T) {
	boom := errors.New("connection refused")
	q := &scriptedQuerier{respond: func(call int, _, _ uint64) ([]model.TransferEvent, error) {
		if call == 2 {
			return nil, boom
		}
		return nil, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 10})
	cursor := s.NewCursor(testToken, 100, 1000, 0)

	err := s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil })
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	require.ErrorIs(t, err, boom)
	require.Equal(t, testToken, scanErr.Token)
	require.Equal(t, uint64(111), scanErr.FromBlock)
}

func TestScanEmitsInBlockOrder(t *testing.T) {
	q := &scriptedQuerier{respond: func(_ int, from, to uint64) ([]model.TransferEvent, error) {
		return []model.TransferEvent{
			{Token: testToken, BlockNumber: from, Quantity: big.NewInt(1)},
			{Token: testToken, BlockNumber: to, Quantity: big.NewInt(2)},
		}, nil
	}}
	s := newTestScanner(q, Config{InitialChunkSize: 7})
	cursor := s.NewCursor(testToken, 0, 500, 0)

	var blocks []uint64
	require.NoError(t, s.Scan(context.Background(), cursor, func(events []model.TransferEvent) error {
		for _, e := range events {
			blocks = append(blocks, e.BlockNumber)
		}
		return nil
	}))
	for i := 1; i < len(blocks); i++ {
		require.LessOrEqual(t, blocks[i-1], blocks[i])
	}
}

func TestScanEmitFailureIsFatal(t *testing.T) {
	q := &scriptedQuerier{respond: func(_ int, from, _ uint64) ([]model.TransferEvent, error) {
		return []model.TransferEvent{{Token: testToken, BlockNumber: from}}, nil
	}}
	s := newTestScanner(q, Config{})
	cursor := s.NewCursor(testToken, 0, 10, 0)

	diskFull := errors.New("no space left on device")
	err := s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return diskFull })
	require.ErrorIs(t, err, diskFull)
}

func TestCursorMaxChunk(t *testing.T) {
	q := &scriptedQuerier{}
	s := newTestScanner(q, Config{InitialChunkSize: 10, MaxChunkSize: 15})
	cursor := s.NewCursor(testToken, 0, 100, 0)
	require.NoError(t, s.Scan(context.Background(), cursor, func([]model.TransferEvent) error { return nil }))
	require.Equal(t, uint64(15), cursor.ChunkSize())
}

func TestMemoryMemo(t *testing.T) {
	memo := NewMemoryMemo()
	ctx := context.Background()

	_, ok, err := memo.Load(ctx, testToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, memo.Save(ctx, testToken, MemoEntry{ChunkSize: 640, NextFrom: 99}))
	entry, ok, err := memo.Load(ctx, testToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(640), entry.ChunkSize)
	require.Equal(t, uint64(99), entry.NextFrom)
}

func TestFileMemoPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "memo.json")
	ctx := context.Background()
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")

	first := NewFileMemo(path)
	require.NoError(t, first.Save(ctx, testToken, MemoEntry{ChunkSize: 1250, NextFrom: 4000}))
	require.NoError(t, first.Save(ctx, other, MemoEntry{ChunkSize: 8, NextFrom: 5}))

	second := NewFileMemo(path)
	entry, ok, err := second.Load(ctx, testToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, MemoEntry{ChunkSize: 1250, NextFrom: 4000}, MemoEntry{ChunkSize: entry.ChunkSize, NextFrom: entry.NextFrom})

	entry, ok, err = second.Load(ctx, other)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(8), entry.ChunkSize)
}

func TestNewRedisMemoRequiresAddr(t *testing.T) {
	_, err := NewRedisMemo(RedisMemoConfig{})
	require.Error(t, err)

	memo, err := NewRedisMemo(RedisMemoConfig{Addr: "localhost:6379"})
	require.NoError(t, err)
	defer memo.Close()
	require.Equal(t, "transferscope:memo:"+memoKey(testToken), memo.key(testToken))
}
