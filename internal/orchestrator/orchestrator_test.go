package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"transferScope/internal/chain"
	"transferScope/internal/model"
	"transferScope/internal/scanner"
)

type tokenQuerier struct {
	mu       sync.Mutex
	windows  map[common.Address][]uint64
	fail     map[common.Address]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newTokenQuerier() *tokenQuerier {
	return &tokenQuerier{windows: make(map[common.Address][]uint64), fail: make(map[common.Address]error)}
}

func (q *tokenQuerier) TransferLogs(_ context.Context, token common.Address, from, to uint64) ([]model.TransferEvent, error) {
	n := q.inFlight.Add(1)
	defer q.inFlight.Add(-1)
	for {
		peak := q.peak.Load()
		if n <= peak || q.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if q.delay > 0 {
		time.Sleep(q.delay)
	}

	q.mu.Lock()
	q.windows[token] = append(q.windows[token], from)
	err := q.fail[token]
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []model.TransferEvent{{Token: token, BlockNumber: from, Quantity: big.NewInt(1)}}, nil
}

type memorySink struct {
	mu     sync.Mutex
	events []model.TransferEvent
}

func (s *memorySink) PutTransferBatch(events []model.TransferEvent) error {
	s.mu.Lock()
	s.events = append(s.events, events...)
	s.mu.Unlock()
	return nil
}

type fixedHead uint64

func (h fixedHead) LatestBlockNumber(context.Context) (uint64, error) { return uint64(h), nil }

func tokenAt(i int, creation uint64) model.Token {
	return model.Token{Address: common.BigToAddress(big.NewInt(int64(0x1000 + i))), CreationBlock: creation}
}

func TestRunIsolatesFailures(t *testing.T) {
	q := newTokenQuerier()
	bad := tokenAt(1, 100)
	q.fail[bad.Address] = errors.New("connection refused")

	s := scanner.New(q, chain.NewClassifier(nil), scanner.Config{InitialChunkSize: 100}, nil, nil)
	sink := &memorySink{}
	o := New(s, sink, nil, fixedHead(1000), Config{Workers: 2}, nil, nil)

	tokens := []model.Token{tokenAt(0, 100), bad, tokenAt(2, 500)}
	report, err := o.Run(context.Background(), tokens)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), report.LatestBlock)
	require.Equal(t, 2, report.Completed)
	require.Len(t, report.Failures, 1)
	require.Equal(t, bad.Address, report.Failures[0].Token)
	require.Equal(t, uint64(100), report.Failures[0].FromBlock)
	require.Equal(t, int64(len(sink.events)), report.Events)
}

func TestRunBoundsWorkers(t *testing.T) {
	q := newTokenQuerier()
	q.delay = 2 * time.Millisecond
	s := scanner.New(q, chain.NewClassifier(nil), scanner.Config{InitialChunkSize: 50}, nil, nil)
	o := New(s, &memorySink{}, nil, nil, Config{Workers: 3, LatestBlock: 400}, nil, nil)

	tokens := make([]model.Token, 0, 10)
	for i := 0; i < 10; i++ {
		tokens = append(tokens, tokenAt(i, 0))
	}
	report, err := o.Run(context.Background(), tokens)
	require.NoError(t, err)
	require.Equal(t, 10, report.Completed)
	require.LessOrEqual(t, q.peak.Load(), int32(3))
}

func TestRunSeedsFromMemo(t *testing.T) {
	q := newTokenQuerier()
	s := scanner.New(q, chain.NewClassifier(nil), scanner.Config{InitialChunkSize: 5000}, nil, nil)
	memo := scanner.NewMemoryMemo()
	token := tokenAt(0, 1000)
	require.NoError(t, memo.Save(context.Background(), token.Address, scanner.MemoEntry{ChunkSize: 40, NextFrom: 1500}))

	o := New(s, &memorySink{}, memo, nil, Config{Workers: 1, LatestBlock: 2000, Resume: true}, nil, nil)
	_, err := o.Run(context.Background(), []model.Token{token})
	require.NoError(t, err)

	windows := q.windows[token.Address]
	require.Equal(t, uint64(1500), windows[0])
	// memo chunk 40 means the second window starts 41 blocks later
	require.Equal(t, uint64(1541), windows[1])

	entry, ok, err := memo.Load(context.Background(), token.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2001), entry.NextFrom)
	require.Greater(t, entry.ChunkSize, uint64(40))
}

func TestRunWithoutResumeKeepsChunkButRestarts(t *testing.T) {
	q := newTokenQuerier()
	s := scanner.New(q, chain.NewClassifier(nil), scanner.Config{InitialChunkSize: 5000}, nil, nil)
	memo := scanner.NewMemoryMemo()
	token := tokenAt(0, 1000)
	require.NoError(t, memo.Save(context.Background(), token.Address, scanner.MemoEntry{ChunkSize: 40, NextFrom: 1500}))

	o := New(s, &memorySink{}, memo, nil, Config{Workers: 1, LatestBlock: 2000}, nil, nil)
	_, err := o.Run(context.Background(), []model.Token{token})
	require.NoError(t, err)

	windows := q.windows[token.Address]
	require.Equal(t, uint64(1000), windows[0])
	require.Equal(t, uint64(1041), windows[1])
}

func TestRunRequiresLatestBlock(t *testing.T) {
	s := scanner.New(newTokenQuerier(), nil, scanner.Config{}, nil, nil)
	o := New(s, &memorySink{}, nil, nil, Config{}, nil, nil)
	_, err := o.Run(context.Background(), []model.Token{tokenAt(0, 1)})
	require.Error(t, err)
}

func TestTokenErrorUnwraps(t *testing.T) {
	inner := &scanner.ScanError{Token: common.Address{}, FromBlock: 9, Err: chain.ErrRequestTimeout}
	err := &TokenError{FromBlock: 9, Err: inner}
	require.ErrorIs(t, err, chain.ErrRequestTimeout)
	require.Contains(t, err.Error(), "block 9")
}

type brokenBlockQuerier struct {
	broken uint64
}

func (q brokenBlockQuerier) TransferLogs(_ context.Context, token common.Address, from, to uint64) ([]model.TransferEvent, error) {
	if from <= q.broken && q.broken <= to {
		return nil, &chain.DecodeError{BlockNumber: q.broken, Err: errors.New("unexpected topic count")}
	}
	events := make([]model.TransferEvent, 0, to-from+1)
	for block := from; block <= to; block++ {
		events = append(events, model.TransferEvent{Token: token, BlockNumber: block, Quantity: big.NewInt(1)})
	}
	return events, nil
}

func TestRunReportsSkippedBlocks(t *testing.T) {
	s := scanner.New(brokenBlockQuerier{broken: 105}, chain.NewClassifier(nil), scanner.Config{InitialChunkSize: 4, FloorRetries: 1}, nil, nil)
	sink := &memorySink{}
	o := New(s, sink, nil, fixedHead(110), Config{Workers: 1}, nil, nil)

	token := tokenAt(0, 100)
	report, err := o.Run(context.Background(), []model.Token{token})
	require.NoError(t, err)
	require.Equal(t, 1, report.Completed)
	require.Empty(t, report.Failures)
	require.Equal(t, []TokenGap{{Token: token.Address, Ranges: []scanner.BlockRange{{From: 105, To: 105}}}}, report.Gaps)
	require.Equal(t, uint64(1), report.Gaps[0].Blocks())

	blocks := make([]uint64, 0, len(sink.events))
	for _, event := range sink.events {
		blocks = append(blocks, event.BlockNumber)
	}
	require.Equal(t, []uint64{100, 101, 102, 103, 104, 106, 107, 108, 109, 110}, blocks)
}
