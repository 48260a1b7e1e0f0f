package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transferScope/internal/chain"
	"transferScope/internal/metrics"
	"transferScope/internal/model"
	"transferScope/internal/scanner"
	"transferScope/internal/storage"
)

const defaultWorkers = 4

// Config controls a scan run.
type Config struct {
	// Workers bounds the number of tokens scanned in parallel.
	Workers int
	// LatestBlock is the inclusive end of every token's range. Zero reads the
	// chain head once when the run starts.
	LatestBlock uint64
	// Resume restarts each token at the memo's next_from instead of its creation block.
	Resume bool
}

// TokenError is a fatal failure of one token's scan.
type TokenError struct {
	Token     common.Address
	FromBlock uint64
	Err       error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s failed at block %d: %v", e.Token.Hex(), e.FromBlock, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// TokenGap lists the blocks of one token that were skipped after repeated
// transient failures. Their transfers are missing from the output.
type TokenGap struct {
	Token  common.Address
	Ranges []scanner.BlockRange
}

// Blocks is the number of blocks covered by the gap ranges.
func (g TokenGap) Blocks() uint64 {
	var n uint64
	for _, r := range g.Ranges {
		n += r.To - r.From + 1
	}
	return n
}

// Report summarizes a run.
type Report struct {
	LatestBlock uint64
	Tokens      int
	Completed   int
	Events      int64
	Failures    []*TokenError
	Gaps        []TokenGap
	Duration    time.Duration
}

// Orchestrator fans tokens out to independent scans and serializes their output.
type Orchestrator struct {
	scanner *scanner.Scanner
	sink    storage.TransferSink
	memo    scanner.Memo
	head    chain.HeadReader
	cfg     Config
	metrics *metrics.ScanMetrics
	logger  *zap.Logger
}

func New(s *scanner.Scanner, sink storage.TransferSink, memo scanner.Memo, head chain.HeadReader, cfg Config, m *metrics.ScanMetrics, logger *zap.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if memo == nil {
		memo = scanner.NewMemoryMemo()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		scanner: s,
		sink:    &serializedSink{next: sink},
		memo:    memo,
		head:    head,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Run scans every token to the latest block. A failing token never cancels
// its siblings; its error is recorded in the report. The returned error is
// non-nil only when the run could not start or ctx was cancelled.
func (o *Orchestrator) Run(ctx context.Context, tokens []model.Token) (Report, error) {
	start := time.Now()
	report := Report{Tokens: len(tokens)}

	latest := o.cfg.LatestBlock
	if latest == 0 {
		if o.head == nil {
			return report, fmt.Errorf("latest block is not set and no head reader is configured")
		}
		head, err := o.head.LatestBlockNumber(ctx)
		if err != nil {
			return report, fmt.Errorf("latest block: %w", err)
		}
		latest = head
	}
	report.LatestBlock = latest

	o.logger.Info("scan started",
		zap.Int("tokens", len(tokens)),
		zap.Int("workers", o.cfg.Workers),
		zap.Uint64("latest_block", latest),
		zap.Bool("resume", o.cfg.Resume),
	)

	var (
		mu     sync.Mutex
		events atomic.Int64
	)
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)

	for _, token := range tokens {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, skipped, err := o.scanToken(ctx, token, latest)
			events.Add(n)

			mu.Lock()
			defer mu.Unlock()
			if len(skipped) > 0 {
				report.Gaps = append(report.Gaps, TokenGap{Token: token.Address, Ranges: skipped})
			}
			if err != nil {
				report.Failures = append(report.Failures, err)
				return nil
			}
			report.Completed++
			return nil
		})
	}
	_ = g.Wait()

	report.Events = events.Load()
	report.Duration = time.Since(start)
	o.logger.Info("scan finished",
		zap.Int("tokens", report.Tokens),
		zap.Int("completed", report.Completed),
		zap.Int("failed", len(report.Failures)),
		zap.Int("tokens_with_gaps", len(report.Gaps)),
		zap.Int64("events", report.Events),
		zap.Duration("duration", report.Duration),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) scanToken(ctx context.Context, token model.Token, latest uint64) (int64, []scanner.BlockRange, *TokenError) {
	log := o.logger.With(zap.String("token", token.Address.Hex()))
	o.metrics.TaskStarted()

	from := token.CreationBlock
	var chunk uint64
	entry, ok, err := o.memo.Load(ctx, token.Address)
	if err != nil {
		log.Warn("memo load failed", zap.Error(err))
	} else if ok {
		chunk = entry.ChunkSize
		if o.cfg.Resume && entry.NextFrom > from {
			from = entry.NextFrom
		}
	}

	cursor := o.scanner.NewCursor(token.Address, from, latest, chunk)
	log.Info("token scan started",
		zap.Uint64("from", from),
		zap.Uint64("to", latest),
		zap.Uint64("chunk_size", cursor.ChunkSize()),
	)

	var emitted int64
	scanErr := o.scanner.Scan(ctx, cursor, func(events []model.TransferEvent) error {
		if err := o.sink.PutTransferBatch(events); err != nil {
			return err
		}
		emitted += int64(len(events))
		return nil
	})

	if err := o.memo.Save(ctx, token.Address, scanner.EntryFor(cursor)); err != nil {
		log.Warn("memo save failed", zap.Error(err))
	}

	if scanErr != nil {
		o.metrics.TaskFinished(true)
		failedAt := cursor.FromBlock()
		var se *scanner.ScanError
		if errors.As(scanErr, &se) {
			failedAt = se.FromBlock
		}
		log.Error("token scan failed",
			zap.Uint64("from", failedAt),
			zap.Uint64("blocks_consumed", cursor.Consumed()),
			zap.Error(scanErr),
		)
		return emitted, cursor.Skipped(), &TokenError{Token: token.Address, FromBlock: failedAt, Err: scanErr}
	}

	o.metrics.TaskFinished(false)
	skipped := cursor.Skipped()
	log.Info("token scan finished",
		zap.Int64("events", emitted),
		zap.Uint64("blocks_consumed", cursor.Consumed()),
		zap.Uint64("chunk_size", cursor.ChunkSize()),
		zap.Int("skipped_ranges", len(skipped)),
	)
	return emitted, skipped, nil
}

// serializedSink makes every batch append mutually exclusive regardless of
// the underlying sink.
type serializedSink struct {
	mu   sync.Mutex
	next storage.TransferSink
}

func (s *serializedSink) PutTransferBatch(events []model.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.PutTransferBatch(events)
}
