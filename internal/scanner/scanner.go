package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"transferScope/internal/chain"
	"transferScope/internal/metrics"
	"transferScope/internal/model"
)

const (
	DefaultInitialChunkSize = 5000
	DefaultMinChunkSize     = 1
	DefaultFloorRetries     = 3
)

// TransferQuerier fetches decoded Transfer events for one token and block range.
type TransferQuerier interface {
	TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]model.TransferEvent, error)
}

// EmitFunc receives the events of one successful window in block order.
type EmitFunc func(events []model.TransferEvent) error

// Config tunes the adaptive window.
type Config struct {
	InitialChunkSize uint64
	MinChunkSize     uint64
	// MaxChunkSize caps growth; zero means unbounded.
	MaxChunkSize uint64
	// FloorRetries is how many consecutive transient failures at the minimum
	// chunk size are retried before that window is skipped.
	FloorRetries int
	// RetryBackoff is the pause before retrying a failed window.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.InitialChunkSize == 0 {
		c.InitialChunkSize = DefaultInitialChunkSize
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.MaxChunkSize > 0 && c.MaxChunkSize < c.MinChunkSize {
		c.MaxChunkSize = c.MinChunkSize
	}
	if c.FloorRetries < 0 {
		c.FloorRetries = 0
	}
	return c
}

// ScanError is a fatal failure of one token's scan.
type ScanError struct {
	Token     common.Address
	FromBlock uint64
	ToBlock   uint64
	Err       error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s [%d, %d]: %v", e.Token.Hex(), e.FromBlock, e.ToBlock, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scanner pages Transfer logs through an RPC endpoint with an adaptive window:
// the window doubles after each successful request and halves after a
// transient failure (oversized result, undecodable log, request timeout).
type Scanner struct {
	querier    TransferQuerier
	classifier *chain.Classifier
	cfg        Config
	metrics    *metrics.ScanMetrics
	logger     *zap.Logger
}

func New(querier TransferQuerier, classifier *chain.Classifier, cfg Config, m *metrics.ScanMetrics, logger *zap.Logger) *Scanner {
	if classifier == nil {
		classifier = chain.NewClassifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		querier:    querier,
		classifier: classifier,
		cfg:        cfg.withDefaults(),
		metrics:    m,
		logger:     logger,
	}
}

// NewCursor returns a fresh cursor for token over [fromBlock, latestBlock].
// A zero chunkSize uses the configured initial size.
func (s *Scanner) NewCursor(token common.Address, fromBlock, latestBlock, chunkSize uint64) *Cursor {
	if chunkSize == 0 {
		chunkSize = s.cfg.InitialChunkSize
	}
	return NewCursor(token, fromBlock, latestBlock, chunkSize).withBounds(s.cfg.MinChunkSize, s.cfg.MaxChunkSize)
}

// Scan consumes cursor until it is done, emitting each window's events in
// block order. Transient failures are absorbed by shrinking the window.
// A minimum-size window that keeps failing is narrowed to its first block,
// and only that block is skipped; skipped blocks are listed by
// cursor.Skipped. Any other failure returns a *ScanError and leaves the
// cursor at the failing window. A cursor is not reusable after Scan returns
// an error.
func (s *Scanner) Scan(ctx context.Context, cursor *Cursor, emit EmitFunc) error {
	token := cursor.Token.Hex()
	log := s.logger.With(zap.String("token", token))
	floorFailures := 0

	for !cursor.Done() {
		if err := ctx.Err(); err != nil {
			from, to := cursor.Window()
			return &ScanError{Token: cursor.Token, FromBlock: from, ToBlock: to, Err: err}
		}

		from, to := cursor.Window()
		s.metrics.ChunkRequested(token)
		s.metrics.SetChunkSize(token, cursor.ChunkSize())

		events, err := s.querier.TransferLogs(ctx, cursor.Token, from, to)
		if err == nil {
			if len(events) > 0 {
				if err := emit(events); err != nil {
					return &ScanError{Token: cursor.Token, FromBlock: from, ToBlock: to, Err: fmt.Errorf("emit: %w", err)}
				}
			}
			s.metrics.Emitted(token, len(events))
			s.metrics.Consumed(token, cursor.advance(true))
			floorFailures = 0
			log.Debug("window scanned",
				zap.Uint64("from", from),
				zap.Uint64("to", to),
				zap.Int("events", len(events)),
				zap.Uint64("chunk_size", cursor.ChunkSize()),
			)
			continue
		}

		if ctx.Err() != nil {
			return &ScanError{Token: cursor.Token, FromBlock: from, ToBlock: to, Err: ctx.Err()}
		}

		class := s.classifier.Classify(err)
		if !class.Transient() {
			return &ScanError{Token: cursor.Token, FromBlock: from, ToBlock: to, Err: err}
		}

		s.metrics.Shrunk(class.String())
		if cursor.shrink() {
			floorFailures++
			if floorFailures > s.cfg.FloorRetries {
				floorFailures = 0
				if cursor.narrow() {
					log.Debug("narrowing window to a single block",
						zap.Uint64("from", from),
						zap.Uint64("to", to),
						zap.String("reason", class.String()),
					)
					continue
				}
				gap, blocks := cursor.skip()
				log.Warn("skipping block after repeated failures at minimum chunk size",
					zap.Uint64("from", gap.From),
					zap.Uint64("to", gap.To),
					zap.Int("attempts", s.cfg.FloorRetries+1),
					zap.String("reason", class.String()),
					zap.Error(err),
				)
				s.metrics.Skipped(token)
				s.metrics.Consumed(token, blocks)
				continue
			}
		}

		log.Debug("shrinking window",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.String("reason", class.String()),
			zap.Uint64("chunk_size", cursor.ChunkSize()),
			zap.Error(err),
		)
		if err := s.pause(ctx); err != nil {
			return &ScanError{Token: cursor.Token, FromBlock: from, ToBlock: to, Err: err}
		}
	}
	return nil
}

func (s *Scanner) pause(ctx context.Context) error {
	if s.cfg.RetryBackoff <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
