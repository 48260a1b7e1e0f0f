package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transferScope/internal/chain"
	"transferScope/internal/erc20"
	"transferScope/internal/model"
	"transferScope/internal/retry"
	"transferScope/internal/storage"
)

// ChainReader is the chain access discovery needs.
type ChainReader interface {
	chain.ContractStateReader
	chain.HeadReader
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// RunConfig holds runtime settings for token discovery.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Workers           int
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner walks a block range and records every ERC20 contract created in it.
type Runner struct {
	cfg        RunConfig
	chain      ChainReader
	sink       storage.TokenSink
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainReader ChainReader, sink storage.TokenSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainReader,
		sink:       sink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the discovery loop batch by batch. Tokens of a batch are
// written in block order before the checkpoint moves past it.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain reader is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("token sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	var found uint64
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		found = cp.TokensFound
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}

	if from > to {
		r.logger.Info("nothing to discover", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	batches, err := planBatches(from, to, r.cfg.BatchSize, r.cfg.Workers)
	if err != nil {
		return err
	}

	for _, work := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		tokens, err := r.processBatch(ctx, work)
		if err != nil {
			return fmt.Errorf("blocks [%d, %d]: %w", work.From, work.To, err)
		}
		if len(tokens) > 0 {
			if err := r.sink.PutTokens(tokens); err != nil {
				return fmt.Errorf("store tokens: %w", err)
			}
		}
		found += uint64(len(tokens))

		if err := r.checkpoint.Save(Checkpoint{LastProcessedBlock: work.To, TargetBlock: to, TokensFound: found}); err != nil {
			return err
		}
		r.logger.Info("batch complete",
			zap.Int("tokens", len(tokens)),
			zap.Uint64("from", work.From),
			zap.Uint64("to", work.To),
			zap.Uint64("blocks", work.blocks()),
		)
	}

	r.logger.Info("discovery finished", zap.Uint64("tokens_total", found), zap.Uint64("to", to))
	return nil
}

func (r *Runner) processBatch(ctx context.Context, work batch) ([]model.Token, error) {
	var (
		mu     sync.Mutex
		tokens []model.Token
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for number := work.From; number <= work.To; number++ {
		number := number
		g.Go(func() error {
			found, err := r.processBlock(gctx, number)
			if err != nil {
				return fmt.Errorf("block %d: %w", number, err)
			}
			mu.Lock()
			tokens = append(tokens, found...)
			mu.Unlock()
			return nil
		})
		if number == work.To {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].CreationBlock != tokens[j].CreationBlock {
			return tokens[i].CreationBlock < tokens[j].CreationBlock
		}
		return tokens[i].Address.Hex() < tokens[j].Address.Hex()
	})
	return tokens, nil
}

func (r *Runner) processBlock(ctx context.Context, number uint64) ([]model.Token, error) {
	block, err := retry.Value(ctx, r.retryConfig(), nil, r.onRetry("block", number), func(ctx context.Context) (*types.Block, error) {
		return r.chain.BlockByNumber(ctx, number)
	})
	if err != nil {
		return nil, err
	}

	var tokens []model.Token
	for _, tx := range block.Transactions() {
		if tx.To() != nil {
			continue
		}
		receipt, err := retry.Value(ctx, r.retryConfig(), nil, r.onRetry("receipt", number), func(ctx context.Context) (*types.Receipt, error) {
			return r.chain.TransactionReceipt(ctx, tx.Hash())
		})
		if err != nil {
			return nil, fmt.Errorf("receipt %s: %w", tx.Hash().Hex(), err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful || receipt.ContractAddress == (common.Address{}) {
			continue
		}

		contract := receipt.ContractAddress
		if !erc20.IsERC20(ctx, r.chain, contract, number) {
			continue
		}
		meta, err := erc20.FetchTokenMeta(ctx, r.chain, contract, number, r.logger)
		if err != nil {
			r.logger.Warn("erc20 metadata unreadable", zap.String("token", contract.Hex()), zap.Uint64("block", number), zap.Error(err))
		}

		token := tokenFromMeta(meta, contract)
		token.CreationBlock = number
		token.CreationBlockHash = block.Hash()
		token.CreationTimestamp = block.Time()
		tokens = append(tokens, token)
		r.logger.Debug("erc20 discovered", zap.String("token", contract.Hex()), zap.String("symbol", token.Symbol), zap.Uint64("block", number))
	}
	return tokens, nil
}

func (r *Runner) retryConfig() retry.Config {
	return retry.Config{MaxRetries: r.cfg.MaxRetries, BaseDelay: r.cfg.RetryBackoff}
}

func (r *Runner) onRetry(what string, number uint64) retry.OnRetryFunc {
	return func(attempt int, err error, delay time.Duration) {
		r.logger.Warn(what+" fetch failed", zap.Uint64("block_number", number), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}
}
