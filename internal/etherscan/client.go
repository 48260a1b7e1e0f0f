package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"transferScope/internal/retry"
)

// ErrNotFound is returned when the explorer has no record for a contract.
var ErrNotFound = errors.New("not found")

// Config holds explorer client settings.
type Config struct {
	APIKey          string
	BaseURL         string
	ChainID         int64
	Timeout         time.Duration
	MaxRetries      int
	BaseDelay       time.Duration
	RateLimitPerSec float64
	HTTPClient      *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if c.ChainID == 0 {
		c.ChainID = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	} else if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = 2
	}
	return c
}

// Client is a minimal block-explorer REST client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("explorer api key is required")
	}
	cfg = cfg.withDefaults()
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1),
		logger:     logger.With(zap.String("component", "etherscan")),
	}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type creationRecord struct {
	ContractAddress string `json:"contractAddress"`
	ContractCreator string `json:"contractCreator"`
	TxHash          string `json:"txHash"`
}

type txRecord struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
}

// ContractCreationTx returns the hash of the transaction that deployed contract.
// It asks the contract creation endpoint first and falls back to the first
// contract-creating entry of the address's transaction list.
func (c *Client) ContractCreationTx(ctx context.Context, contract common.Address) (common.Hash, error) {
	hash, err := c.creationFromContractModule(ctx, contract)
	if err == nil {
		return hash, nil
	}
	if ctx.Err() != nil {
		return common.Hash{}, err
	}
	c.logger.Debug("contract creation lookup failed, scanning txlist",
		zap.String("token", contract.Hex()),
		zap.Error(err),
	)
	return c.creationFromTxList(ctx, contract)
}

func (c *Client) creationFromContractModule(ctx context.Context, contract common.Address) (common.Hash, error) {
	params := url.Values{
		"module":            {"contract"},
		"action":            {"getcontractcreation"},
		"contractaddresses": {contract.Hex()},
	}
	var records []creationRecord
	if err := c.get(ctx, params, &records); err != nil {
		return common.Hash{}, fmt.Errorf("getcontractcreation %s: %w", contract.Hex(), err)
	}
	for _, record := range records {
		if strings.EqualFold(record.ContractAddress, contract.Hex()) && record.TxHash != "" {
			return common.HexToHash(record.TxHash), nil
		}
	}
	return common.Hash{}, fmt.Errorf("getcontractcreation %s: %w", contract.Hex(), ErrNotFound)
}

func (c *Client) creationFromTxList(ctx context.Context, contract common.Address) (common.Hash, error) {
	params := url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {contract.Hex()},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {"1"},
		"offset":     {"10"},
		"sort":       {"asc"},
	}
	var txs []txRecord
	if err := c.get(ctx, params, &txs); err != nil {
		return common.Hash{}, fmt.Errorf("txlist %s: %w", contract.Hex(), err)
	}
	for _, tx := range txs {
		if tx.To == "" {
			return common.HexToHash(tx.Hash), nil
		}
	}
	return common.Hash{}, fmt.Errorf("txlist %s: no creation transaction: %w", contract.Hex(), ErrNotFound)
}

// LatestBlock returns the explorer's view of the chain head.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	params := url.Values{
		"module": {"proxy"},
		"action": {"eth_blockNumber"},
	}
	var hexNumber string
	if err := c.get(ctx, params, &hexNumber); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return strconv.ParseUint(strings.TrimPrefix(hexNumber, "0x"), 16, 64)
}

func (c *Client) get(ctx context.Context, params url.Values, result any) error {
	params.Set("chainid", strconv.FormatInt(c.cfg.ChainID, 10))
	params.Set("apikey", c.cfg.APIKey)
	fullURL := c.cfg.BaseURL + "?" + params.Encode()

	isRetryable := func(err error) bool {
		var permanent *permanentError
		return !errors.As(err, &permanent)
	}
	onRetry := func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("explorer request failed, retrying",
			zap.String("action", params.Get("action")),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	err := retry.Do(ctx, retry.Config{MaxRetries: c.cfg.MaxRetries, BaseDelay: c.cfg.BaseDelay, MaxDelay: 10 * c.cfg.BaseDelay}, isRetryable, onRetry,
		func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return &permanentError{err: fmt.Errorf("rate limiter: %w", err)}
			}
			return c.getOnce(ctx, fullURL, result)
		})
	var permanent *permanentError
	if errors.As(err, &permanent) {
		return permanent.err
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, fullURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &permanentError{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (HTTP 429)")
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &permanentError{err: fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(body))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &permanentError{err: fmt.Errorf("parse response: %w", err)}
	}
	if env.Status == "0" {
		var text string
		_ = json.Unmarshal(env.Result, &text)
		lower := strings.ToLower(env.Message + " " + text)
		switch {
		case strings.Contains(lower, "rate limit"):
			return fmt.Errorf("rate limited: %s", text)
		case strings.Contains(lower, "no transactions found"), strings.Contains(lower, "no data found"), strings.Contains(lower, "no records found"):
			return &permanentError{err: ErrNotFound}
		default:
			return &permanentError{err: fmt.Errorf("api error: %s - %s", env.Message, text)}
		}
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return &permanentError{err: fmt.Errorf("parse result: %w", err)}
	}
	return nil
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}
