package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"transferScope/internal/model"
	"transferScope/internal/scanner"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS tokens (
	address         TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL DEFAULT '',
	decimals        SMALLINT NOT NULL DEFAULT 0,
	total_supply    NUMERIC,
	block_number    BIGINT NOT NULL,
	block_hash      TEXT NOT NULL DEFAULT '',
	block_timestamp BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scan_memo (
	token      TEXT PRIMARY KEY,
	chunk_size BIGINT NOT NULL,
	next_from  BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for tokens and scan memos.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

type tokenRow struct {
	Address        string
	Symbol         string
	Name           string
	Decimals       int16
	TotalSupply    *string
	BlockNumber    int64
	BlockHash      string
	BlockTimestamp int64
}

func (r tokenRow) token() (model.Token, error) {
	if !common.IsHexAddress(r.Address) {
		return model.Token{}, fmt.Errorf("invalid token address %q", r.Address)
	}
	if r.BlockNumber < 0 {
		return model.Token{}, fmt.Errorf("token %s: negative block number", r.Address)
	}
	if r.Decimals < 0 || r.Decimals > 255 {
		return model.Token{}, fmt.Errorf("token %s: decimals out of range: %d", r.Address, r.Decimals)
	}
	token := model.Token{
		Address:           common.HexToAddress(r.Address),
		Symbol:            r.Symbol,
		Name:              r.Name,
		Decimals:          uint8(r.Decimals),
		CreationBlock:     uint64(r.BlockNumber),
		CreationBlockHash: common.HexToHash(r.BlockHash),
		CreationTimestamp: uint64(r.BlockTimestamp),
	}
	if r.TotalSupply != nil && *r.TotalSupply != "" {
		supply, ok := new(big.Int).SetString(*r.TotalSupply, 10)
		if !ok {
			return model.Token{}, fmt.Errorf("token %s: invalid total supply %q", r.Address, *r.TotalSupply)
		}
		token.TotalSupply = supply
	}
	return token, nil
}

// LoadTokens returns tokens ordered by creation block. A zero limit loads all rows.
func (s *Store) LoadTokens(ctx context.Context, limit int) ([]model.Token, error) {
	query := `
		SELECT address, symbol, name, decimals, total_supply::text, block_number, block_hash, block_timestamp
		FROM tokens
		ORDER BY block_number, address
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var r tokenRow
		if err := rows.Scan(&r.Address, &r.Symbol, &r.Name, &r.Decimals, &r.TotalSupply, &r.BlockNumber, &r.BlockHash, &r.BlockTimestamp); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		token, err := r.token()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// UpsertTokens inserts or updates token rows.
func (s *Store) UpsertTokens(ctx context.Context, tokens []model.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, token := range tokens {
		var supply *string
		if token.TotalSupply != nil {
			v := token.TotalSupply.String()
			supply = &v
		}
		batch.Queue(`
			INSERT INTO tokens (
				address, symbol, name, decimals, total_supply, block_number, block_hash, block_timestamp, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, now(), now())
			ON CONFLICT (address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				decimals = EXCLUDED.decimals,
				total_supply = EXCLUDED.total_supply,
				block_number = LEAST(tokens.block_number, EXCLUDED.block_number),
				block_hash = EXCLUDED.block_hash,
				block_timestamp = EXCLUDED.block_timestamp,
				updated_at = now()
		`,
			strings.ToLower(token.Address.Hex()),
			token.Symbol,
			token.Name,
			int16(token.Decimals),
			supply,
			int64(token.CreationBlock),
			token.CreationBlockHash.Hex(),
			int64(token.CreationTimestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tokens {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// TokenSink adapts UpsertTokens to the storage.TokenSink interface.
func (s *Store) TokenSink(ctx context.Context) *TokenSink {
	return &TokenSink{ctx: ctx, store: s}
}

// TokenSink writes discovered tokens to Postgres.
type TokenSink struct {
	ctx   context.Context
	store *Store
}

func (t *TokenSink) PutTokens(tokens []model.Token) error {
	return t.store.UpsertTokens(t.ctx, tokens)
}

// Load returns the scan memo for a token.
func (s *Store) Load(ctx context.Context, token common.Address) (scanner.MemoEntry, bool, error) {
	var chunk, next int64
	var updated time.Time
	row := s.pool.QueryRow(ctx, `SELECT chunk_size, next_from, updated_at FROM scan_memo WHERE token=$1`, strings.ToLower(token.Hex()))
	if err := row.Scan(&chunk, &next, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scanner.MemoEntry{}, false, nil
		}
		return scanner.MemoEntry{}, false, err
	}
	return scanner.MemoEntry{
		ChunkSize: uint64(chunk),
		NextFrom:  uint64(next),
		UpdatedAt: updated.UTC().Format(time.RFC3339Nano),
	}, true, nil
}

// Save upserts the scan memo for a token.
func (s *Store) Save(ctx context.Context, token common.Address, entry scanner.MemoEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_memo (token, chunk_size, next_from, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (token) DO UPDATE
		SET chunk_size = EXCLUDED.chunk_size, next_from = EXCLUDED.next_from, updated_at = now()
	`, strings.ToLower(token.Hex()), int64(entry.ChunkSize), int64(entry.NextFrom))
	return err
}

var _ scanner.Memo = (*Store)(nil)
