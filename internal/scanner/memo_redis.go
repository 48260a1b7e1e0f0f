package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// RedisMemoConfig configures the Redis-backed memo.
type RedisMemoConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires idle entries; zero keeps them forever.
	TTL time.Duration
}

// RedisMemo stores one hash per token: {chunk_size, next_from, updated_at}.
type RedisMemo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisMemo(cfg RedisMemoConfig) (*RedisMemo, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "transferscope:memo"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisMemo{client: client, keyPrefix: prefix, ttl: cfg.TTL}, nil
}

// Ping checks the Redis connection.
func (m *RedisMemo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMemo) Close() error {
	return m.client.Close()
}

func (m *RedisMemo) key(token common.Address) string {
	return m.keyPrefix + ":" + memoKey(token)
}

func (m *RedisMemo) Load(ctx context.Context, token common.Address) (MemoEntry, bool, error) {
	fields, err := m.client.HGetAll(ctx, m.key(token)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return MemoEntry{}, false, nil
	}
	if err != nil {
		return MemoEntry{}, false, fmt.Errorf("load memo %s: %w", token.Hex(), err)
	}

	chunk, err := strconv.ParseUint(fields["chunk_size"], 10, 64)
	if err != nil {
		return MemoEntry{}, false, fmt.Errorf("parse chunk_size for %s: %w", token.Hex(), err)
	}
	next, err := strconv.ParseUint(fields["next_from"], 10, 64)
	if err != nil {
		return MemoEntry{}, false, fmt.Errorf("parse next_from for %s: %w", token.Hex(), err)
	}
	return MemoEntry{ChunkSize: chunk, NextFrom: next, UpdatedAt: fields["updated_at"]}, true, nil
}

func (m *RedisMemo) Save(ctx context.Context, token common.Address, entry MemoEntry) error {
	key := m.key(token)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key,
		"chunk_size", strconv.FormatUint(entry.ChunkSize, 10),
		"next_from", strconv.FormatUint(entry.NextFrom, 10),
		"updated_at", entry.UpdatedAt,
	)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save memo %s: %w", token.Hex(), err)
	}
	return nil
}

var (
	_ Memo = (*MemoryMemo)(nil)
	_ Memo = (*FileMemo)(nil)
	_ Memo = (*RedisMemo)(nil)
)
