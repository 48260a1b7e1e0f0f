package scanner

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Runs against a real server when SCANNER_TEST_REDIS_ADDR is set.
func TestRedisMemoRoundTrip(t *testing.T) {
	addr := os.Getenv("SCANNER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCANNER_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	memo, err := NewRedisMemo(RedisMemoConfig{
		Addr:      addr,
		KeyPrefix: fmt.Sprintf("transferscope:test:%d", time.Now().UnixNano()),
		TTL:       time.Minute,
	})
	require.NoError(t, err)
	defer memo.Close()
	require.NoError(t, memo.Ping(ctx))

	_, ok, err := memo.Load(ctx, testToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, memo.Save(ctx, testToken, MemoEntry{ChunkSize: 1250, NextFrom: 18_000_001}))
	entry, ok, err := memo.Load(ctx, testToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1250), entry.ChunkSize)
	require.Equal(t, uint64(18_000_001), entry.NextFrom)

	ttl, err := memo.client.TTL(ctx, memo.key(testToken)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
