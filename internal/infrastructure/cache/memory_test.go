package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmin-service/obmin_service/internal/infrastructure/cache"
)

func TestMemoryListClient_PushPopOrder(t *testing.T) {
	client := cache.NewMemoryListClient()
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, "q", "first"))
	require.NoError(t, client.LPush(ctx, "q", "second"))
	require.NoError(t, client.LPush(ctx, "q", "third"))

	// RPop drains from the tail, so insertion order comes back out
	for _, want := range []string{"first", "second", "third"} {
		got, err := client.RPop(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := client.RPop(ctx, "q")
	assert.Equal(t, cache.ErrEmptyList, err)
}

func TestMemoryListClient_LRangeNegativeIndexes(t *testing.T) {
	client := cache.NewMemoryListClient()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, client.LPush(ctx, "q", v))
	}
	// Head-to-tail is d, c, b, a

	tail, err := client.LRange(ctx, "q", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, tail)

	all, err := client.LRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, all)

	empty, err := client.LRange(ctx, "missing", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryListClient_ExpireRemovesKey(t *testing.T) {
	client := cache.NewMemoryListClient()
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, "q", "v"))
	require.NoError(t, client.Expire(ctx, "q", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	n, err := client.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = client.RPop(ctx, "q")
	assert.Equal(t, cache.ErrEmptyList, err)
}

func TestMemoryListClient_ExpireOnMissingKeyIsNoOp(t *testing.T) {
	client := cache.NewMemoryListClient()
	ctx := context.Background()

	require.NoError(t, client.Expire(ctx, "missing", time.Millisecond))

	require.NoError(t, client.LPush(ctx, "missing", "v"))
	time.Sleep(5 * time.Millisecond)

	n, err := client.LLen(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expiry set before the key existed must not apply")
}

func TestMemoryListClient_KeysPatternMatch(t *testing.T) {
	client := cache.NewMemoryListClient()
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, "wallet_queue:BTC", "v"))
	require.NoError(t, client.LPush(ctx, "wallet_queue:ETH", "v"))
	require.NoError(t, client.LPush(ctx, "other:key", "v"))

	keys, err := client.Keys(ctx, "wallet_queue:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wallet_queue:BTC", "wallet_queue:ETH"}, keys)
}

func TestMemoryListClient_DelAndPing(t *testing.T) {
	client := cache.NewMemoryListClient()
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, "q", "v"))
	require.NoError(t, client.Del(ctx, "q"))

	n, err := client.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, client.Ping(ctx))
	assert.NoError(t, client.Close())
}
