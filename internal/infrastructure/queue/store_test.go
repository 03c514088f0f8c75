package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/internal/infrastructure/cache"
	"github.com/obmin-service/obmin_service/internal/infrastructure/queue"
)

// failingListClient simulates an unreachable list store
type failingListClient struct{}

var errStoreDown = fmt.Errorf("list store unreachable")

func (failingListClient) LPush(context.Context, string, string) error { return errStoreDown }
func (failingListClient) RPop(context.Context, string) (string, error) {
	return "", errStoreDown
}
func (failingListClient) LRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, errStoreDown
}
func (failingListClient) LLen(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingListClient) Del(context.Context, string) error           { return errStoreDown }
func (failingListClient) Expire(context.Context, string, time.Duration) error {
	return errStoreDown
}
func (failingListClient) Keys(context.Context, string) ([]string, error) {
	return nil, errStoreDown
}
func (failingListClient) Ping(context.Context) error { return errStoreDown }
func (failingListClient) Close() error               { return nil }

func newMemoryStore(t *testing.T) (*queue.Store, cache.ListClient) {
	t.Helper()
	client := cache.NewMemoryListClient()
	store := queue.NewStore(client, queue.StoreConfig{}, zap.NewNop())
	return store, client
}

func makeItem(orderID string, currency entities.Currency, addedAt time.Time) *queue.Item {
	return &queue.Item{
		WalletAddress: orderID,
		AddedAt:       addedAt.UnixMilli(),
		Currency:      string(currency),
		CorrelationID: "corr-" + orderID,
		Priority:      string(entities.QueuePriorityNormal),
	}
}

func TestStore_FIFOOrder(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 3; i++ {
		item := makeItem(fmt.Sprintf("order-%d", i), entities.CurrencyBTC, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.AddToQueue(ctx, item))
	}

	for i := 1; i <= 3; i++ {
		item := store.NextFromQueue(ctx, entities.CurrencyBTC)
		require.NotNil(t, item)
		assert.Equal(t, fmt.Sprintf("order-%d", i), item.WalletAddress, "items must pop in insertion order")
	}

	assert.Nil(t, store.NextFromQueue(ctx, entities.CurrencyBTC))
}

func TestStore_QueuesAreIsolatedPerCurrency(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.AddToQueue(ctx, makeItem("btc-order", entities.CurrencyBTC, now)))
	require.NoError(t, store.AddToQueue(ctx, makeItem("eth-order", entities.CurrencyETH, now)))

	assert.Equal(t, 1, store.QueueSize(ctx, entities.CurrencyBTC))
	assert.Equal(t, 1, store.QueueSize(ctx, entities.CurrencyETH))

	item := store.NextFromQueue(ctx, entities.CurrencyETH)
	require.NotNil(t, item)
	assert.Equal(t, "eth-order", item.WalletAddress)
	assert.Equal(t, 1, store.QueueSize(ctx, entities.CurrencyBTC), "popping one currency must not touch another")
}

func TestStore_NextSkipsMalformedItems(t *testing.T) {
	client := cache.NewMemoryListClient()
	store := queue.NewStore(client, queue.StoreConfig{}, zap.NewNop())
	ctx := context.Background()

	// Oldest first: garbage, then a valid item pushed after it
	require.NoError(t, client.LPush(ctx, "wallet_queue:BTC", "{not json"))
	require.NoError(t, store.AddToQueue(ctx, makeItem("order-1", entities.CurrencyBTC, time.Now())))

	item := store.NextFromQueue(ctx, entities.CurrencyBTC)
	require.NotNil(t, item, "a malformed stored item must be skipped, not returned")
	assert.Equal(t, "order-1", item.WalletAddress)
}

func TestStore_PeekReturnsOldestFirstWithoutRemoving(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.AddToQueue(ctx, makeItem(fmt.Sprintf("order-%d", i), entities.CurrencyBTC, now)))
	}

	peeked := store.PeekQueue(ctx, entities.CurrencyBTC, 3)
	require.Len(t, peeked, 3)
	assert.Equal(t, "order-1", peeked[0].WalletAddress)
	assert.Equal(t, "order-2", peeked[1].WalletAddress)
	assert.Equal(t, "order-3", peeked[2].WalletAddress)

	assert.Equal(t, 5, store.QueueSize(ctx, entities.CurrencyBTC), "peek must not consume items")
}

func TestStore_QueueStatsFromBoundedSample(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.AddToQueue(ctx, makeItem("order-old", entities.CurrencyBTC, now.Add(-2*time.Minute))))
	require.NoError(t, store.AddToQueue(ctx, makeItem("order-new", entities.CurrencyBTC, now.Add(-30*time.Second))))

	stats := store.QueueStats(ctx, entities.CurrencyBTC)
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.SampleSize)
	assert.GreaterOrEqual(t, stats.OldestWait, 2*time.Minute)
	assert.Greater(t, stats.AverageWait, 30*time.Second)
	assert.Less(t, stats.AverageWait, 2*time.Minute)
}

func TestStore_ClearQueue(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddToQueue(ctx, makeItem("order-1", entities.CurrencyBTC, time.Now())))
	require.NoError(t, store.ClearQueue(ctx, entities.CurrencyBTC))

	assert.Equal(t, 0, store.QueueSize(ctx, entities.CurrencyBTC))
	assert.Nil(t, store.NextFromQueue(ctx, entities.CurrencyBTC))
}

func TestStore_AllQueueSizes(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddToQueue(ctx, makeItem("order-1", entities.CurrencyUSDT, time.Now())))

	sizes := store.AllQueueSizes(ctx)
	assert.Equal(t, 1, sizes[entities.CurrencyUSDT])
	assert.Equal(t, 0, sizes[entities.CurrencyBTC])
	assert.Len(t, sizes, len(entities.SupportedCurrencies()))
}

func TestStore_FailsOpenOnStoreOutage(t *testing.T) {
	store := queue.NewStore(failingListClient{}, queue.StoreConfig{}, zap.NewNop())
	ctx := context.Background()

	assert.Error(t, store.AddToQueue(ctx, makeItem("order-1", entities.CurrencyBTC, time.Now())))
	assert.Nil(t, store.NextFromQueue(ctx, entities.CurrencyBTC))
	assert.Equal(t, 0, store.QueueSize(ctx, entities.CurrencyBTC))
	assert.Nil(t, store.PeekQueue(ctx, entities.CurrencyBTC, 5))

	stats := store.QueueStats(ctx, entities.CurrencyBTC)
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.Size)

	assert.Error(t, store.CheckHealth(ctx))
}

func TestStore_TTLExpiryDrainsQueue(t *testing.T) {
	client := cache.NewMemoryListClient()
	store := queue.NewStore(client, queue.StoreConfig{TTL: time.Millisecond}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.AddToQueue(ctx, makeItem("order-1", entities.CurrencyBTC, time.Now())))
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 0, store.QueueSize(ctx, entities.CurrencyBTC))
	assert.Nil(t, store.NextFromQueue(ctx, entities.CurrencyBTC))
}

func TestItem_Validate(t *testing.T) {
	valid := makeItem("order-1", entities.CurrencyBTC, time.Now())
	assert.NoError(t, valid.Validate())

	missingAddress := makeItem("", entities.CurrencyBTC, time.Now())
	assert.Error(t, missingAddress.Validate())

	missingCurrency := makeItem("order-1", entities.Currency(""), time.Now())
	assert.Error(t, missingCurrency.Validate())

	badTimestamp := makeItem("order-1", entities.CurrencyBTC, time.Now())
	badTimestamp.AddedAt = 0
	assert.Error(t, badTimestamp.Validate())
}
