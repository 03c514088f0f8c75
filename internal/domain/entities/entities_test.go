package entities_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		raw   string
		want  entities.Currency
		valid bool
	}{
		{"btc", entities.CurrencyBTC, true},
		{"  ETH ", entities.CurrencyETH, true},
		{"usdt", entities.CurrencyUSDT, true},
		{"LTC", entities.CurrencyLTC, true},
		{"doge", entities.Currency("DOGE"), false},
		{"", entities.Currency(""), false},
	}

	for _, tt := range tests {
		got, ok := entities.ParseCurrency(tt.raw)
		assert.Equal(t, tt.valid, ok, "raw=%q", tt.raw)
		if tt.valid {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestCurrencyCoinID(t *testing.T) {
	assert.Equal(t, "bitcoin", entities.CurrencyBTC.CoinID())
	assert.Equal(t, "ethereum", entities.CurrencyETH.CoinID())
	assert.Equal(t, "tether", entities.CurrencyUSDT.CoinID())
	assert.Equal(t, "litecoin", entities.CurrencyLTC.CoinID())
	assert.Empty(t, entities.Currency("DOGE").CoinID())
}

func TestQueuePriorityBands(t *testing.T) {
	for _, p := range []entities.QueuePriority{
		entities.QueuePriorityLow,
		entities.QueuePriorityNormal,
		entities.QueuePriorityHigh,
		entities.QueuePriorityUrgent,
	} {
		assert.True(t, p.IsValid())
		assert.Equal(t, p, entities.PriorityFromBand(p.Band()), "band round trip for %s", p)
	}

	assert.False(t, entities.QueuePriority("extreme").IsValid())
	assert.Equal(t, 1, entities.QueuePriority("extreme").Band(), "unknown priority falls back to the normal band")
	assert.Equal(t, entities.QueuePriorityNormal, entities.PriorityFromBand(42))
}

func TestQueueEntryValidate(t *testing.T) {
	entry := &entities.QueueEntry{
		OrderID:       "order-1",
		Currency:      entities.CurrencyBTC,
		CorrelationID: "corr-1",
	}
	require.NoError(t, entry.Validate())

	missing := *entry
	missing.OrderID = ""
	assert.Error(t, missing.Validate())

	badCurrency := *entry
	badCurrency.Currency = entities.Currency("XRP")
	assert.Error(t, badCurrency.Validate())

	noCorrelation := *entry
	noCorrelation.CorrelationID = ""
	assert.Error(t, noCorrelation.Validate())
}

func TestQueueEntryWaitTime(t *testing.T) {
	added := time.Now().Add(-90 * time.Second)
	entry := &entities.QueueEntry{AddedAt: added}

	wait := entry.WaitTime(added.Add(90 * time.Second))
	assert.Equal(t, 90*time.Second, wait)
}

func TestCachedRateAge(t *testing.T) {
	fetched := time.Now().Add(-time.Minute)
	rate := &entities.CachedRate{
		Currency:  entities.CurrencyBTC,
		Rate:      decimal.NewFromInt(100),
		FetchedAt: fetched,
	}

	assert.Equal(t, time.Minute, rate.Age(fetched.Add(time.Minute)))
}

func TestFailedAllocation(t *testing.T) {
	result := entities.FailedAllocation("pool empty")

	assert.False(t, result.Success)
	assert.Equal(t, "pool empty", result.Error)
	assert.Empty(t, result.Address)
}

func TestNewAllocationKey(t *testing.T) {
	a := entities.NewAllocationKey()
	b := entities.NewAllocationKey()

	assert.True(t, strings.HasPrefix(a, "alloc-"))
	assert.NotEqual(t, a, b)
}
