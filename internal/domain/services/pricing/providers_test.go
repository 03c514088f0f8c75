package pricing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/internal/domain/services/pricing"
)

func TestBinanceProvider_FetchRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUAH", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUAH","price":"1712345.50"}`))
	}))
	defer server.Close()

	provider := pricing.NewBinanceProvider(server.URL, time.Second, zap.NewNop())
	quote, err := provider.FetchRate(context.Background(), entities.CurrencyBTC)

	require.NoError(t, err)
	assert.Equal(t, entities.CurrencyBTC, quote.Currency)
	assert.Equal(t, "binance", quote.Provider)
	assert.Equal(t, "1712345.5", quote.UAHRate.String())
	assert.False(t, quote.FetchedAt.IsZero())
}

func TestBinanceProvider_RejectsUnparsablePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUAH","price":"not-a-number"}`))
	}))
	defer server.Close()

	provider := pricing.NewBinanceProvider(server.URL, time.Second, zap.NewNop())
	_, err := provider.FetchRate(context.Background(), entities.CurrencyBTC)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparsable price")
}

func TestBinanceProvider_RejectsNonPositivePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUAH","price":"0"}`))
	}))
	defer server.Close()

	provider := pricing.NewBinanceProvider(server.URL, time.Second, zap.NewNop())
	_, err := provider.FetchRate(context.Background(), entities.CurrencyBTC)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rate")
}

func TestBinanceProvider_ErrorOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := pricing.NewBinanceProvider(server.URL, time.Second, zap.NewNop())
	_, err := provider.FetchRate(context.Background(), entities.CurrencyBTC)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}

func TestCoinGeckoProvider_FetchRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd,uah", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"ethereum":{"usd":2514.33,"uah":103875.12}}`))
	}))
	defer server.Close()

	provider := pricing.NewCoinGeckoProvider(server.URL, time.Second, zap.NewNop())
	quote, err := provider.FetchRate(context.Background(), entities.CurrencyETH)

	require.NoError(t, err)
	assert.Equal(t, "coingecko", quote.Provider)
	assert.Equal(t, "103875.12", quote.UAHRate.String())
	assert.Equal(t, "2514.33", quote.USDRate.String())
}

func TestCoinGeckoProvider_MissingUSDStillQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"litecoin":{"uah":3150.70}}`))
	}))
	defer server.Close()

	provider := pricing.NewCoinGeckoProvider(server.URL, time.Second, zap.NewNop())
	quote, err := provider.FetchRate(context.Background(), entities.CurrencyLTC)

	require.NoError(t, err)
	assert.Equal(t, "3150.7", quote.UAHRate.String())
	assert.True(t, quote.USDRate.IsZero())
}

func TestCoinGeckoProvider_MissingCoinIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := pricing.NewCoinGeckoProvider(server.URL, time.Second, zap.NewNop())
	_, err := provider.FetchRate(context.Background(), entities.CurrencyBTC)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing coin")
}
