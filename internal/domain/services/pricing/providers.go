package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
)

const clientIdentifier = "obmin-service/1.0"

// Provider is one remote pricing source in the fallback chain. A provider
// error of any kind (timeout, bad status, unparsable or non-positive rate)
// simply advances the chain; it never surfaces to the rate caller.
type Provider interface {
	Name() string
	FetchRate(ctx context.Context, currency entities.Currency) (*entities.RateQuote, error)
}

// validRate rejects NaN, infinite, and non-positive values. An invalid rate
// is treated identically to a network failure.
func validRate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func newProviderBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 4
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Pricing provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func doJSONRequest(ctx context.Context, client *http.Client, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", clientIdentifier)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response body: %w", err)
	}
	return nil
}

// BinanceProvider fetches spot ticker prices from the primary exchange API
type BinanceProvider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBinanceProvider creates the primary ticker provider
func NewBinanceProvider(baseURL string, timeout time.Duration, logger *zap.Logger) *BinanceProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BinanceProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: newProviderBreaker("binance", logger),
		logger:  logger,
	}
}

// Name identifies the provider
func (p *BinanceProvider) Name() string {
	return "binance"
}

type binanceTickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchRate fetches the <CUR>UAH spot price
func (p *BinanceProvider) FetchRate(ctx context.Context, currency entities.Currency) (*entities.RateQuote, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%sUAH", p.baseURL, string(currency))

	result, err := p.breaker.Execute(func() (interface{}, error) {
		var ticker binanceTickerResponse
		if err := doJSONRequest(ctx, p.client, url, &ticker); err != nil {
			return nil, err
		}
		return &ticker, nil
	})
	if err != nil {
		return nil, fmt.Errorf("binance fetch failed: %w", err)
	}

	ticker := result.(*binanceTickerResponse)
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("binance returned unparsable price %q: %w", ticker.Price, err)
	}
	if !validRate(price) {
		return nil, fmt.Errorf("binance returned invalid rate %v for %s", price, currency)
	}

	return &entities.RateQuote{
		Currency:  currency,
		UAHRate:   decimal.NewFromFloat(price),
		Provider:  p.Name(),
		FetchedAt: time.Now(),
	}, nil
}

// CoinGeckoProvider fetches simple prices from the secondary aggregator API
type CoinGeckoProvider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewCoinGeckoProvider creates the secondary aggregator provider
func NewCoinGeckoProvider(baseURL string, timeout time.Duration, logger *zap.Logger) *CoinGeckoProvider {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &CoinGeckoProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: newProviderBreaker("coingecko", logger),
		logger:  logger,
	}
}

// Name identifies the provider
func (p *CoinGeckoProvider) Name() string {
	return "coingecko"
}

// FetchRate fetches usd and uah prices for the currency's coin id
func (p *CoinGeckoProvider) FetchRate(ctx context.Context, currency entities.Currency) (*entities.RateQuote, error) {
	coinID := currency.CoinID()
	if coinID == "" {
		return nil, fmt.Errorf("no coin id mapping for %s", currency)
	}

	url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd,uah", p.baseURL, coinID)

	result, err := p.breaker.Execute(func() (interface{}, error) {
		var payload map[string]map[string]float64
		if err := doJSONRequest(ctx, p.client, url, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch failed: %w", err)
	}

	payload := result.(map[string]map[string]float64)
	prices, ok := payload[coinID]
	if !ok {
		return nil, fmt.Errorf("coingecko response missing coin %q", coinID)
	}

	uah := prices["uah"]
	if !validRate(uah) {
		return nil, fmt.Errorf("coingecko returned invalid uah rate %v for %s", uah, currency)
	}

	quote := &entities.RateQuote{
		Currency:  currency,
		UAHRate:   decimal.NewFromFloat(uah),
		Provider:  p.Name(),
		FetchedAt: time.Now(),
	}
	if usd := prices["usd"]; validRate(usd) {
		quote.USDRate = decimal.NewFromFloat(usd)
	}
	return quote, nil
}
