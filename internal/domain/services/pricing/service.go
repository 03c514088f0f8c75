package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/pkg/logger"
	"github.com/obmin-service/obmin_service/pkg/metrics"
)

// CurrencyPricing is the per-currency business configuration. Margin and
// buffer are configured values, never computed.
type CurrencyPricing struct {
	Margin            decimal.Decimal
	CompetitiveBuffer decimal.Decimal
	FallbackUAH       decimal.Decimal
	FallbackUSD       decimal.Decimal
}

// Options tunes the cache windows and fallback behavior
type Options struct {
	// FreshnessWindow is how long a cache entry is served without triggering
	// a background refresh
	FreshnessWindow time.Duration
	// HardCeiling is the maximum cache entry age; older entries are evicted
	// on read and the read fetches synchronously
	HardCeiling time.Duration
	// FallbackMarkup multiplies the static fallback rates as a safety margin
	FallbackMarkup decimal.Decimal
	// RefreshTimeout bounds each background refresh
	RefreshTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.FreshnessWindow <= 0 {
		o.FreshnessWindow = 30 * time.Second
	}
	if o.HardCeiling <= 0 {
		o.HardCeiling = 5 * time.Minute
	}
	if o.FallbackMarkup.IsZero() {
		o.FallbackMarkup = decimal.NewFromFloat(1.05)
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 15 * time.Second
	}
}

// rateSlot holds one currency's cache entry and in-flight refresh guard.
// Each currency has its own lock so refreshing one never blocks reading
// another.
type rateSlot struct {
	mu         sync.Mutex
	cached     *entities.CachedRate
	cachedUSD  decimal.Decimal
	refreshing bool
}

// Service is the smart pricing cache. It serves cached rates immediately,
// refreshes stale entries in the background through the provider chain, and
// degrades to a static fallback table when every provider fails, so callers
// always get a usable rate.
type Service struct {
	providers  []Provider
	currencies map[entities.Currency]CurrencyPricing
	slots      map[entities.Currency]*rateSlot
	opts       Options
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewService creates the pricing service. Providers are tried strictly in
// the given order.
func NewService(
	providers []Provider,
	currencies map[entities.Currency]CurrencyPricing,
	opts Options,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	opts.applyDefaults()

	slots := make(map[entities.Currency]*rateSlot, len(currencies))
	for currency := range currencies {
		slots[currency] = &rateSlot{}
	}

	return &Service{
		providers:  providers,
		currencies: currencies,
		slots:      slots,
		opts:       opts,
		logger:     logger,
		metrics:    m,
	}
}

// GetSafeExchangeRate returns a client-ready rate for the currency. The only
// error case is an unsupported currency; provider outages degrade to the
// static fallback, never to an error.
func (s *Service) GetSafeExchangeRate(ctx context.Context, currency entities.Currency) (*entities.HybridExchangeRate, error) {
	cfg, ok := s.currencies[currency]
	if !ok {
		return nil, fmt.Errorf("unsupported currency %q", currency)
	}
	slot := s.slots[currency]

	now := time.Now()

	slot.mu.Lock()
	if slot.cached != nil {
		age := slot.cached.Age(now)
		if age >= s.opts.HardCeiling {
			// Expired: evict and fall through to a synchronous fetch
			slot.cached = nil
			slot.cachedUSD = decimal.Zero
		} else {
			cached := *slot.cached
			cachedUSD := slot.cachedUSD
			stale := age >= s.opts.FreshnessWindow
			if stale && !slot.refreshing {
				slot.refreshing = true
				go s.refresh(currency)
			}
			slot.mu.Unlock()

			state := "fresh"
			source := entities.RateSourceAPI
			if stale {
				state = "stale"
				source = entities.RateSourceCache
			}
			s.metrics.RateCacheHits.WithLabelValues(string(currency), state).Inc()

			return s.buildRate(currency, cfg, cached.Rate, cachedUSD, source, cached.FetchedAt), nil
		}
	}
	slot.mu.Unlock()

	s.metrics.RateCacheHits.WithLabelValues(string(currency), "miss").Inc()

	// Synchronous fetch through the provider chain
	quote := s.fetchChain(ctx, currency)
	if quote == nil {
		return s.fallbackRate(currency, cfg), nil
	}

	s.storeQuote(currency, quote)
	return s.buildRate(currency, cfg, quote.UAHRate, quote.USDRate, entities.RateSourceAPI, quote.FetchedAt), nil
}

// refresh runs one deduplicated background refresh for the currency. The
// in-flight guard in the slot makes a refresh request for an
// already-refreshing currency a no-op.
func (s *Service) refresh(currency entities.Currency) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RefreshTimeout)
	defer cancel()

	quote := s.fetchChain(ctx, currency)

	slot := s.slots[currency]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.refreshing = false
	if quote == nil {
		// Keep serving the stale entry until it hits the hard ceiling
		s.logger.Warn("Background rate refresh failed, keeping stale cache entry",
			"currency", currency)
		return
	}

	slot.cached = &entities.CachedRate{
		Currency:  currency,
		Rate:      quote.UAHRate,
		FetchedAt: quote.FetchedAt,
		Source:    quote.Provider,
	}
	slot.cachedUSD = quote.USDRate
	s.logger.Debug("Rate cache refreshed",
		"currency", currency,
		"provider", quote.Provider,
		"rate", quote.UAHRate.String())
}

// fetchChain tries each provider in priority order and returns the first
// valid quote. Provider failures are logged and swallowed; nil means total
// chain exhaustion.
func (s *Service) fetchChain(ctx context.Context, currency entities.Currency) *entities.RateQuote {
	for _, provider := range s.providers {
		start := time.Now()
		quote, err := provider.FetchRate(ctx, currency)
		s.metrics.ProviderLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			s.metrics.ProviderFetches.WithLabelValues(provider.Name(), "error").Inc()
			s.logger.Warn("Rate provider failed, advancing chain",
				"provider", provider.Name(),
				"currency", currency,
				"error", err)
			continue
		}

		s.metrics.ProviderFetches.WithLabelValues(provider.Name(), "success").Inc()
		return quote
	}
	return nil
}

func (s *Service) storeQuote(currency entities.Currency, quote *entities.RateQuote) {
	slot := s.slots[currency]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.cached = &entities.CachedRate{
		Currency:  currency,
		Rate:      quote.UAHRate,
		FetchedAt: quote.FetchedAt,
		Source:    quote.Provider,
	}
	slot.cachedUSD = quote.USDRate
}

// buildRate applies the business transform to a raw market rate:
// clientRate = marketRate * (1 - margin + buffer), rounded to kopeck
// precision. Rounding is stable: transforming an already-rounded rate again
// yields the same value.
func (s *Service) buildRate(
	currency entities.Currency,
	cfg CurrencyPricing,
	marketUAH, marketUSD decimal.Decimal,
	source entities.RateSource,
	lastAPIUpdate time.Time,
) *entities.HybridExchangeRate {
	factor := decimal.NewFromInt(1).Sub(cfg.Margin).Add(cfg.CompetitiveBuffer)

	uah := marketUAH.Mul(factor).Round(2)
	usd := cfg.FallbackUSD.Mul(factor).Round(2)
	if marketUSD.IsPositive() {
		usd = marketUSD.Mul(factor).Round(2)
	}

	return &entities.HybridExchangeRate{
		Currency:      currency,
		USDRate:       usd,
		UAHRate:       uah,
		Commission:    cfg.Margin,
		Spread:        cfg.CompetitiveBuffer,
		Source:        source,
		LastUpdated:   time.Now(),
		LastAPIUpdate: lastAPIUpdate,
	}
}

// fallbackRate serves the static per-currency rate with the safety markup
// applied. The synthetic epoch LastAPIUpdate signals total staleness to
// monitoring.
func (s *Service) fallbackRate(currency entities.Currency, cfg CurrencyPricing) *entities.HybridExchangeRate {
	s.metrics.FallbackRatesServed.WithLabelValues(string(currency)).Inc()
	s.logger.Warn("All rate providers exhausted, serving static fallback",
		"currency", currency)

	return &entities.HybridExchangeRate{
		Currency:      currency,
		USDRate:       cfg.FallbackUSD.Mul(s.opts.FallbackMarkup).Round(2),
		UAHRate:       cfg.FallbackUAH.Mul(s.opts.FallbackMarkup).Round(2),
		Commission:    cfg.Margin,
		Spread:        cfg.CompetitiveBuffer,
		Source:        entities.RateSourceFallback,
		LastUpdated:   time.Now(),
		LastAPIUpdate: time.Unix(0, 0),
	}
}
