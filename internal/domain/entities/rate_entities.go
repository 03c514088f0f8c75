package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSource identifies where an exchange rate came from
type RateSource string

const (
	RateSourceAPI      RateSource = "api"
	RateSourceCache    RateSource = "cache"
	RateSourceFallback RateSource = "fallback"
	RateSourceMock     RateSource = "mock"
)

// CachedRate is a process-local cache entry for one currency's market rate.
// It is overwritten on every successful refresh and evicted on read once it
// ages past the pricing service's hard ceiling.
type CachedRate struct {
	Currency  Currency        `json:"currency"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
}

// Age returns how old the cached rate is
func (r *CachedRate) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// HybridExchangeRate is the client-facing rate answer. It is always usable:
// even under total provider outage the pricing service fills it from the
// static fallback table and tags the source accordingly.
type HybridExchangeRate struct {
	Currency      Currency        `json:"currency"`
	USDRate       decimal.Decimal `json:"usd_rate"`
	UAHRate       decimal.Decimal `json:"uah_rate"`
	Commission    decimal.Decimal `json:"commission"`
	Spread        decimal.Decimal `json:"spread"`
	Source        RateSource      `json:"source"`
	LastUpdated   time.Time       `json:"last_updated"`
	LastAPIUpdate time.Time       `json:"last_api_update"`
}

// RateQuote is a single successful provider response before the business
// transform is applied.
type RateQuote struct {
	Currency  Currency
	UAHRate   decimal.Decimal
	USDRate   decimal.Decimal
	Provider  string
	FetchedAt time.Time
}
