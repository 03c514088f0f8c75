package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors shared across the service.
// Collectors are registered on the provided registry so tests can use an
// isolated one.
type Metrics struct {
	AllocationsTotal    *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec
	AvailableWallets    *prometheus.GaugeVec
	ProviderFetches     *prometheus.CounterVec
	ProviderLatency     *prometheus.HistogramVec
	RateCacheHits       *prometheus.CounterVec
	FallbackRatesServed *prometheus.CounterVec
}

// New registers and returns the service metrics
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AllocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_pool_allocations_total",
			Help: "Wallet allocation attempts by currency and outcome.",
		}, []string{"currency", "outcome"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_pool_queue_depth",
			Help: "Current wait-queue depth per currency.",
		}, []string{"currency"}),
		AvailableWallets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_pool_available_wallets",
			Help: "Available wallets per currency as of the last poll.",
		}, []string{"currency"}),
		ProviderFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_provider_fetches_total",
			Help: "Rate provider fetch attempts by provider and result.",
		}, []string{"provider", "result"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricing_provider_latency_seconds",
			Help:    "Rate provider fetch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		RateCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_cache_reads_total",
			Help: "Rate cache reads by currency and state (fresh, stale, miss).",
		}, []string{"currency", "state"}),
		FallbackRatesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_fallback_rates_total",
			Help: "Static fallback rates served after total provider exhaustion.",
		}, []string{"currency"}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
