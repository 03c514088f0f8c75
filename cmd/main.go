package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/internal/domain/services/pool"
	"github.com/obmin-service/obmin_service/internal/domain/services/pricing"
	"github.com/obmin-service/obmin_service/internal/infrastructure/adapters"
	"github.com/obmin-service/obmin_service/internal/infrastructure/cache"
	"github.com/obmin-service/obmin_service/internal/infrastructure/config"
	"github.com/obmin-service/obmin_service/internal/infrastructure/database"
	"github.com/obmin-service/obmin_service/internal/infrastructure/queue"
	"github.com/obmin-service/obmin_service/internal/infrastructure/repositories"
	poolmonitor "github.com/obmin-service/obmin_service/internal/workers/pool_monitor"
	"github.com/obmin-service/obmin_service/pkg/graceful"
	"github.com/obmin-service/obmin_service/pkg/logger"
	"github.com/obmin-service/obmin_service/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		println("failed to load configuration:", err.Error())
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()
	zapLog := log.Zap()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	var listClient cache.ListClient
	switch cfg.Queue.Store {
	case "memory":
		listClient = cache.NewMemoryListClient()
		log.Info("Using in-memory queue store")
	default:
		listClient, err = cache.NewRedisListClient(&cfg.Redis, zapLog)
		if err != nil {
			log.Fatal("Failed to connect to queue store", "error", err)
		}
	}

	queueStore := queue.NewStore(listClient, queue.StoreConfig{
		KeyPrefix:  cfg.Queue.KeyPrefix,
		TTL:        time.Duration(cfg.Queue.TTLSeconds) * time.Second,
		SampleSize: cfg.Queue.StatsSampleSize,
	}, zapLog)

	walletRepo := repositories.NewWalletRepository(db, zapLog)
	queueRepo := repositories.NewQueueRepository(queueStore, zapLog)

	notifier := adapters.NewEmailNotifier(adapters.EmailNotifierConfig{
		APIKey:    cfg.Email.APIKey,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
		OpsEmail:  cfg.Email.OpsEmail,
	}, zapLog)

	m := metrics.New(prometheus.DefaultRegisterer)

	var strategy pool.Strategy
	switch cfg.Pool.Strategy {
	case "immediate":
		strategy = pool.NewImmediateStrategy(walletRepo, log)
	default:
		strategy = pool.NewQueueStrategy(walletRepo, queueRepo, notifier, log)
	}

	thresholds := make(map[entities.Currency]int, len(cfg.Pool.MinAvailable))
	for key, min := range cfg.Pool.MinAvailable {
		if currency, ok := entities.ParseCurrency(key); ok {
			thresholds[currency] = min
		}
	}

	poolManager := pool.NewManager(strategy, walletRepo, queueRepo, thresholds, log, m)
	log.Info("Wallet pool manager ready", "strategy", poolManager.StrategyName())

	providers := []pricing.Provider{
		pricing.NewBinanceProvider(cfg.Pricing.BinanceBaseURL, time.Duration(cfg.Pricing.BinanceTimeoutSeconds)*time.Second, zapLog),
		pricing.NewCoinGeckoProvider(cfg.Pricing.CoinGeckoBaseURL, time.Duration(cfg.Pricing.CoinGeckoTimeoutSeconds)*time.Second, zapLog),
	}

	pricingTable := make(map[entities.Currency]pricing.CurrencyPricing, len(cfg.Pricing.Currencies))
	for key, rc := range cfg.Pricing.Currencies {
		currency, ok := entities.ParseCurrency(key)
		if !ok {
			log.Warn("Skipping unsupported currency in pricing table", "currency", key)
			continue
		}
		pricingTable[currency] = pricing.CurrencyPricing{
			Margin:            decimal.NewFromFloat(rc.Margin),
			CompetitiveBuffer: decimal.NewFromFloat(rc.CompetitiveBuffer),
			FallbackUAH:       decimal.NewFromFloat(rc.FallbackRateUAH),
			FallbackUSD:       decimal.NewFromFloat(rc.FallbackRateUSD),
		}
	}

	pricingService := pricing.NewService(providers, pricingTable, pricing.Options{
		FreshnessWindow: time.Duration(cfg.Pricing.FreshnessWindowSeconds) * time.Second,
		HardCeiling:     time.Duration(cfg.Pricing.HardCeilingSeconds) * time.Second,
		FallbackMarkup:  decimal.NewFromFloat(cfg.Pricing.FallbackMarkup),
	}, log, m)

	monitor := poolmonitor.NewWorker(poolManager, notifier, cfg.Monitor.CronSpec, zapLog)
	if cfg.Monitor.Enabled {
		if err := monitor.Start(); err != nil {
			log.Fatal("Failed to start pool monitor", "error", err)
		}
	}

	server := newOpsServer(db, queueRepo, poolManager, pricingService, monitor)
	go func() {
		log.Info("Ops server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Ops server failed", "error", err)
		}
	}()

	sm := graceful.NewShutdownManager(server, db, log)
	if cfg.Monitor.Enabled {
		sm.RegisterStopper(monitor)
	}
	sm.RegisterCloser(listClient)
	sm.WaitForShutdown()
}

// newOpsServer exposes health, metrics, and read-only pool/rate views for
// operators. The order-facing API lives in a separate service.
func newOpsServer(
	db *sqlx.DB,
	queueRepo *repositories.QueueRepository,
	poolManager *pool.Manager,
	pricingService *pricing.Service,
	monitor *poolmonitor.Worker,
) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"database": "ok", "queue": "ok"}
		status := http.StatusOK
		if err := db.Ping(); err != nil {
			health["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := queueRepo.CheckHealth(r.Context()); err != nil {
			health["queue"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})

	mux.HandleFunc("/pool/stats", func(w http.ResponseWriter, r *http.Request) {
		currency, ok := entities.ParseCurrency(r.URL.Query().Get("currency"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported currency"})
			return
		}
		stats, err := poolManager.GetPoolStats(r.Context(), currency)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("/pool/thresholds", func(w http.ResponseWriter, r *http.Request) {
		statuses, err := poolManager.CheckThresholds(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, statuses)
	})

	mux.HandleFunc("/rates", func(w http.ResponseWriter, r *http.Request) {
		currency, ok := entities.ParseCurrency(r.URL.Query().Get("currency"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported currency"})
			return
		}
		rate, err := pricingService.GetSafeExchangeRate(r.Context(), currency)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, rate)
	})

	mux.HandleFunc("/monitor/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, monitor.Status())
	})

	addr := os.Getenv("OPS_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
