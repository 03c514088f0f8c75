package pool

import (
	"context"
	"fmt"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/pkg/logger"
	"github.com/obmin-service/obmin_service/pkg/metrics"
)

// Manager is the wallet pool facade. It owns one allocation strategy for its
// lifetime and adds nothing beyond logging, metrics, and threshold
// comparison; all allocation logic lives in the strategy.
type Manager struct {
	strategy   Strategy
	wallets    WalletStore
	queue      WaitQueue
	thresholds map[entities.Currency]int
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewManager creates a pool manager around the given strategy
func NewManager(
	strategy Strategy,
	wallets WalletStore,
	queue WaitQueue,
	thresholds map[entities.Currency]int,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		strategy:   strategy,
		wallets:    wallets,
		queue:      queue,
		thresholds: thresholds,
		logger:     logger,
		metrics:    m,
	}
}

// AllocateWallet assigns a deposit address for the currency. It never
// returns an error: strategy failures are captured in the result.
func (m *Manager) AllocateWallet(ctx context.Context, currency entities.Currency, tokenStandard *string) *entities.AllocationResult {
	if !currency.IsValid() {
		return entities.FailedAllocation(fmt.Sprintf("unsupported currency %q", currency))
	}

	m.logger.Debug("Allocating wallet",
		"currency", currency,
		"strategy", m.strategy.Name())

	result := m.strategy.Allocate(ctx, AllocationRequest{
		Currency:      currency,
		TokenStandard: tokenStandard,
	})

	outcome := "failed"
	switch {
	case result.Success && result.UsedOldestOccupiedWallet:
		outcome = "reused"
	case result.Success:
		outcome = "allocated"
	case result.QueuePosition > 0:
		outcome = "queued"
	}
	m.metrics.AllocationsTotal.WithLabelValues(string(currency), outcome).Inc()

	if result.Success {
		m.logger.Info("Wallet allocated",
			"currency", currency,
			"address", result.Address,
			"reused", result.UsedOldestOccupiedWallet)
	} else {
		m.logger.Info("Wallet allocation failed",
			"currency", currency,
			"queue_position", result.QueuePosition,
			"reason", result.Error)
	}

	return result
}

// AllocateWalletForOrder assigns a deposit address tagged with an existing
// order id.
func (m *Manager) AllocateWalletForOrder(ctx context.Context, currency entities.Currency, orderID, userID string, tokenStandard *string) *entities.AllocationResult {
	if !currency.IsValid() {
		return entities.FailedAllocation(fmt.Sprintf("unsupported currency %q", currency))
	}

	result := m.strategy.Allocate(ctx, AllocationRequest{
		Currency:      currency,
		TokenStandard: tokenStandard,
		OrderID:       orderID,
		UserID:        userID,
	})

	outcome := "failed"
	if result.Success {
		outcome = "allocated"
	} else if result.QueuePosition > 0 {
		outcome = "queued"
	}
	m.metrics.AllocationsTotal.WithLabelValues(string(currency), outcome).Inc()

	return result
}

// ReleaseWallet returns a deposit address to the pool. Releasing an
// already-available or unknown address succeeds with no-op semantics.
func (m *Manager) ReleaseWallet(ctx context.Context, address string) *entities.AllocationResult {
	m.logger.Debug("Releasing wallet", "address", address)

	result := m.strategy.Release(ctx, address)

	if result.Success {
		m.logger.Info("Wallet released", "address", address)
	} else {
		m.logger.Warn("Wallet release failed", "address", address, "reason", result.Error)
	}

	return result
}

// GetPoolStats derives a point-in-time pool view from the wallet and queue
// stores.
func (m *Manager) GetPoolStats(ctx context.Context, currency entities.Currency) (*entities.PoolStats, error) {
	if !currency.IsValid() {
		return nil, fmt.Errorf("unsupported currency %q", currency)
	}

	total, available, occupied, lastActivity, err := m.wallets.CountByCurrency(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool stats: %w", err)
	}

	queueSize := m.queue.Size(ctx, currency)

	m.metrics.AvailableWallets.WithLabelValues(string(currency)).Set(float64(available))
	m.metrics.QueueDepth.WithLabelValues(string(currency)).Set(float64(queueSize))

	return &entities.PoolStats{
		Currency:     currency,
		Total:        total,
		Available:    available,
		Occupied:     occupied,
		QueueSize:    queueSize,
		LastActivity: lastActivity,
	}, nil
}

// CheckThresholds compares each currency's available wallet count against
// its configured minimum. With no currencies given, every configured
// currency is checked.
func (m *Manager) CheckThresholds(ctx context.Context, currencies ...entities.Currency) ([]entities.ThresholdStatus, error) {
	if len(currencies) == 0 {
		for currency := range m.thresholds {
			currencies = append(currencies, currency)
		}
	}

	statuses := make([]entities.ThresholdStatus, 0, len(currencies))
	for _, currency := range currencies {
		threshold, ok := m.thresholds[currency]
		if !ok {
			continue
		}

		_, available, _, _, err := m.wallets.CountByCurrency(ctx, currency)
		if err != nil {
			return nil, fmt.Errorf("failed to check threshold for %s: %w", currency, err)
		}

		m.metrics.AvailableWallets.WithLabelValues(string(currency)).Set(float64(available))

		statuses = append(statuses, entities.ThresholdStatus{
			Currency:   currency,
			Available:  available,
			Threshold:  threshold,
			IsCritical: available < threshold,
		})
	}

	return statuses, nil
}

// StrategyName reports which allocation strategy the manager was built with
func (m *Manager) StrategyName() string {
	return m.strategy.Name()
}
