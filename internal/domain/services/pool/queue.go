package pool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/pkg/logger"
)

// QueueStrategy allocates the oldest available wallet, falls back to reusing
// the most idle occupied wallet, and finally parks the order on a FIFO wait
// queue. Releases hand the freed wallet straight to the head of the queue.
type QueueStrategy struct {
	wallets  WalletStore
	queue    WaitQueue
	notifier Notifier
	logger   *logger.Logger
}

// NewQueueStrategy creates the queueing allocation strategy
func NewQueueStrategy(wallets WalletStore, queue WaitQueue, notifier Notifier, logger *logger.Logger) *QueueStrategy {
	return &QueueStrategy{
		wallets:  wallets,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
	}
}

// Name identifies the strategy
func (s *QueueStrategy) Name() string {
	return "queue"
}

// Allocate tries, in order: claim the oldest available wallet, reuse the
// oldest occupied wallet, enqueue a wait-list entry.
//
// The reuse branch returns an occupied wallet without changing its occupancy
// state. Two orders may temporarily share the same deposit address; this is
// an accepted liquidity trade-off that favors immediate order creation over
// strict address exclusivity.
func (s *QueueStrategy) Allocate(ctx context.Context, req AllocationRequest) *entities.AllocationResult {
	orderID := req.OrderID
	if orderID == "" {
		orderID = entities.NewAllocationKey()
	}

	// 1. Oldest available wallet, claimed atomically
	for attempt := 0; attempt < claimAttempts; attempt++ {
		wallet, err := s.wallets.FindOldestAvailable(ctx, req.Currency, req.TokenStandard)
		if err != nil {
			return entities.FailedAllocation(err.Error())
		}
		if wallet == nil {
			break
		}

		claimed, err := s.wallets.MarkOccupied(ctx, wallet.Address, orderID)
		if err != nil {
			return entities.FailedAllocation(err.Error())
		}
		if !claimed {
			s.logger.Debug("Lost wallet claim race, retrying",
				"address", wallet.Address,
				"currency", req.Currency)
			continue
		}

		wallet.Occupied = true
		wallet.AssignedOrderID = &orderID
		return &entities.AllocationResult{
			Success: true,
			Address: wallet.Address,
			Wallet:  wallet,
		}
	}

	// 2. Reuse the most idle occupied wallet, occupancy untouched
	reused, err := s.wallets.FindOldestOccupied(ctx, req.Currency)
	if err != nil {
		return entities.FailedAllocation(err.Error())
	}
	if reused != nil {
		s.logger.Info("Pool exhausted, reusing oldest occupied wallet",
			"address", reused.Address,
			"currency", req.Currency,
			"order_id", orderID)
		return &entities.AllocationResult{
			Success:                  true,
			Address:                  reused.Address,
			Wallet:                   reused,
			UsedOldestOccupiedWallet: true,
		}
	}

	// 3. Enqueue and report the approximate position
	entry := &entities.QueueEntry{
		OrderID:       orderID,
		Currency:      req.Currency,
		Priority:      entities.QueuePriorityNormal,
		AddedAt:       time.Now(),
		CorrelationID: uuid.NewString(),
		UserID:        req.UserID,
	}

	position, err := s.queue.Enqueue(ctx, entry)
	if err != nil {
		return entities.FailedAllocation("no wallet available and queueing failed: " + err.Error())
	}

	s.logger.Info("No wallet available, order queued",
		"currency", req.Currency,
		"order_id", orderID,
		"queue_position", position)

	return &entities.AllocationResult{
		Success:       false,
		QueuePosition: position,
		Error:         "no wallet available for " + string(req.Currency) + ", order queued",
	}
}

// Release marks the wallet available, then hands it to the head of the
// currency's wait queue if anyone is waiting. Queue handoff notification is
// best effort and never fails the release.
func (s *QueueStrategy) Release(ctx context.Context, address string) *entities.AllocationResult {
	wallet, err := s.wallets.FindByAddress(ctx, address)
	if err != nil {
		return entities.FailedAllocation(err.Error())
	}
	if wallet == nil {
		// Unknown address: treated as already released
		s.logger.Debug("Release of unknown wallet address treated as no-op", "address", address)
		return &entities.AllocationResult{Success: true, Address: address}
	}

	if _, err := s.wallets.MarkAvailable(ctx, address); err != nil {
		return entities.FailedAllocation(err.Error())
	}

	entry := s.queue.Next(ctx, wallet.Currency)
	if entry == nil {
		return &entities.AllocationResult{Success: true, Address: address}
	}

	// Reallocate the freed wallet to the waiting order
	if _, err := s.wallets.ReassignOccupied(ctx, address, entry.OrderID); err != nil {
		s.logger.Error("Failed to hand released wallet to waiting order",
			"address", address,
			"order_id", entry.OrderID,
			"error", err)
		return entities.FailedAllocation(err.Error())
	}

	s.logger.Info("Released wallet handed to waiting order",
		"address", address,
		"currency", wallet.Currency,
		"order_id", entry.OrderID,
		"waited", entry.WaitTime(time.Now()).String())

	if s.notifier != nil {
		if err := s.notifier.NotifyWalletAssigned(ctx, entry, address); err != nil {
			s.logger.Warn("Wallet-assigned notification failed",
				"order_id", entry.OrderID,
				"error", err)
		}
	}

	wallet.Occupied = true
	wallet.AssignedOrderID = &entry.OrderID
	return &entities.AllocationResult{
		Success: true,
		Address: address,
		Wallet:  wallet,
	}
}
