package pool

import (
	"context"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/pkg/logger"
)

// ImmediateStrategy allocates the oldest available wallet or fails outright.
// It keeps no wait-list: when the pool is exhausted the caller gets a
// failure result and nothing else happens.
type ImmediateStrategy struct {
	wallets WalletStore
	logger  *logger.Logger
}

// NewImmediateStrategy creates the immediate allocation strategy
func NewImmediateStrategy(wallets WalletStore, logger *logger.Logger) *ImmediateStrategy {
	return &ImmediateStrategy{
		wallets: wallets,
		logger:  logger,
	}
}

// Name identifies the strategy
func (s *ImmediateStrategy) Name() string {
	return "immediate"
}

// Allocate claims the oldest available wallet for the currency. The claim is
// an atomic conditional update, so concurrent callers racing for the same
// row see at most one winner; losers retry with the next oldest candidate.
func (s *ImmediateStrategy) Allocate(ctx context.Context, req AllocationRequest) *entities.AllocationResult {
	orderID := req.OrderID
	if orderID == "" {
		orderID = entities.NewAllocationKey()
	}

	for attempt := 0; attempt < claimAttempts; attempt++ {
		wallet, err := s.wallets.FindOldestAvailable(ctx, req.Currency, req.TokenStandard)
		if err != nil {
			return entities.FailedAllocation(err.Error())
		}
		if wallet == nil {
			return entities.FailedAllocation("no wallet available for " + string(req.Currency))
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

	return entities.FailedAllocation("no wallet available for " + string(req.Currency))
}

// Release marks the wallet available. Unknown addresses are treated as
// already released, not as an error.
func (s *ImmediateStrategy) Release(ctx context.Context, address string) *entities.AllocationResult {
	found, err := s.wallets.MarkAvailable(ctx, address)
	if err != nil {
		return entities.FailedAllocation(err.Error())
	}
	if !found {
		s.logger.Debug("Release of unknown wallet address treated as no-op", "address", address)
	}

	return &entities.AllocationResult{
		Success: true,
		Address: address,
	}
}
