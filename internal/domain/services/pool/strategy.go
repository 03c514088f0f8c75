package pool

import (
	"context"
	"time"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
)

// WalletStore defines the persistence operations the allocation strategies
// need. Implemented by repositories.WalletRepository.
type WalletStore interface {
	FindByAddress(ctx context.Context, address string) (*entities.WalletInfo, error)
	FindOldestAvailable(ctx context.Context, currency entities.Currency, tokenStandard *string) (*entities.WalletInfo, error)
	FindOldestOccupied(ctx context.Context, currency entities.Currency) (*entities.WalletInfo, error)
	MarkOccupied(ctx context.Context, address, orderID string) (bool, error)
	ReassignOccupied(ctx context.Context, address, orderID string) (bool, error)
	MarkAvailable(ctx context.Context, address string) (bool, error)
	CountByCurrency(ctx context.Context, currency entities.Currency) (total, available, occupied int, lastActivity *time.Time, err error)
}

// WaitQueue defines the FIFO wait-list operations the queue strategy needs.
// Implemented by repositories.QueueRepository.
type WaitQueue interface {
	Enqueue(ctx context.Context, entry *entities.QueueEntry) (int, error)
	Next(ctx context.Context, currency entities.Currency) *entities.QueueEntry
	Size(ctx context.Context, currency entities.Currency) int
	Stats(ctx context.Context, currency entities.Currency) *entities.QueueStats
	CheckHealth(ctx context.Context) error
}

// Notifier delivers best-effort notifications. Failures are logged and
// swallowed; a notification must never fail a release.
type Notifier interface {
	NotifyWalletAssigned(ctx context.Context, entry *entities.QueueEntry, address string) error
	NotifyLowPool(ctx context.Context, status entities.ThresholdStatus) error
}

// AllocationRequest describes one allocation attempt
type AllocationRequest struct {
	Currency      entities.Currency
	TokenStandard *string
	// OrderID tags the claimed wallet; a synthetic key is generated when empty
	OrderID string
	UserID  string
}

// Strategy encapsulates the wallet allocation and release algorithm. The
// manager holds exactly one strategy for its lifetime, so the algorithm can
// be swapped without touching call sites.
type Strategy interface {
	Allocate(ctx context.Context, req AllocationRequest) *entities.AllocationResult
	Release(ctx context.Context, address string) *entities.AllocationResult
	Name() string
}

// claimAttempts bounds the find-then-claim retry loop. Losing the atomic
// claim race means another caller took the row between the read and the
// conditional update; a retry simply reads the next oldest candidate.
const claimAttempts = 3
