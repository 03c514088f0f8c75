package repositories

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/internal/infrastructure/queue"
)

// QueueRepository translates domain queue entries to and from the queue
// store's wire item format. The wait queue is strictly FIFO per currency;
// the priority field is mapped and carried but never drives ordering.
type QueueRepository struct {
	store  *queue.Store
	logger *zap.Logger
}

// NewQueueRepository creates a new queue repository over the store adapter
func NewQueueRepository(store *queue.Store, logger *zap.Logger) *QueueRepository {
	return &QueueRepository{
		store:  store,
		logger: logger,
	}
}

func toItem(entry *entities.QueueEntry) *queue.Item {
	// The wire walletAddress slot carries the order id as a placeholder until
	// a released wallet is handed to the entry.
	placeholder := entry.WalletAddress
	if placeholder == "" {
		placeholder = entry.OrderID
	}
	return &queue.Item{
		WalletAddress: placeholder,
		AddedAt:       entry.AddedAt.UnixMilli(),
		Currency:      string(entry.Currency),
		CorrelationID: entry.CorrelationID,
		UserID:        entry.UserID,
		Priority:      string(entry.Priority),
	}
}

func fromItem(item *queue.Item) *entities.QueueEntry {
	priority := entities.QueuePriority(item.Priority)
	if !priority.IsValid() {
		priority = entities.QueuePriorityNormal
	}
	return &entities.QueueEntry{
		OrderID:       item.WalletAddress,
		Currency:      entities.Currency(item.Currency),
		Priority:      priority,
		AddedAt:       time.UnixMilli(item.AddedAt),
		CorrelationID: item.CorrelationID,
		UserID:        item.UserID,
	}
}

// Enqueue adds a domain entry to its currency's FIFO queue and returns the
// entry's approximate position (1-based).
func (r *QueueRepository) Enqueue(ctx context.Context, entry *entities.QueueEntry) (int, error) {
	if err := entry.Validate(); err != nil {
		return 0, fmt.Errorf("invalid queue entry: %w", err)
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	if entry.Priority == "" {
		entry.Priority = entities.QueuePriorityNormal
	}

	if err := r.store.AddToQueue(ctx, toItem(entry)); err != nil {
		return 0, fmt.Errorf("failed to enqueue entry: %w", err)
	}

	position := r.store.QueueSize(ctx, entry.Currency)
	if position == 0 {
		// Size read failed open; the entry was still pushed
		position = 1
	}
	return position, nil
}

// Next pops the oldest waiting entry for the currency, nil when empty
func (r *QueueRepository) Next(ctx context.Context, currency entities.Currency) *entities.QueueEntry {
	item := r.store.NextFromQueue(ctx, currency)
	if item == nil {
		return nil
	}
	return fromItem(item)
}

// Peek returns up to limit oldest entries without removing them
func (r *QueueRepository) Peek(ctx context.Context, currency entities.Currency, limit int) []*entities.QueueEntry {
	items := r.store.PeekQueue(ctx, currency, limit)
	entries := make([]*entities.QueueEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, fromItem(item))
	}
	return entries
}

// Size returns the queue depth for the currency
func (r *QueueRepository) Size(ctx context.Context, currency entities.Currency) int {
	return r.store.QueueSize(ctx, currency)
}

// AllSizes returns the queue depth per supported currency
func (r *QueueRepository) AllSizes(ctx context.Context) map[entities.Currency]int {
	return r.store.AllQueueSizes(ctx)
}

// Stats returns size and sampled wait statistics for the currency
func (r *QueueRepository) Stats(ctx context.Context, currency entities.Currency) *entities.QueueStats {
	return r.store.QueueStats(ctx, currency)
}

// Clear purges the currency's queue
func (r *QueueRepository) Clear(ctx context.Context, currency entities.Currency) error {
	return r.store.ClearQueue(ctx, currency)
}

// CheckHealth probes the backing queue store
func (r *QueueRepository) CheckHealth(ctx context.Context) error {
	return r.store.CheckHealth(ctx)
}
