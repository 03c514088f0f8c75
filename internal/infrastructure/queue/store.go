package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
	"github.com/obmin-service/obmin_service/internal/infrastructure/cache"
)

// Store is the queue store adapter: one FIFO list per currency over a list
// client, pushed at the head and popped from the tail.
//
// Every operation fails open. Queue unavailability must never block the
// allocation path, so reads degrade to empty/zero and writes log and
// continue.
type Store struct {
	client     cache.ListClient
	logger     *zap.Logger
	keyPrefix  string
	ttl        time.Duration
	sampleSize int
}

// StoreConfig carries the adapter's tunables
type StoreConfig struct {
	KeyPrefix  string
	TTL        time.Duration
	SampleSize int
}

// NewStore creates a queue store adapter over the given list client
func NewStore(client cache.ListClient, cfg StoreConfig, logger *zap.Logger) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "wallet_queue:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 25
	}
	return &Store{
		client:     client,
		logger:     logger,
		keyPrefix:  cfg.KeyPrefix,
		ttl:        cfg.TTL,
		sampleSize: cfg.SampleSize,
	}
}

func (s *Store) key(currency entities.Currency) string {
	return s.keyPrefix + string(currency)
}

// AddToQueue pushes an item to the head of its currency's list and refreshes
// the key TTL to bound growth from abandoned queues.
func (s *Store) AddToQueue(ctx context.Context, item *Item) error {
	raw, err := item.marshal()
	if err != nil {
		return err
	}

	key := s.key(entities.Currency(item.Currency))
	if err := s.client.LPush(ctx, key, raw); err != nil {
		s.logger.Warn("Failed to push queue item, continuing",
			zap.Error(err),
			zap.String("currency", item.Currency),
			zap.String("correlation_id", item.CorrelationID))
		return err
	}

	if err := s.client.Expire(ctx, key, s.ttl); err != nil {
		s.logger.Warn("Failed to refresh queue TTL", zap.Error(err), zap.String("key", key))
	}

	s.logger.Debug("Queue item added",
		zap.String("currency", item.Currency),
		zap.String("correlation_id", item.CorrelationID))
	return nil
}

// NextFromQueue pops the oldest item for the currency. Malformed stored items
// are logged and skipped; nil is returned on an empty queue or store failure.
func (s *Store) NextFromQueue(ctx context.Context, currency entities.Currency) *Item {
	key := s.key(currency)

	for {
		raw, err := s.client.RPop(ctx, key)
		if err == cache.ErrEmptyList {
			return nil
		}
		if err != nil {
			s.logger.Warn("Failed to pop queue item, treating queue as empty",
				zap.Error(err), zap.String("currency", string(currency)))
			return nil
		}

		item, err := unmarshalItem(raw)
		if err != nil {
			s.logger.Warn("Skipping malformed queue item",
				zap.Error(err), zap.String("currency", string(currency)))
			continue
		}
		return item
	}
}

// QueueSize returns the current list length, zero on store failure
func (s *Store) QueueSize(ctx context.Context, currency entities.Currency) int {
	size, err := s.client.LLen(ctx, s.key(currency))
	if err != nil {
		s.logger.Warn("Failed to read queue size", zap.Error(err), zap.String("currency", string(currency)))
		return 0
	}
	return int(size)
}

// AllQueueSizes returns the list length per supported currency
func (s *Store) AllQueueSizes(ctx context.Context) map[entities.Currency]int {
	sizes := make(map[entities.Currency]int)
	for _, currency := range entities.SupportedCurrencies() {
		sizes[currency] = s.QueueSize(ctx, currency)
	}
	return sizes
}

// PeekQueue returns up to limit oldest items without removing them
func (s *Store) PeekQueue(ctx context.Context, currency entities.Currency, limit int) []*Item {
	if limit <= 0 {
		limit = s.sampleSize
	}

	// Oldest entries sit at the tail
	raws, err := s.client.LRange(ctx, s.key(currency), int64(-limit), -1)
	if err != nil {
		s.logger.Warn("Failed to peek queue", zap.Error(err), zap.String("currency", string(currency)))
		return nil
	}

	items := make([]*Item, 0, len(raws))
	// LRange returns head-to-tail order; reverse so the oldest comes first
	for i := len(raws) - 1; i >= 0; i-- {
		item, err := unmarshalItem(raws[i])
		if err != nil {
			s.logger.Warn("Skipping malformed queue item during peek",
				zap.Error(err), zap.String("currency", string(currency)))
			continue
		}
		items = append(items, item)
	}
	return items
}

// QueueStats computes size plus an average wait over a bounded peeked sample.
// The sample keeps the call cheap on deep queues.
func (s *Store) QueueStats(ctx context.Context, currency entities.Currency) *entities.QueueStats {
	stats := &entities.QueueStats{
		Currency: currency,
		Size:     s.QueueSize(ctx, currency),
	}

	sample := s.PeekQueue(ctx, currency, s.sampleSize)
	if len(sample) == 0 {
		return stats
	}

	now := time.Now()
	var totalWait time.Duration
	for _, item := range sample {
		wait := now.Sub(time.UnixMilli(item.AddedAt))
		if wait < 0 {
			wait = 0
		}
		totalWait += wait
		if wait > stats.OldestWait {
			stats.OldestWait = wait
		}
	}
	stats.SampleSize = len(sample)
	stats.AverageWait = totalWait / time.Duration(len(sample))
	return stats
}

// ClearQueue purges a currency's queue. Administrative operation; the audit
// correlation id ties the purge to operator logs.
func (s *Store) ClearQueue(ctx context.Context, currency entities.Currency) error {
	auditID := uuid.NewString()
	if err := s.client.Del(ctx, s.key(currency)); err != nil {
		s.logger.Warn("Failed to clear queue",
			zap.Error(err),
			zap.String("currency", string(currency)),
			zap.String("audit_id", auditID))
		return err
	}

	s.logger.Info("Queue cleared",
		zap.String("currency", string(currency)),
		zap.String("audit_id", auditID))
	return nil
}

// CheckHealth probes the underlying list store
func (s *Store) CheckHealth(ctx context.Context) error {
	return s.client.Ping(ctx)
}
