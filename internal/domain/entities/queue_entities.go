package entities

import (
	"fmt"
	"time"
)

// QueuePriority classifies a queue entry. It is carried for audit and future
// scheduling use; the wait queue itself is strictly FIFO per currency and
// priority never reorders it.
type QueuePriority string

const (
	QueuePriorityLow    QueuePriority = "low"
	QueuePriorityNormal QueuePriority = "normal"
	QueuePriorityHigh   QueuePriority = "high"
	QueuePriorityUrgent QueuePriority = "urgent"
)

// Band returns the numeric priority band
func (p QueuePriority) Band() int {
	switch p {
	case QueuePriorityLow:
		return 0
	case QueuePriorityNormal:
		return 1
	case QueuePriorityHigh:
		return 2
	case QueuePriorityUrgent:
		return 3
	default:
		return 1
	}
}

// PriorityFromBand maps a numeric band back to a priority
func PriorityFromBand(band int) QueuePriority {
	switch band {
	case 0:
		return QueuePriorityLow
	case 2:
		return QueuePriorityHigh
	case 3:
		return QueuePriorityUrgent
	default:
		return QueuePriorityNormal
	}
}

// IsValid checks if the priority is a known value
func (p QueuePriority) IsValid() bool {
	switch p {
	case QueuePriorityLow, QueuePriorityNormal, QueuePriorityHigh, QueuePriorityUrgent:
		return true
	}
	return false
}

// QueueEntry is a domain wait-list entry created when no wallet could be
// allocated immediately. OrderID identifies the waiting order; WalletAddress
// is filled in once a released wallet is handed to the entry.
type QueueEntry struct {
	OrderID       string        `json:"order_id"`
	WalletAddress string        `json:"wallet_address,omitempty"`
	Currency      Currency      `json:"currency"`
	Priority      QueuePriority `json:"priority"`
	AddedAt       time.Time     `json:"added_at"`
	CorrelationID string        `json:"correlation_id"`
	UserID        string        `json:"user_id,omitempty"`
}

// Validate checks the fields required for an entry to be queued
func (e *QueueEntry) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("queue entry missing order id")
	}
	if !e.Currency.IsValid() {
		return fmt.Errorf("queue entry has unsupported currency %q", e.Currency)
	}
	if e.CorrelationID == "" {
		return fmt.Errorf("queue entry missing correlation id")
	}
	return nil
}

// WaitTime returns how long the entry has been queued
func (e *QueueEntry) WaitTime(now time.Time) time.Duration {
	return now.Sub(e.AddedAt)
}

// QueueStats summarizes one currency's wait queue. AverageWait is computed
// over a bounded peeked sample, not the full queue.
type QueueStats struct {
	Currency    Currency      `json:"currency"`
	Size        int           `json:"size"`
	AverageWait time.Duration `json:"average_wait"`
	SampleSize  int           `json:"sample_size"`
	OldestWait  time.Duration `json:"oldest_wait"`
}
