package queue

import (
	"encoding/json"
	"fmt"
)

// Item is the wire format stored in the per-currency lists. WalletAddress
// carries the waiting order's id as a placeholder until a released wallet is
// handed to the entry.
type Item struct {
	WalletAddress string `json:"walletAddress"`
	AddedAt       int64  `json:"addedAt"` // epoch milliseconds
	Currency      string `json:"currency"`
	CorrelationID string `json:"correlationId"`
	UserID        string `json:"userId,omitempty"`
	Priority      string `json:"priority"`
}

// Validate checks the fields an item must carry to be usable
func (i *Item) Validate() error {
	if i.WalletAddress == "" {
		return fmt.Errorf("queue item missing wallet address")
	}
	if i.Currency == "" {
		return fmt.Errorf("queue item missing currency")
	}
	if i.AddedAt <= 0 {
		return fmt.Errorf("queue item has invalid added-at timestamp")
	}
	return nil
}

func (i *Item) marshal() (string, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue item: %w", err)
	}
	return string(data), nil
}

func unmarshalItem(raw string) (*Item, error) {
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return &item, nil
}
