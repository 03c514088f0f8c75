package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Currency represents supported deposit currencies
type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyUSDT Currency = "USDT"
	CurrencyLTC  Currency = "LTC"
)

// SupportedCurrencies returns every currency the pool can broker
func SupportedCurrencies() []Currency {
	return []Currency{CurrencyBTC, CurrencyETH, CurrencyUSDT, CurrencyLTC}
}

// IsValid checks if the currency is supported
func (c Currency) IsValid() bool {
	for _, cur := range SupportedCurrencies() {
		if cur == c {
			return true
		}
	}
	return false
}

// ParseCurrency normalizes a raw currency string
func ParseCurrency(raw string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	return c, c.IsValid()
}

// CoinID returns the aggregator coin identifier for the currency
func (c Currency) CoinID() string {
	switch c {
	case CurrencyBTC:
		return "bitcoin"
	case CurrencyETH:
		return "ethereum"
	case CurrencyUSDT:
		return "tether"
	case CurrencyLTC:
		return "litecoin"
	default:
		return ""
	}
}

// TokenStandard represents an optional token network qualifier (e.g. USDT on TRC20)
type TokenStandard string

const (
	TokenStandardERC20 TokenStandard = "ERC20"
	TokenStandardTRC20 TokenStandard = "TRC20"
)

// WalletInfo represents a deposit wallet record owned by the wallet store.
// A wallet with Occupied=false never carries an AssignedOrderID.
type WalletInfo struct {
	Address         string     `db:"address" json:"address"`
	Currency        Currency   `db:"currency" json:"currency"`
	TokenStandard   *string    `db:"token_standard" json:"token_standard,omitempty"`
	Occupied        bool       `db:"occupied" json:"occupied"`
	AssignedOrderID *string    `db:"assigned_order_id" json:"assigned_order_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt      *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}

// AllocationResult is the per-call outcome of an allocate or release operation.
// It is returned to callers and never persisted.
type AllocationResult struct {
	Success                  bool        `json:"success"`
	Address                  string      `json:"address,omitempty"`
	Wallet                   *WalletInfo `json:"wallet,omitempty"`
	QueuePosition            int         `json:"queue_position,omitempty"`
	UsedOldestOccupiedWallet bool        `json:"used_oldest_occupied_wallet,omitempty"`
	Error                    string      `json:"error,omitempty"`
}

// FailedAllocation builds a failure result from an error message
func FailedAllocation(reason string) *AllocationResult {
	return &AllocationResult{Success: false, Error: reason}
}

// PoolStats is a point-in-time view of one currency's wallet pool,
// derived from the wallet and queue stores on demand.
type PoolStats struct {
	Currency     Currency   `json:"currency"`
	Total        int        `json:"total"`
	Available    int        `json:"available"`
	Occupied     int        `json:"occupied"`
	QueueSize    int        `json:"queue_size"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// ThresholdStatus reports one currency's pool against its configured minimum
type ThresholdStatus struct {
	Currency   Currency `json:"currency"`
	Available  int      `json:"available"`
	Threshold  int      `json:"threshold"`
	IsCritical bool     `json:"is_critical"`
}

// NewAllocationKey produces a synthetic order key for allocations that are
// requested before an order id exists.
func NewAllocationKey() string {
	return "alloc-" + uuid.NewString()
}
