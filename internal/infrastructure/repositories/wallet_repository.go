package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/obmin-service/obmin_service/internal/domain/entities"
)

// WalletRepository implements the wallet store interface using PostgreSQL.
// Wallet rows are only ever mutated through MarkOccupied / MarkAvailable.
type WalletRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *sqlx.DB, logger *zap.Logger) *WalletRepository {
	return &WalletRepository{
		db:     db,
		logger: logger,
	}
}

// FindByCurrency retrieves all wallets for a currency, oldest first
func (r *WalletRepository) FindByCurrency(ctx context.Context, currency entities.Currency) ([]*entities.WalletInfo, error) {
	query := `
		SELECT address, currency, token_standard, occupied, assigned_order_id, created_at, last_used_at
		FROM deposit_wallets
		WHERE currency = $1
		ORDER BY COALESCE(last_used_at, created_at) ASC`

	var wallets []*entities.WalletInfo
	if err := r.db.SelectContext(ctx, &wallets, query, string(currency)); err != nil {
		r.logger.Error("Failed to list wallets by currency", zap.Error(err), zap.String("currency", string(currency)))
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}

	return wallets, nil
}

// FindByAddress retrieves a wallet by its address, or nil if unknown
func (r *WalletRepository) FindByAddress(ctx context.Context, address string) (*entities.WalletInfo, error) {
	query := `
		SELECT address, currency, token_standard, occupied, assigned_order_id, created_at, last_used_at
		FROM deposit_wallets
		WHERE address = $1`

	wallet := &entities.WalletInfo{}
	if err := r.db.GetContext(ctx, wallet, query, address); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get wallet by address", zap.Error(err), zap.String("address", address))
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return wallet, nil
}

// FindOldestAvailable returns the least recently used available wallet for
// the currency, or nil when the pool is exhausted. Selection is best-effort
// by timestamp; the claim itself happens in MarkOccupied.
func (r *WalletRepository) FindOldestAvailable(ctx context.Context, currency entities.Currency, tokenStandard *string) (*entities.WalletInfo, error) {
	query := `
		SELECT address, currency, token_standard, occupied, assigned_order_id, created_at, last_used_at
		FROM deposit_wallets
		WHERE currency = $1 AND occupied = false
		  AND ($2::text IS NULL OR token_standard = $2)
		ORDER BY COALESCE(last_used_at, created_at) ASC
		LIMIT 1`

	wallet := &entities.WalletInfo{}
	if err := r.db.GetContext(ctx, wallet, query, string(currency), tokenStandard); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to find oldest available wallet", zap.Error(err), zap.String("currency", string(currency)))
		return nil, fmt.Errorf("failed to find available wallet: %w", err)
	}

	return wallet, nil
}

// FindOldestOccupied returns the most idle in-use wallet for the currency,
// or nil when there is none. Used by the wallet-reuse fallback.
func (r *WalletRepository) FindOldestOccupied(ctx context.Context, currency entities.Currency) (*entities.WalletInfo, error) {
	query := `
		SELECT address, currency, token_standard, occupied, assigned_order_id, created_at, last_used_at
		FROM deposit_wallets
		WHERE currency = $1 AND occupied = true
		ORDER BY COALESCE(last_used_at, created_at) ASC
		LIMIT 1`

	wallet := &entities.WalletInfo{}
	if err := r.db.GetContext(ctx, wallet, query, string(currency)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to find oldest occupied wallet", zap.Error(err), zap.String("currency", string(currency)))
		return nil, fmt.Errorf("failed to find occupied wallet: %w", err)
	}

	return wallet, nil
}

// MarkOccupied atomically claims a wallet for an order. The update only
// succeeds while the row is still available, so under concurrent allocation
// at most one caller wins; losers get claimed=false and must fall through to
// the reuse/queue path.
func (r *WalletRepository) MarkOccupied(ctx context.Context, address, orderID string) (bool, error) {
	query := `
		UPDATE deposit_wallets
		SET occupied = true, assigned_order_id = $2, last_used_at = NOW()
		WHERE address = $1 AND occupied = false`

	res, err := r.db.ExecContext(ctx, query, address, orderID)
	if err != nil {
		r.logger.Error("Failed to mark wallet occupied", zap.Error(err), zap.String("address", address))
		return false, fmt.Errorf("failed to mark wallet occupied: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	claimed := rows == 1
	if claimed {
		r.logger.Debug("Wallet claimed",
			zap.String("address", address),
			zap.String("order_id", orderID))
	}
	return claimed, nil
}

// ReassignOccupied moves an occupied wallet to a new order without freeing it
// in between, used for the release-to-waiter handoff.
func (r *WalletRepository) ReassignOccupied(ctx context.Context, address, orderID string) (bool, error) {
	query := `
		UPDATE deposit_wallets
		SET occupied = true, assigned_order_id = $2, last_used_at = NOW()
		WHERE address = $1`

	res, err := r.db.ExecContext(ctx, query, address, orderID)
	if err != nil {
		r.logger.Error("Failed to reassign wallet", zap.Error(err), zap.String("address", address))
		return false, fmt.Errorf("failed to reassign wallet: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reassign result: %w", err)
	}
	return rows == 1, nil
}

// MarkAvailable releases a wallet. Releasing an unknown or already-available
// address is a no-op; found reports whether a row existed at all.
func (r *WalletRepository) MarkAvailable(ctx context.Context, address string) (bool, error) {
	query := `
		UPDATE deposit_wallets
		SET occupied = false, assigned_order_id = NULL, last_used_at = NOW()
		WHERE address = $1`

	res, err := r.db.ExecContext(ctx, query, address)
	if err != nil {
		r.logger.Error("Failed to mark wallet available", zap.Error(err), zap.String("address", address))
		return false, fmt.Errorf("failed to mark wallet available: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read release result: %w", err)
	}
	return rows >= 1, nil
}

// walletCounts mirrors the aggregate query row
type walletCounts struct {
	Total        int        `db:"total"`
	Available    int        `db:"available"`
	Occupied     int        `db:"occupied"`
	LastActivity *time.Time `db:"last_activity"`
}

// CountByCurrency returns pool counts and the last wallet activity timestamp
func (r *WalletRepository) CountByCurrency(ctx context.Context, currency entities.Currency) (total, available, occupied int, lastActivity *time.Time, err error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE occupied = false) AS available,
		       COUNT(*) FILTER (WHERE occupied = true) AS occupied,
		       MAX(last_used_at) AS last_activity
		FROM deposit_wallets
		WHERE currency = $1`

	var counts walletCounts
	if err = r.db.GetContext(ctx, &counts, query, string(currency)); err != nil {
		r.logger.Error("Failed to count wallets", zap.Error(err), zap.String("currency", string(currency)))
		return 0, 0, 0, nil, fmt.Errorf("failed to count wallets: %w", err)
	}

	return counts.Total, counts.Available, counts.Occupied, counts.LastActivity, nil
}
