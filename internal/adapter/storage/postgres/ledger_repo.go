package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository over applied_transactions.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Insert records an applied transaction within a database transaction.
// It returns false when the transaction id was already present, and
// domain.ErrUnknownWallet when the entry names no existing wallet.
func (r *LedgerRepo) Insert(ctx context.Context, tx pgx.Tx, entry *domain.AppliedTransaction) (bool, error) {
	query := `INSERT INTO applied_transactions (transaction_id, wallet_id, direction, amount, applied_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		entry.TransactionID, entry.WalletID, entry.Direction, entry.Amount, entry.AppliedAt,
	)
	if isForeignKeyViolation(err) {
		return false, domain.ErrUnknownWallet
	}
	if err != nil {
		return false, fmt.Errorf("insert applied transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Exists reports whether transactionID has been applied.
func (r *LedgerRepo) Exists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM applied_transactions WHERE transaction_id = $1)`, transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check applied transaction: %w", err)
	}
	return exists, nil
}

// PurgeBefore deletes ledger rows applied before cutoff.
func (r *LedgerRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM applied_transactions WHERE applied_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge applied transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}
