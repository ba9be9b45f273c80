package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Lookups return nil, nil when no row matches. Mutations are single conditional
// statements and return nil, nil when their condition did not hold.
type WalletRepository interface {
	// Create inserts a wallet. Returns domain.ErrWalletExists or domain.ErrCodeTaken on unique violations.
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByCode(ctx context.Context, code string) (*domain.Wallet, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]domain.WalletSummary, error)
	// AdjustBalance credits or debits inside tx. A debit only applies while balance >= amount.
	AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, dir domain.Direction, amount int64) (*domain.Wallet, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error)
	// AddContact appends ref unless a contact with the same code is already present.
	AddContact(ctx context.Context, id uuid.UUID, ref domain.ContactRef) (*domain.Wallet, error)
	// RemoveContact drops the contact with code, only if it is present.
	RemoveContact(ctx context.Context, id uuid.UUID, code string) (*domain.Wallet, error)
}

// LedgerRepository is the durable dedup ledger of applied transactions.
type LedgerRepository interface {
	// Insert records the transaction inside tx. Returns false if it was already recorded.
	Insert(ctx context.Context, tx pgx.Tx, entry *domain.AppliedTransaction) (bool, error)
	Exists(ctx context.Context, transactionID string) (bool, error)
	// PurgeBefore deletes entries applied before cutoff and returns how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
