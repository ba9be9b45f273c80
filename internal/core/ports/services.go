package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
)

// --- Infrastructure Ports ---

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID string
}

// LedgerCache is the Redis fast path in front of the dedup ledger.
// A miss is never authoritative; the database insert decides.
type LedgerCache interface {
	IsApplied(ctx context.Context, transactionID string) (bool, error)
	MarkApplied(ctx context.Context, transactionID string, ttl time.Duration) error
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// UpdatePublisher emits wallet-updated notifications.
type UpdatePublisher interface {
	PublishWalletUpdated(ctx context.Context, event domain.WalletUpdatedEvent) error
}

// DeadLetter is an event that could not be applied, with the reason it was parked.
type DeadLetter struct {
	Message  Message
	Reason   string
	Attempts int
	FailedAt time.Time
}

// DeadLetterSink stores events removed from the live retry path.
type DeadLetterSink interface {
	Send(ctx context.Context, letter DeadLetter) error
}

// --- Service Ports (Business Logic) ---

// CreateWalletInput holds validated input for wallet creation.
type CreateWalletInput struct {
	UserID    string
	UserName  string
	UserImage string
}

// WalletService covers creation, lookup and status changes.
type WalletService interface {
	Create(ctx context.Context, in CreateWalletInput) (*domain.Wallet, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUser(ctx context.Context, userID string) (*domain.Wallet, error)
	Search(ctx context.Context, query string) ([]domain.WalletSummary, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error)
}

// BalanceService applies credits and debits with overdraft protection.
type BalanceService interface {
	ApplyAdjustment(ctx context.Context, walletID uuid.UUID, amount int64, dir domain.Direction) (*domain.Wallet, error)
	// ApplyTransaction applies adj exactly once per transaction id. applied is false
	// when the transaction had already been recorded.
	ApplyTransaction(ctx context.Context, adj domain.Adjustment) (wallet *domain.Wallet, applied bool, err error)
}

// ContactService manages a wallet's contact list.
type ContactService interface {
	AddContact(ctx context.Context, walletID uuid.UUID, contactCode string) (*domain.Wallet, error)
	RemoveContact(ctx context.Context, walletID uuid.UUID, contactCode string) (*domain.Wallet, error)
}

// CodeGenerator produces wallet codes not yet used by any wallet.
type CodeGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
