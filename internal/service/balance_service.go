package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// BalanceServiceImpl implements ports.BalanceService. Every mutation is a single
// conditional UPDATE; no balance is ever read and written back from Go.
type BalanceServiceImpl struct {
	walletRepo  ports.WalletRepository
	ledgerRepo  ports.LedgerRepository
	ledgerCache ports.LedgerCache
	publisher   ports.UpdatePublisher
	transactor  ports.DBTransactor
	cacheTTL    time.Duration
	log         zerolog.Logger
}

// NewBalanceService creates a new BalanceServiceImpl.
func NewBalanceService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	ledgerCache ports.LedgerCache,
	publisher ports.UpdatePublisher,
	transactor ports.DBTransactor,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *BalanceServiceImpl {
	return &BalanceServiceImpl{
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		ledgerCache: ledgerCache,
		publisher:   publisher,
		transactor:  transactor,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

// ApplyAdjustment credits or debits a wallet from the request path.
func (s *BalanceServiceImpl) ApplyAdjustment(ctx context.Context, walletID uuid.UUID, amount int64, dir domain.Direction) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !dir.Valid() {
		return nil, apperror.ValidationFields(map[string]string{"transaction_type": "Invalid transaction type."})
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.adjust(ctx, dbTx, walletID, dir, amount)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("direction", string(dir)).
		Int64("amount", amount).
		Msg("balance adjusted")

	s.publish(ctx, wallet, dir, amount, "")
	return wallet, nil
}

// ApplyTransaction applies a reconciled event at most once per transaction id.
// The ledger row and the balance change commit together or not at all.
func (s *BalanceServiceImpl) ApplyTransaction(ctx context.Context, adj domain.Adjustment) (*domain.Wallet, bool, error) {
	if adj.Amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}

	// Layer 1: Redis marker
	applied, err := s.ledgerCache.IsApplied(ctx, adj.TransactionID)
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_id", adj.TransactionID).Msg("redis ledger check failed, falling through to DB")
	}
	if applied {
		return nil, false, nil
	}

	// Layer 2: DB ledger read
	applied, err = s.ledgerRepo.Exists(ctx, adj.TransactionID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("db ledger check: %w", err))
	}
	if applied {
		s.markApplied(ctx, adj.TransactionID)
		return nil, false, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Layer 3: the insert itself decides when two deliveries race.
	inserted, err := s.ledgerRepo.Insert(ctx, dbTx, &domain.AppliedTransaction{
		TransactionID: adj.TransactionID,
		WalletID:      adj.WalletID,
		Direction:     adj.Direction,
		Amount:        adj.Amount,
		AppliedAt:     time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrUnknownWallet) {
		return nil, false, apperror.ErrWalletNotFound()
	}
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("insert ledger entry: %w", err))
	}
	if !inserted {
		s.markApplied(ctx, adj.TransactionID)
		return nil, false, nil
	}

	wallet, err := s.adjust(ctx, dbTx, adj.WalletID, adj.Direction, adj.Amount)
	if err != nil {
		return nil, false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.markApplied(ctx, adj.TransactionID)

	s.log.Info().
		Str("wallet_id", adj.WalletID.String()).
		Str("transaction_id", adj.TransactionID).
		Str("direction", string(adj.Direction)).
		Int64("amount", adj.Amount).
		Msg("transaction applied")

	s.publish(ctx, wallet, adj.Direction, adj.Amount, adj.TransactionID)
	return wallet, true, nil
}

// adjust runs the conditional update and classifies a zero-row result.
func (s *BalanceServiceImpl) adjust(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, dir domain.Direction, amount int64) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.AdjustBalance(ctx, tx, walletID, dir, amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("adjust balance: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	if dir == domain.DirectionCredit {
		return nil, apperror.ErrWalletNotFound()
	}
	existing, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if existing == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return nil, apperror.ErrInsufficientBalance()
}

func (s *BalanceServiceImpl) markApplied(ctx context.Context, transactionID string) {
	if err := s.ledgerCache.MarkApplied(ctx, transactionID, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("failed to cache applied marker")
	}
}

// publish never fails the mutation; the balance is already committed.
func (s *BalanceServiceImpl) publish(ctx context.Context, wallet *domain.Wallet, dir domain.Direction, amount int64, transactionID string) {
	if s.publisher == nil {
		return
	}
	event := domain.NewWalletUpdatedEvent(wallet, dir, amount, transactionID)
	if err := s.publisher.PublishWalletUpdated(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("wallet_id", wallet.ID.String()).
			Msg("failed to publish wallet update")
	}
}
