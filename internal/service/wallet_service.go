package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// createAttempts bounds retries when a freshly generated code loses an insert race.
const createAttempts = 3

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	repo        ports.WalletRepository
	codes       ports.CodeGenerator
	currency    string
	searchLimit int
	log         zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(repo ports.WalletRepository, codes ports.CodeGenerator, currency string, searchLimit int, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		repo:        repo,
		codes:       codes,
		currency:    currency,
		searchLimit: searchLimit,
		log:         log,
	}
}

// Create opens the single wallet a user may own, with a zero balance.
func (s *WalletServiceImpl) Create(ctx context.Context, in ports.CreateWalletInput) (*domain.Wallet, error) {
	existing, err := s.repo.GetByUserID(ctx, in.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by user: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrWalletExists()
	}

	for attempt := 1; attempt <= createAttempts; attempt++ {
		code, err := s.codes.Generate(ctx)
		if err != nil {
			return nil, err
		}

		wallet := &domain.Wallet{
			ID:        uuid.New(),
			UserID:    in.UserID,
			UserName:  in.UserName,
			UserImage: in.UserImage,
			Code:      code,
			Currency:  s.currency,
			Status:    domain.WalletStatusActive,
			Contacts:  []domain.ContactRef{},
		}

		err = s.repo.Create(ctx, wallet)
		switch {
		case err == nil:
			s.log.Info().
				Str("wallet_id", wallet.ID.String()).
				Str("user_id", wallet.UserID).
				Msg("wallet created")
			return wallet, nil
		case errors.Is(err, domain.ErrWalletExists):
			return nil, apperror.ErrWalletExists()
		case errors.Is(err, domain.ErrCodeTaken):
			s.log.Warn().Int("attempt", attempt).Msg("wallet code taken on insert, regenerating")
		default:
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
	}
	return nil, apperror.InternalError(fmt.Errorf("wallet code collided %d times", createAttempts))
}

// Get returns the wallet with id.
func (s *WalletServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// GetByUser returns the wallet owned by userID.
func (s *WalletServiceImpl) GetByUser(ctx context.Context, userID string) (*domain.Wallet, error) {
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by user: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// Search matches query as a literal, case-insensitive substring of the
// user name or the code.
func (s *WalletServiceImpl) Search(ctx context.Context, query string) ([]domain.WalletSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.WalletSummary{}, nil
	}

	results, err := s.repo.Search(ctx, query, s.searchLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("search wallets: %w", err))
	}
	if results == nil {
		results = []domain.WalletSummary{}
	}
	return results, nil
}

// UpdateStatus sets status unconditionally.
func (s *WalletServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	if !status.Valid() {
		return nil, apperror.ValidationFields(map[string]string{"status": "Invalid wallet status"})
	}

	wallet, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	s.log.Info().
		Str("wallet_id", id.String()).
		Str("status", string(status)).
		Msg("wallet status updated")
	return wallet, nil
}
