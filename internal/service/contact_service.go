package service

import (
	"context"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContactServiceImpl implements ports.ContactService. Only the owner wallet is
// written; the referenced wallet never learns it was added.
type ContactServiceImpl struct {
	repo ports.WalletRepository
	log  zerolog.Logger
}

// NewContactService creates a new ContactServiceImpl.
func NewContactService(repo ports.WalletRepository, log zerolog.Logger) *ContactServiceImpl {
	return &ContactServiceImpl{repo: repo, log: log}
}

// AddContact appends a snapshot of the wallet holding contactCode.
func (s *ContactServiceImpl) AddContact(ctx context.Context, walletID uuid.UUID, contactCode string) (*domain.Wallet, error) {
	if contactCode == "" {
		return nil, apperror.ValidationFields(map[string]string{"contact_code": "Contact code is required"})
	}

	wallet, err := s.owner(ctx, walletID)
	if err != nil {
		return nil, err
	}

	contact, err := s.repo.GetByCode(ctx, contactCode)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get contact wallet: %w", err))
	}
	if contact == nil {
		return nil, apperror.ErrContactNotFound()
	}
	if wallet.HasContact(contactCode) {
		return nil, apperror.ErrContactExists()
	}

	updated, err := s.repo.AddContact(ctx, walletID, contact.Snapshot())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("add contact: %w", err))
	}
	// A concurrent add of the same code won the conditional update.
	if updated == nil {
		return nil, apperror.ErrContactExists()
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("contact_code", contactCode).
		Msg("contact added")
	return updated, nil
}

// RemoveContact drops contactCode from the wallet's contact list.
func (s *ContactServiceImpl) RemoveContact(ctx context.Context, walletID uuid.UUID, contactCode string) (*domain.Wallet, error) {
	if contactCode == "" {
		return nil, apperror.ValidationFields(map[string]string{"contact_code": "Contact code is required"})
	}

	wallet, err := s.owner(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !wallet.HasContact(contactCode) {
		return nil, apperror.ErrNotAContact()
	}

	updated, err := s.repo.RemoveContact(ctx, walletID, contactCode)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("remove contact: %w", err))
	}
	if updated == nil {
		return nil, apperror.ErrNotAContact()
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("contact_code", contactCode).
		Msg("contact removed")
	return updated, nil
}

func (s *ContactServiceImpl) owner(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}
