package dto

import (
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------- Wallet Requests ----------

type CreateWalletRequest struct {
	UserID    string `json:"user_id" binding:"required,max=128,safe_id"`
	UserName  string `json:"user_name" binding:"max=255"`
	UserImage string `json:"user_image" binding:"omitempty,max=2048,safe_url"`
	Currency  string `json:"currency" binding:"omitempty,len=3,alpha"`
}

type UpdateWalletRequest struct {
	WalletID        string           `json:"wallet_id" binding:"required,uuid"`
	Amount          *decimal.Decimal `json:"amount" binding:"required"`
	TransactionType string           `json:"transaction_type" binding:"required,oneof=credit debit"`
}

type UpdateStatusRequest struct {
	WalletID string `json:"wallet_id" binding:"required,uuid"`
	Status   string `json:"status" binding:"required,oneof=active deactivated suspended"`
}

type ContactRequest struct {
	WalletID    string `json:"wallet_id" binding:"required,uuid"`
	ContactCode string `json:"contact_code" binding:"required,max=64,safe_id"`
}

// ---------- Wallet Responses ----------

// WalletResponse is the full wallet view. Balance is rendered in major units.
type WalletResponse struct {
	ID        uuid.UUID           `json:"id"`
	UserID    string              `json:"user_id"`
	UserName  string              `json:"user_name"`
	UserImage string              `json:"user_image,omitempty"`
	Code      string              `json:"code"`
	Balance   string              `json:"balance"`
	Currency  string              `json:"currency"`
	Status    domain.WalletStatus `json:"status"`
	Contacts  []domain.ContactRef `json:"contacts"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func NewWalletResponse(w *domain.Wallet) WalletResponse {
	contacts := w.Contacts
	if contacts == nil {
		contacts = []domain.ContactRef{}
	}
	return WalletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		UserName:  w.UserName,
		UserImage: w.UserImage,
		Code:      w.Code,
		Balance:   domain.FromMinorUnits(w.Balance),
		Currency:  w.Currency,
		Status:    w.Status,
		Contacts:  contacts,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// ---------- Health ----------

// DependencyStatus carries no error text; failures are logged server-side.
type DependencyStatus struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}
