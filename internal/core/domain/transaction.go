package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type and status accepted by the reconciler.
const (
	EventTypeTransactionCompleted = "transaction_completed"
	EventStatusSuccess            = "SUCCESS"
)

// TransactionType is the kind of money movement reported by the payments system.
type TransactionType string

const (
	TransactionTypeP2P        TransactionType = "P2P"
	TransactionTypeP2M        TransactionType = "P2M"
	TransactionTypeWithdrawal TransactionType = "Withdrawal"
	TransactionTypeDeposit    TransactionType = "Deposit"
)

// Direction maps the transaction type to the adjustment applied to the receiver.
func (t TransactionType) Direction() (Direction, bool) {
	switch t {
	case TransactionTypeP2P, TransactionTypeP2M, TransactionTypeDeposit:
		return DirectionCredit, true
	case TransactionTypeWithdrawal:
		return DirectionDebit, true
	}
	return "", false
}

// TransactionEvent is the notification consumed from the transaction topic.
// Amount arrives in major units as either a JSON string or number.
type TransactionEvent struct {
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	TransactionID    string          `json:"transactionId"`
	TransactionType  TransactionType `json:"transactionType"`
	SenderUserID     string          `json:"senderUserId,omitempty"`
	SenderWalletID   string          `json:"senderWalletId,omitempty"`
	ReceiverUserID   string          `json:"receiverUserId,omitempty"`
	ReceiverWalletID string          `json:"receiverWalletId"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency,omitempty"`
}

// Adjustment is a validated event reduced to what the balance engine needs.
type Adjustment struct {
	TransactionID string
	WalletID      uuid.UUID
	Direction     Direction
	Amount        int64 // minor units
}

// RejectReason explains why an event was discarded.
type RejectReason string

const (
	RejectNotCompleted     RejectReason = "not_completed"
	RejectUnknownType      RejectReason = "unknown_transaction_type"
	RejectMissingID        RejectReason = "missing_transaction_id"
	RejectInvalidWallet    RejectReason = "invalid_receiver_wallet"
	RejectInvalidAmount    RejectReason = "invalid_amount"
	RejectCurrencyMismatch RejectReason = "currency_mismatch"
)

// Validate checks the event against the deployment currency and reduces it to an
// Adjustment. An empty currency on the event is accepted.
func (e *TransactionEvent) Validate(currency string) (*Adjustment, RejectReason) {
	if e.Type != EventTypeTransactionCompleted || e.Status != EventStatusSuccess {
		return nil, RejectNotCompleted
	}
	dir, ok := e.TransactionType.Direction()
	if !ok {
		return nil, RejectUnknownType
	}
	if strings.TrimSpace(e.TransactionID) == "" {
		return nil, RejectMissingID
	}
	walletID, err := uuid.Parse(e.ReceiverWalletID)
	if err != nil {
		return nil, RejectInvalidWallet
	}
	amount, err := ToMinorUnits(e.Amount)
	if err != nil {
		return nil, RejectInvalidAmount
	}
	if e.Currency != "" && currency != "" && !strings.EqualFold(e.Currency, currency) {
		return nil, RejectCurrencyMismatch
	}
	return &Adjustment{
		TransactionID: e.TransactionID,
		WalletID:      walletID,
		Direction:     dir,
		Amount:        amount,
	}, ""
}

// WalletUpdatedEvent is published after every successful balance mutation.
type WalletUpdatedEvent struct {
	Type          string       `json:"type"`
	WalletID      uuid.UUID    `json:"walletId"`
	UserID        string       `json:"userId"`
	Code          string       `json:"code"`
	Balance       string       `json:"balance"`
	Currency      string       `json:"currency"`
	Status        WalletStatus `json:"status"`
	Direction     Direction    `json:"direction"`
	Amount        string       `json:"amount"`
	TransactionID string       `json:"transactionId,omitempty"`
	UpdatedAt     int64        `json:"updatedAt"` // unix millis
}

// EventTypeWalletUpdated tags WalletUpdatedEvent payloads.
const EventTypeWalletUpdated = "wallet_updated"

// NewWalletUpdatedEvent describes the post-mutation state of w.
func NewWalletUpdatedEvent(w *Wallet, dir Direction, amount int64, transactionID string) WalletUpdatedEvent {
	return WalletUpdatedEvent{
		Type:          EventTypeWalletUpdated,
		WalletID:      w.ID,
		UserID:        w.UserID,
		Code:          w.Code,
		Balance:       FromMinorUnits(w.Balance),
		Currency:      w.Currency,
		Status:        w.Status,
		Direction:     dir,
		Amount:        FromMinorUnits(amount),
		TransactionID: transactionID,
		UpdatedAt:     w.UpdatedAt.UnixMilli(),
	}
}
