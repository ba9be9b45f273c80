package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents the state of a wallet. Any value may be set from any other.
type WalletStatus string

const (
	WalletStatusActive      WalletStatus = "active"
	WalletStatusDeactivated WalletStatus = "deactivated"
	WalletStatusSuspended   WalletStatus = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusActive, WalletStatusDeactivated, WalletStatusSuspended:
		return true
	}
	return false
}

// Wallet is the balance-holding record owned by exactly one user.
// Balance is kept in minor units and never goes below zero.
type Wallet struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"`
	UserName  string       `json:"user_name"`
	UserImage string       `json:"user_image,omitempty"`
	Code      string       `json:"code"`
	Balance   int64        `json:"-"`
	Currency  string       `json:"currency"`
	Status    WalletStatus `json:"status"`
	Contacts  []ContactRef `json:"contacts"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HasContact reports whether code is already in the wallet's contact list.
func (w *Wallet) HasContact(code string) bool {
	for _, c := range w.Contacts {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Snapshot builds the contact entry other wallets store for w.
func (w *Wallet) Snapshot() ContactRef {
	return ContactRef{
		WalletID:  w.ID,
		Code:      w.Code,
		UserID:    w.UserID,
		UserName:  w.UserName,
		UserImage: w.UserImage,
		Status:    w.Status,
	}
}

// Summary is the projection returned by search.
func (w *Wallet) Summary() WalletSummary {
	return WalletSummary{
		WalletID:  w.ID,
		Code:      w.Code,
		UserID:    w.UserID,
		UserName:  w.UserName,
		UserImage: w.UserImage,
		Status:    w.Status,
	}
}

// ContactRef is a snapshot of another wallet taken when it was added as a contact.
// It is not refreshed when the referenced wallet changes.
type ContactRef struct {
	WalletID  uuid.UUID    `json:"wallet_id"`
	Code      string       `json:"code"`
	UserID    string       `json:"user_id"`
	UserName  string       `json:"user_name"`
	UserImage string       `json:"user_image,omitempty"`
	Status    WalletStatus `json:"status"`
}

// WalletSummary carries identity and display fields only. Balance and contacts
// must never appear here.
type WalletSummary struct {
	WalletID  uuid.UUID    `json:"wallet_id"`
	Code      string       `json:"code"`
	UserID    string       `json:"user_id"`
	UserName  string       `json:"user_name"`
	UserImage string       `json:"user_image,omitempty"`
	Status    WalletStatus `json:"status"`
}

// Direction is the sign of a balance adjustment.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}
