package domain

import (
	"time"

	"github.com/google/uuid"
)

// AppliedTransaction is a dedup ledger row. Its presence means the transaction's
// balance effect has been committed.
type AppliedTransaction struct {
	TransactionID string    `json:"transaction_id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Direction     Direction `json:"direction"`
	Amount        int64     `json:"amount"`
	AppliedAt     time.Time `json:"applied_at"`
}

// BuildLedgerKey constructs the cache key for an applied transaction.
func BuildLedgerKey(transactionID string) string {
	return "applied:" + transactionID
}
