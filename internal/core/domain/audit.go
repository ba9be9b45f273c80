package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet  AuditAction = "CREATE_WALLET"
	AuditActionAdjustBalance AuditAction = "ADJUST_BALANCE"
	AuditActionUpdateStatus  AuditAction = "UPDATE_STATUS"
	AuditActionAddContact    AuditAction = "ADD_CONTACT"
	AuditActionRemoveContact AuditAction = "REMOVE_CONTACT"
)

// AuditLog records a successful wallet write made through the API.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *string     `json:"actor_id,omitempty"` // user_id claim when auth is enabled
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
