package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletFrozen        AuditAction = "WALLET_FROZEN"
	AuditActionWalletUnfrozen      AuditAction = "WALLET_UNFROZEN"
	AuditActionWalletAdjusted      AuditAction = "WALLET_ADJUSTED"
	AuditActionOrderSettled        AuditAction = "ORDER_SETTLED"
	AuditActionWithdrawalRequested AuditAction = "WITHDRAWAL_REQUESTED"
	AuditActionWithdrawalApproved  AuditAction = "WITHDRAWAL_APPROVED"
	AuditActionWithdrawalRejected  AuditAction = "WITHDRAWAL_REJECTED"
	AuditActionWithdrawalCompleted AuditAction = "WITHDRAWAL_COMPLETED"
	AuditActionCommissionRateSet   AuditAction = "COMMISSION_RATE_SET"
)

// Audited entity types.
const (
	EntityWallet     = "WALLET"
	EntityWithdrawal = "WITHDRAWAL"
	EntitySettlement = "SETTLEMENT"
	EntityConfig     = "CONFIG"
)

// AuditLog records a single human-readable activity entry.
type AuditLog struct {
	ID          uuid.UUID      `json:"id"`
	ActorID     *uuid.UUID     `json:"actor_id,omitempty"`
	Action      AuditAction    `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Description string         `json:"description"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
