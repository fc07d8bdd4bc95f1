package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved  WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected  WithdrawalStatus = "REJECTED"
	WithdrawalStatusCompleted WithdrawalStatus = "COMPLETED"
)

// IsValid returns true for a known status.
func (s WithdrawalStatus) IsValid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusCompleted:
		return true
	}
	return false
}

// IsTerminal returns true for rejected and completed.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusRejected || s == WithdrawalStatusCompleted
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	switch s {
	case WithdrawalStatusPending:
		return next == WithdrawalStatusApproved || next == WithdrawalStatusRejected
	case WithdrawalStatusApproved:
		return next == WithdrawalStatusCompleted || next == WithdrawalStatusRejected
	}
	return false
}

// Withdrawal is a merchant's request to move funds out of the platform.
type Withdrawal struct {
	ID              uuid.UUID        `json:"id"`
	MerchantID      uuid.UUID        `json:"merchant_id"`
	WalletID        uuid.UUID        `json:"wallet_id"`
	Amount          decimal.Decimal  `json:"amount"`
	Method          string           `json:"method"`
	Status          WithdrawalStatus `json:"status"`
	RequestedBy     *uuid.UUID       `json:"requested_by,omitempty"`
	RequestedAt     time.Time        `json:"requested_at"`
	ApprovedBy      *uuid.UUID       `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID       `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time       `json:"rejected_at,omitempty"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	CompletedBy     *uuid.UUID       `json:"completed_by,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Note            string           `json:"note,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
