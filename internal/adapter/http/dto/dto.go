package dto

import (
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Monetary fields travel as decimal strings ("1450.00") so no precision is lost in JSON.

// CreateWithdrawalRequest is the request body for a new withdrawal.
// MerchantID is only honoured for admin callers.
type CreateWithdrawalRequest struct {
	Amount     string  `json:"amount" binding:"required,money"`
	Method     string  `json:"method" binding:"required,max=64"`
	Note       string  `json:"note" binding:"max=500" sanitize:"html"`
	MerchantID *string `json:"merchant_id,omitempty" binding:"omitempty,uuid"`
}

// RejectWithdrawalRequest is the request body for rejecting a withdrawal.
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=500" sanitize:"html"`
}

// FreezeRequest is the optional request body for freezing a wallet.
type FreezeRequest struct {
	Reason string `json:"reason" binding:"max=500" sanitize:"html"`
}

// AdjustmentRequest is the request body for an admin balance correction.
// A negative amount debits the wallet.
type AdjustmentRequest struct {
	Amount string `json:"amount" binding:"required,signed_money"`
	Note   string `json:"note" binding:"required,max=500" sanitize:"html"`
}

// OrderPaidRequest carries an order-paid event from the order service.
type OrderPaidRequest struct {
	OrderID     string `json:"order_id" binding:"required,max=100,safe_id"`
	MerchantID  string `json:"merchant_id" binding:"required,uuid"`
	TotalAmount string `json:"total_amount" binding:"required,money"`
}

// CommissionRateRequest is the request body for changing the commission rate.
type CommissionRateRequest struct {
	Rate string `json:"rate" binding:"required,rate"`
}

// CommissionRateResponse reports the rate in effect.
type CommissionRateResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

// WalletResponse is the public view of a wallet.
type WalletResponse struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	OwnerID          string          `json:"owner_id"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	ReservedBalance  decimal.Decimal `json:"reserved_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn"`
	IsFrozen         bool            `json:"is_frozen"`
	FrozenAt         *string         `json:"frozen_at,omitempty"`
	UpdatedAt        string          `json:"updated_at"`
}

// LedgerEntryResponse is the public view of one ledger entry.
type LedgerEntryResponse struct {
	ID             string          `json:"id"`
	Sequence       int64           `json:"sequence"`
	Kind           string          `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	ReservedBefore decimal.Decimal `json:"reserved_before"`
	ReservedAfter  decimal.Decimal `json:"reserved_after"`
	RelatedType    string          `json:"related_type,omitempty"`
	RelatedID      string          `json:"related_id,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// WithdrawalResponse is the public view of a withdrawal request.
type WithdrawalResponse struct {
	ID              string          `json:"id"`
	MerchantID      string          `json:"merchant_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	Status          string          `json:"status"`
	RequestedAt     string          `json:"requested_at"`
	ApprovedAt      *string         `json:"approved_at,omitempty"`
	RejectedAt      *string         `json:"rejected_at,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	CompletedAt     *string         `json:"completed_at,omitempty"`
	Note            string          `json:"note,omitempty"`
}

// NewWalletResponse converts a wallet for output.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:               w.ID.String(),
		Kind:             string(w.Kind),
		OwnerID:          w.OwnerID.String(),
		Currency:         w.Currency,
		Balance:          w.Balance,
		ReservedBalance:  w.ReservedBalance,
		AvailableBalance: w.Available(),
		TotalWithdrawn:   w.TotalWithdrawn,
		IsFrozen:         w.IsFrozen,
		FrozenAt:         formatTimePtr(w.FrozenAt),
		UpdatedAt:        formatTime(w.UpdatedAt),
	}
}

// NewLedgerEntryResponses converts a page of ledger entries for output.
func NewLedgerEntryResponses(entries []domain.LedgerTransaction) []LedgerEntryResponse {
	items := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, LedgerEntryResponse{
			ID:             e.ID.String(),
			Sequence:       e.Sequence,
			Kind:           string(e.Kind),
			Amount:         e.Amount,
			BalanceBefore:  e.BalanceBefore,
			BalanceAfter:   e.BalanceAfter,
			ReservedBefore: e.ReservedBefore,
			ReservedAfter:  e.ReservedAfter,
			RelatedType:    string(e.Related.Type),
			RelatedID:      e.Related.ID,
			Note:           e.Note,
			CreatedAt:      formatTime(e.CreatedAt),
		})
	}
	return items
}

// NewWithdrawalResponse converts a withdrawal for output.
func NewWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:              w.ID.String(),
		MerchantID:      w.MerchantID.String(),
		Amount:          w.Amount,
		Method:          w.Method,
		Status:          string(w.Status),
		RequestedAt:     formatTime(w.RequestedAt),
		ApprovedAt:      formatTimePtr(w.ApprovedAt),
		RejectedAt:      formatTimePtr(w.RejectedAt),
		RejectionReason: w.RejectionReason,
		CompletedAt:     formatTimePtr(w.CompletedAt),
		Note:            w.Note,
	}
}

// NewWithdrawalResponses converts a page of withdrawals for output.
func NewWithdrawalResponses(ws []domain.Withdrawal) []WithdrawalResponse {
	items := make([]WithdrawalResponse, 0, len(ws))
	for i := range ws {
		items = append(items, NewWithdrawalResponse(&ws[i]))
	}
	return items
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
