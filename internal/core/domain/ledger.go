package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind is the kind of a ledger entry.
type TransactionKind string

const (
	TransactionKindCredit       TransactionKind = "CREDIT"
	TransactionKindDebit        TransactionKind = "DEBIT"
	TransactionKindReserve      TransactionKind = "RESERVE"
	TransactionKindRelease      TransactionKind = "RELEASE"
	TransactionKindPayout       TransactionKind = "PAYOUT"
	TransactionKindFee          TransactionKind = "FEE"
	TransactionKindCommission   TransactionKind = "COMMISSION"
	TransactionKindRefund       TransactionKind = "REFUND"
	TransactionKindAdjustment   TransactionKind = "ADJUSTMENT"
	TransactionKindOrderRevenue TransactionKind = "ORDER_REVENUE"
)

// IsValid returns true for a known kind.
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindCredit, TransactionKindDebit, TransactionKindReserve, TransactionKindRelease,
		TransactionKindPayout, TransactionKindFee, TransactionKindCommission, TransactionKindRefund,
		TransactionKindAdjustment, TransactionKindOrderRevenue:
		return true
	}
	return false
}

// IsCreditKind returns true if the kind may be used with a credit.
func (k TransactionKind) IsCreditKind() bool {
	switch k {
	case TransactionKindCredit, TransactionKindCommission, TransactionKindRefund,
		TransactionKindOrderRevenue, TransactionKindAdjustment:
		return true
	}
	return false
}

// IsDebitKind returns true if the kind may be used with a debit.
func (k TransactionKind) IsDebitKind() bool {
	switch k {
	case TransactionKindDebit, TransactionKindPayout, TransactionKindFee, TransactionKindAdjustment:
		return true
	}
	return false
}

// IsHold returns true for kinds that move reserved funds instead of the balance.
func (k TransactionKind) IsHold() bool {
	return k == TransactionKindReserve || k == TransactionKindRelease
}

// RelatedType tags the entity a ledger entry refers to.
type RelatedType string

const (
	RelatedNone       RelatedType = ""
	RelatedOrder      RelatedType = "ORDER"
	RelatedWithdrawal RelatedType = "WITHDRAWAL"
)

// RelatedEntity is Order(id), Withdrawal(id) or none.
type RelatedEntity struct {
	Type RelatedType `json:"type,omitempty"`
	ID   string      `json:"id,omitempty"`
}

// OrderRef refers to an order.
func OrderRef(orderID string) RelatedEntity {
	return RelatedEntity{Type: RelatedOrder, ID: orderID}
}

// WithdrawalRef refers to a withdrawal request.
func WithdrawalRef(id uuid.UUID) RelatedEntity {
	return RelatedEntity{Type: RelatedWithdrawal, ID: id.String()}
}

// IsNone returns true when the entry refers to nothing.
func (r RelatedEntity) IsNone() bool {
	return r.Type == RelatedNone
}

// LedgerTransaction is one immutable ledger entry.
//
// Amount is signed. For RESERVE and RELEASE the amount applies to the reserved
// balance; for every other kind it applies to the balance. Both snapshot pairs
// are recorded on every entry.
type LedgerTransaction struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	WalletKind     WalletKind      `json:"wallet_kind"`
	Sequence       int64           `json:"sequence"`
	Kind           TransactionKind `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	ReservedBefore decimal.Decimal `json:"reserved_before"`
	ReservedAfter  decimal.Decimal `json:"reserved_after"`
	Related        RelatedEntity   `json:"related"`
	CreatedBy      *uuid.UUID      `json:"created_by,omitempty"`
	Note           string          `json:"note,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Totals is the fold of a wallet's ledger entries.
type Totals struct {
	Balance         decimal.Decimal `json:"balance"`
	ReservedBalance decimal.Decimal `json:"reserved_balance"`
	TotalWithdrawn  decimal.Decimal `json:"total_withdrawn"`
	Entries         int             `json:"entries"`
}

// Fold replays entries, which must be in sequence order, into wallet totals.
func Fold(entries []LedgerTransaction) Totals {
	t := Totals{Balance: decimal.Zero, ReservedBalance: decimal.Zero, TotalWithdrawn: decimal.Zero}
	for _, e := range entries {
		if e.Kind.IsHold() {
			t.ReservedBalance = t.ReservedBalance.Add(e.Amount)
		} else {
			t.Balance = t.Balance.Add(e.Amount)
		}
		if e.Kind == TransactionKindPayout {
			t.TotalWithdrawn = t.TotalWithdrawn.Sub(e.Amount)
		}
		t.Entries++
	}
	return t
}
