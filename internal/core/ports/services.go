package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(actor domain.Actor) (string, time.Time, error)
	Validate(tokenString string) (*domain.Actor, error)
}

// SettlementCache is the Redis-layer settlement idempotency check (fast path).
type SettlementCache interface {
	Get(ctx context.Context, orderID string) (*domain.OrderSettlement, error) // nil on miss
	Set(ctx context.Context, s *domain.OrderSettlement) error
}

// CommissionRateProvider returns the commission rate in effect right now.
type CommissionRateProvider interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
}

// CommissionRateStore is a provider whose rate can be changed at runtime.
type CommissionRateStore interface {
	CommissionRateProvider
	SetCommissionRate(ctx context.Context, rate decimal.Decimal) error
}

// AuditService records activity asynchronously. Failures never reach the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// BalanceRequest is the input of every balance operation.
type BalanceRequest struct {
	Owner    domain.Owner
	Amount   decimal.Decimal // always positive; direction comes from the operation
	Kind     domain.TransactionKind
	Related  domain.RelatedEntity
	Actor    domain.Actor
	Note     string
	Metadata map[string]any
	EntryID  uuid.UUID // optional pre-assigned ledger entry id
}

// BalanceOperations are the transaction-scoped primitives. They are the only
// code path that writes wallets and ledger entries.
type BalanceOperations interface {
	CreditTx(ctx context.Context, tx pgx.Tx, req BalanceRequest) (*domain.LedgerTransaction, error)
	DebitTx(ctx context.Context, tx pgx.Tx, req BalanceRequest) (*domain.LedgerTransaction, error)
	ReserveTx(ctx context.Context, tx pgx.Tx, req BalanceRequest) (*domain.LedgerTransaction, error)
	ReleaseTx(ctx context.Context, tx pgx.Tx, req BalanceRequest) (*domain.LedgerTransaction, error)
}

// AdjustmentRequest is an admin correction. Positive amounts credit, negative amounts debit.
type AdjustmentRequest struct {
	Owner  domain.Owner
	Amount decimal.Decimal
	Actor  domain.Actor
	Note   string
}

// ReconciliationReport compares the replayed ledger with the cached wallet row.
type ReconciliationReport struct {
	WalletID   uuid.UUID     `json:"wallet_id"`
	Owner      domain.Owner  `json:"owner"`
	Expected   domain.Totals `json:"expected"`
	Actual     domain.Totals `json:"actual"`
	Consistent bool          `json:"consistent"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// LedgerService exposes balance operations, freeze control and wallet queries.
type LedgerService interface {
	BalanceOperations

	Credit(ctx context.Context, req BalanceRequest) (*domain.LedgerTransaction, error)
	Debit(ctx context.Context, req BalanceRequest) (*domain.LedgerTransaction, error)
	Reserve(ctx context.Context, req BalanceRequest) (*domain.LedgerTransaction, error)
	Release(ctx context.Context, req BalanceRequest) (*domain.LedgerTransaction, error)
	Adjust(ctx context.Context, req AdjustmentRequest) (*domain.LedgerTransaction, error)

	Freeze(ctx context.Context, owner domain.Owner, actor domain.Actor, reason string) (*domain.Wallet, error)
	Unfreeze(ctx context.Context, owner domain.Owner, actor domain.Actor) (*domain.Wallet, error)

	GetWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, owner domain.Owner, params LedgerListParams) ([]domain.LedgerTransaction, int64, error)
	VerifyWallet(ctx context.Context, owner domain.Owner) (*ReconciliationReport, error)
}

// WithdrawalRequest holds validated input for a new withdrawal.
type WithdrawalRequest struct {
	MerchantID uuid.UUID
	Amount     decimal.Decimal
	Method     string
	Note       string
	Actor      domain.Actor
}

// WithdrawalService drives the withdrawal state machine.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (*domain.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, actor domain.Actor, reason string) (*domain.Withdrawal, error)
	Complete(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Withdrawal, error)
	Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Withdrawal, error)
	List(ctx context.Context, params WithdrawalListParams, actor domain.Actor) ([]domain.Withdrawal, int64, error)
}

// SettlementRequest holds input for settling one paid order.
type SettlementRequest struct {
	OrderID        string
	MerchantID     uuid.UUID
	TotalAmount    decimal.Decimal
	CommissionRate decimal.Decimal
	Actor          domain.Actor
}

// SettlementService splits paid orders into merchant revenue and platform commission.
type SettlementService interface {
	SettleOrderPayment(ctx context.Context, req SettlementRequest) (*domain.OrderSettlement, error)
	HandleOrderPaid(ctx context.Context, event domain.OrderPaidEvent, actor domain.Actor) (*domain.OrderSettlement, error)
	GetSettlement(ctx context.Context, orderID string) (*domain.OrderSettlement, error)
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
	SetCommissionRate(ctx context.Context, rate decimal.Decimal, actor domain.Actor) error
}
