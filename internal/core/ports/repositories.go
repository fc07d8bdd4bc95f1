package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrConflict is returned when a unique constraint rejects an insert or a
	// version guard rejects an update.
	ErrConflict = errors.New("conflict")
	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock timeout")
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
// Lookups return (nil, nil) when the wallet does not exist.
type WalletRepository interface {
	// GetOrCreateForUpdate creates the wallet if missing and returns it row-locked.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, owner domain.Owner, currency string) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error)
	Get(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	// Update persists balances and flags of a locked wallet and increments its version.
	Update(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// LedgerTransactionRepository is append-only: there are no update or delete operations.
type LedgerTransactionRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerTransaction) error
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerTransaction, int64, error)
	// ListByWallet returns every entry of a wallet in sequence order.
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerTransaction, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	WalletID    uuid.UUID
	Kind        *domain.TransactionKind
	RelatedType *domain.RelatedType
	RelatedID   *string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// WithdrawalRepository defines persistence operations for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error)
	Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
	List(ctx context.Context, params WithdrawalListParams) ([]domain.Withdrawal, int64, error)
}

// WithdrawalListParams holds filter + pagination for listing withdrawals.
type WithdrawalListParams struct {
	MerchantID *uuid.UUID
	Status     *domain.WithdrawalStatus
	Page       int
	PageSize   int
}

// SettlementRepository stores one marker per settled order.
type SettlementRepository interface {
	// Create returns ErrConflict if the order was already settled.
	Create(ctx context.Context, tx pgx.Tx, s *domain.OrderSettlement) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.OrderSettlement, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
