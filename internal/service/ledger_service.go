package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LedgerServiceImpl implements ports.LedgerService. It is the only writer of
// wallet rows and ledger entries.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerTransactionRepository
	transactor ports.DBTransactor
	auditSvc   ports.AuditService
	currency   string
	precision  int32
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerTransactionRepository,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	currency string,
	precision int32,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		auditSvc:   auditSvc,
		currency:   currency,
		precision:  precision,
		log:        logger.Component(log, "ledger"),
	}
}

// walletChange validates the locked wallet and mutates it, returning the signed entry amount.
type walletChange func(w *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error)

// CreditTx adds req.Amount to the balance. Credits to a frozen wallet are rejected.
func (s *LedgerServiceImpl) CreditTx(ctx context.Context, tx pgx.Tx, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.TransactionKindCredit
	}
	if !kind.IsCreditKind() {
		return nil, apperror.Validation(fmt.Sprintf("kind %s cannot be credited", kind))
	}
	return s.apply(ctx, tx, req, kind, func(w *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error) {
		if w.IsFrozen {
			return decimal.Zero, apperror.ErrWalletFrozen()
		}
		w.Balance = w.Balance.Add(amount)
		return amount, nil
	})
}

// DebitTx removes req.Amount from the available balance. A PAYOUT debit also
// counts towards the wallet's total withdrawn.
func (s *LedgerServiceImpl) DebitTx(ctx context.Context, tx pgx.Tx, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.TransactionKindDebit
	}
	if !kind.IsDebitKind() {
		return nil, apperror.Validation(fmt.Sprintf("kind %s cannot be debited", kind))
	}
	return s.apply(ctx, tx, req, kind, func(w *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error) {
		if w.IsFrozen {
			return decimal.Zero, apperror.ErrWalletFrozen()
		}
		if w.Available().LessThan(amount) {
			return decimal.Zero, apperror.ErrInsufficientAvailableBalance()
		}
		w.Balance = w.Balance.Sub(amount)
		if kind == domain.TransactionKindPayout {
			w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
		}
		return amount.Neg(), nil
	})
}

// ReserveTx moves req.Amount from available into reserved funds.
func (s *LedgerServiceImpl) ReserveTx(ctx context.Context, tx pgx.Tx, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	return s.apply(ctx, tx, req, domain.TransactionKindReserve, func(w *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error) {
		if w.IsFrozen {
			return decimal.Zero, apperror.ErrWalletFrozen()
		}
		if w.Available().LessThan(amount) {
			return decimal.Zero, apperror.ErrInsufficientAvailableBalance()
		}
		w.ReservedBalance = w.ReservedBalance.Add(amount)
		return amount, nil
	})
}

// ReleaseTx returns req.Amount of reserved funds to the available balance.
// Releasing is allowed while the wallet is frozen.
func (s *LedgerServiceImpl) ReleaseTx(ctx context.Context, tx pgx.Tx, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	return s.apply(ctx, tx, req, domain.TransactionKindRelease, func(w *domain.Wallet, amount decimal.Decimal) (decimal.Decimal, error) {
		if w.ReservedBalance.LessThan(amount) {
			return decimal.Zero, apperror.ErrInsufficientReservedBalance()
		}
		w.ReservedBalance = w.ReservedBalance.Sub(amount)
		return amount.Neg(), nil
	})
}

func (s *LedgerServiceImpl) apply(
	ctx context.Context,
	tx pgx.Tx,
	req ports.BalanceRequest,
	kind domain.TransactionKind,
	change walletChange,
) (*domain.LedgerTransaction, error) {
	if !domain.IsValidAmount(req.Amount, s.precision) {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletRepo.GetOrCreateForUpdate(ctx, tx, req.Owner, s.currency)
	if err != nil {
		return nil, storeErr("lock wallet", err)
	}

	balanceBefore, reservedBefore := wallet.Balance, wallet.ReservedBalance
	signed, err := change(wallet, req.Amount)
	if err != nil {
		return nil, err
	}

	if err := wallet.CheckInvariants(); err != nil {
		logger.Alert(s.log).Err(err).
			Str("wallet_id", wallet.ID.String()).
			Str("kind", string(kind)).
			Str("amount", req.Amount.String()).
			Msg("ledger invariant violation, rolling back")
		return nil, apperror.ErrLedgerInvariantViolation(err)
	}

	entryID := req.EntryID
	if entryID == uuid.Nil {
		entryID = uuid.New()
	}
	now := time.Now().UTC()
	wallet.LastSequence++
	entry := &domain.LedgerTransaction{
		ID:             entryID,
		WalletID:       wallet.ID,
		WalletKind:     wallet.Kind,
		Sequence:       wallet.LastSequence,
		Kind:           kind,
		Amount:         signed,
		BalanceBefore:  balanceBefore,
		BalanceAfter:   wallet.Balance,
		ReservedBefore: reservedBefore,
		ReservedAfter:  wallet.ReservedBalance,
		Related:        req.Related,
		CreatedBy:      req.Actor.Ref(),
		Note:           req.Note,
		Metadata:       req.Metadata,
		CreatedAt:      now,
	}

	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return nil, storeErr("append ledger entry", err)
	}
	if err := s.walletRepo.Update(ctx, tx, wallet); err != nil {
		return nil, storeErr("update wallet", err)
	}

	s.log.Debug().
		Str("wallet_id", wallet.ID.String()).
		Str("kind", string(kind)).
		Str("amount", signed.String()).
		Int64("sequence", entry.Sequence).
		Msg("ledger entry appended")

	return entry, nil
}

// Credit runs CreditTx in its own transaction.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	return inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.LedgerTransaction, error) {
		return s.CreditTx(ctx, tx, req)
	})
}

// Debit runs DebitTx in its own transaction.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	return inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.LedgerTransaction, error) {
		return s.DebitTx(ctx, tx, req)
	})
}

// Reserve runs ReserveTx in its own transaction.
func (s *LedgerServiceImpl) Reserve(ctx context.Context, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	return inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.LedgerTransaction, error) {
		return s.ReserveTx(ctx, tx, req)
	})
}

// Release runs ReleaseTx in its own transaction.
func (s *LedgerServiceImpl) Release(ctx context.Context, req ports.BalanceRequest) (*domain.LedgerTransaction, error) {
	return inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.LedgerTransaction, error) {
		return s.ReleaseTx(ctx, tx, req)
	})
}

// Adjust writes an admin correction. Positive amounts credit, negative amounts debit.
func (s *LedgerServiceImpl) Adjust(ctx context.Context, req ports.AdjustmentRequest) (*domain.LedgerTransaction, error) {
	if !req.Actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	if req.Note == "" {
		return nil, apperror.Validation("adjustment note is required")
	}

	balanceReq := ports.BalanceRequest{
		Owner:  req.Owner,
		Amount: req.Amount.Abs(),
		Kind:   domain.TransactionKindAdjustment,
		Actor:  req.Actor,
		Note:   req.Note,
	}
	if req.Amount.IsZero() {
		return nil, apperror.ErrInvalidAmount()
	}

	var entry *domain.LedgerTransaction
	var err error
	if req.Amount.IsPositive() {
		entry, err = s.Credit(ctx, balanceReq)
	} else {
		entry, err = s.Debit(ctx, balanceReq)
	}
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:          uuid.New(),
		ActorID:     req.Actor.Ref(),
		Action:      domain.AuditActionWalletAdjusted,
		EntityType:  domain.EntityWallet,
		EntityID:    entry.WalletID.String(),
		Description: fmt.Sprintf("Wallet %s adjusted by %s", req.Owner, req.Amount),
		OldValues:   map[string]any{"balance": entry.BalanceBefore.String()},
		NewValues:   map[string]any{"balance": entry.BalanceAfter.String()},
		Metadata:    map[string]any{"note": req.Note, "ledger_tx_id": entry.ID.String()},
		CreatedAt:   entry.CreatedAt,
	})

	s.log.Info().
		Str("wallet_id", entry.WalletID.String()).
		Str("amount", req.Amount.String()).
		Msg("wallet adjusted")

	return entry, nil
}

// GetWallet returns the wallet of owner, or LED_010 if it was never created.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.Get(ctx, owner)
	if err != nil {
		return nil, storeErr("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListTransactions returns one page of the owner's ledger, newest first.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, owner domain.Owner, params ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
	wallet, err := s.GetWallet(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	params.WalletID = wallet.ID
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	entries, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, storeErr("list ledger entries", err)
	}
	return entries, total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
