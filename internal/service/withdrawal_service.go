package service

import (
	"context"
	"fmt"
	"strings"
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

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	ledger         ports.BalanceOperations
	withdrawalRepo ports.WithdrawalRepository
	transactor     ports.DBTransactor
	auditSvc       ports.AuditService
	precision      int32
	minAmount      decimal.Decimal
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl. A zero minAmount disables the minimum.
func NewWithdrawalService(
	ledger ports.BalanceOperations,
	withdrawalRepo ports.WithdrawalRepository,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	precision int32,
	minAmount decimal.Decimal,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		ledger:         ledger,
		withdrawalRepo: withdrawalRepo,
		transactor:     transactor,
		auditSvc:       auditSvc,
		precision:      precision,
		minAmount:      minAmount,
		log:            logger.Component(log, "withdrawal"),
	}
}

// Request reserves the amount and creates a pending withdrawal in one transaction.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
	if !req.Actor.CanActFor(req.MerchantID) {
		return nil, apperror.ErrForbidden()
	}
	if !domain.IsValidAmount(req.Amount, s.precision) {
		return nil, apperror.ErrInvalidAmount()
	}
	if s.minAmount.IsPositive() && req.Amount.LessThan(s.minAmount) {
		return nil, apperror.Validation(fmt.Sprintf("withdrawal amount is below the minimum of %s", s.minAmount))
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return nil, apperror.Validation("withdrawal method is required")
	}

	id := uuid.New()
	w, err := inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.Withdrawal, error) {
		entry, err := s.ledger.ReserveTx(ctx, tx, ports.BalanceRequest{
			Owner:   domain.MerchantOwner(req.MerchantID),
			Amount:  req.Amount,
			Related: domain.WithdrawalRef(id),
			Actor:   req.Actor,
			Note:    "withdrawal hold",
		})
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		w := &domain.Withdrawal{
			ID:          id,
			MerchantID:  req.MerchantID,
			WalletID:    entry.WalletID,
			Amount:      req.Amount,
			Method:      method,
			Status:      domain.WithdrawalStatusPending,
			RequestedBy: req.Actor.Ref(),
			RequestedAt: now,
			Note:        req.Note,
			UpdatedAt:   now,
		}
		if err := s.withdrawalRepo.Create(ctx, tx, w); err != nil {
			return nil, storeErr("create withdrawal", err)
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, w, req.Actor, domain.AuditActionWithdrawalRequested, "", map[string]any{
		"amount": w.Amount.String(),
		"method": w.Method,
	})
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("merchant_id", w.MerchantID.String()).
		Str("amount", w.Amount.String()).
		Msg("withdrawal requested")

	return w, nil
}

// Approve moves a pending withdrawal to approved. Funds stay reserved.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Withdrawal, error) {
	return s.transition(ctx, id, actor, domain.WithdrawalStatusApproved, domain.AuditActionWithdrawalApproved,
		func(tx pgx.Tx, w *domain.Withdrawal, now time.Time) error {
			w.ApprovedBy = actor.Ref()
			w.ApprovedAt = &now
			return nil
		})
}

// Reject returns the reserved funds of a pending or approved withdrawal.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, id uuid.UUID, actor domain.Actor, reason string) (*domain.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("rejection reason is required")
	}
	return s.transition(ctx, id, actor, domain.WithdrawalStatusRejected, domain.AuditActionWithdrawalRejected,
		func(tx pgx.Tx, w *domain.Withdrawal, now time.Time) error {
			if _, err := s.ledger.ReleaseTx(ctx, tx, ports.BalanceRequest{
				Owner:   domain.MerchantOwner(w.MerchantID),
				Amount:  w.Amount,
				Related: domain.WithdrawalRef(w.ID),
				Actor:   actor,
				Note:    "withdrawal rejected: " + reason,
			}); err != nil {
				return err
			}
			w.RejectedBy = actor.Ref()
			w.RejectedAt = &now
			w.RejectionReason = &reason
			return nil
		})
}

// Complete releases the hold of an approved withdrawal and pays it out.
func (s *WithdrawalServiceImpl) Complete(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Withdrawal, error) {
	return s.transition(ctx, id, actor, domain.WithdrawalStatusCompleted, domain.AuditActionWithdrawalCompleted,
		func(tx pgx.Tx, w *domain.Withdrawal, now time.Time) error {
			req := ports.BalanceRequest{
				Owner:   domain.MerchantOwner(w.MerchantID),
				Amount:  w.Amount,
				Related: domain.WithdrawalRef(w.ID),
				Actor:   actor,
			}
			req.Note = "withdrawal hold released"
			if _, err := s.ledger.ReleaseTx(ctx, tx, req); err != nil {
				return err
			}
			req.Kind = domain.TransactionKindPayout
			req.Note = "withdrawal paid out via " + w.Method
			if _, err := s.ledger.DebitTx(ctx, tx, req); err != nil {
				return err
			}
			w.CompletedBy = actor.Ref()
			w.CompletedAt = &now
			return nil
		})
}

// transition locks the withdrawal, checks the state machine, applies move and
// persists the new status, all in one transaction. The withdrawal row is
// always locked before the wallet.
func (s *WithdrawalServiceImpl) transition(
	ctx context.Context,
	id uuid.UUID,
	actor domain.Actor,
	to domain.WithdrawalStatus,
	action domain.AuditAction,
	move func(tx pgx.Tx, w *domain.Withdrawal, now time.Time) error,
) (*domain.Withdrawal, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}

	var from domain.WithdrawalStatus
	w, err := inTx(ctx, s.transactor, func(tx pgx.Tx) (*domain.Withdrawal, error) {
		w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, storeErr("lock withdrawal", err)
		}
		if w == nil {
			return nil, apperror.ErrNotFound("withdrawal")
		}
		from = w.Status
		if !w.Status.CanTransitionTo(to) {
			return nil, apperror.ErrInvalidWithdrawalTransition(string(w.Status), string(to))
		}

		now := time.Now().UTC()
		if err := move(tx, w, now); err != nil {
			return nil, err
		}
		w.Status = to
		w.UpdatedAt = now
		if err := s.withdrawalRepo.Update(ctx, tx, w); err != nil {
			return nil, storeErr("update withdrawal", err)
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if w.RejectionReason != nil {
		metadata = map[string]any{"reason": *w.RejectionReason}
	}
	s.audit(ctx, w, actor, action, from, metadata)
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("withdrawal transitioned")

	return w, nil
}

func (s *WithdrawalServiceImpl) audit(ctx context.Context, w *domain.Withdrawal, actor domain.Actor, action domain.AuditAction, from domain.WithdrawalStatus, metadata map[string]any) {
	entry := &domain.AuditLog{
		ID:          uuid.New(),
		ActorID:     actor.Ref(),
		Action:      action,
		EntityType:  domain.EntityWithdrawal,
		EntityID:    w.ID.String(),
		Description: fmt.Sprintf("Withdrawal %s of %s is %s", w.ID, w.Amount, strings.ToLower(string(w.Status))),
		NewValues:   map[string]any{"status": string(w.Status)},
		Metadata:    metadata,
		CreatedAt:   w.UpdatedAt,
	}
	if from != "" {
		entry.OldValues = map[string]any{"status": string(from)}
	}
	s.auditSvc.Log(ctx, entry)
}

// Get returns one withdrawal. Merchants only see their own.
func (s *WithdrawalServiceImpl) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Withdrawal, error) {
	w, err := s.withdrawalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get withdrawal", err)
	}
	if w == nil || !actor.CanActFor(w.MerchantID) {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	return w, nil
}

// List returns one page of withdrawals. Merchant actors are scoped to their own merchant.
func (s *WithdrawalServiceImpl) List(ctx context.Context, params ports.WithdrawalListParams, actor domain.Actor) ([]domain.Withdrawal, int64, error) {
	if !actor.IsAdmin() {
		if actor.MerchantID == nil {
			return nil, 0, apperror.ErrForbidden()
		}
		merchantID := *actor.MerchantID
		params.MerchantID = &merchantID
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown withdrawal status %q", *params.Status))
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	items, total, err := s.withdrawalRepo.List(ctx, params)
	if err != nil {
		return nil, 0, storeErr("list withdrawals", err)
	}
	return items, total, nil
}
