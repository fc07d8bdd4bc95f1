package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	ledger         ports.BalanceOperations
	settlementRepo ports.SettlementRepository
	cache          ports.SettlementCache // optional fast path, may be nil
	rates          ports.CommissionRateStore
	transactor     ports.DBTransactor
	auditSvc       ports.AuditService
	precision      int32
	log            zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl. cache may be nil.
func NewSettlementService(
	ledger ports.BalanceOperations,
	settlementRepo ports.SettlementRepository,
	cache ports.SettlementCache,
	rates ports.CommissionRateStore,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	precision int32,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		ledger:         ledger,
		settlementRepo: settlementRepo,
		cache:          cache,
		rates:          rates,
		transactor:     transactor,
		auditSvc:       auditSvc,
		precision:      precision,
		log:            logger.Component(log, "settlement"),
	}
}

// HandleOrderPaid settles an order-paid event at the commission rate in effect now.
func (s *SettlementServiceImpl) HandleOrderPaid(ctx context.Context, event domain.OrderPaidEvent, actor domain.Actor) (*domain.OrderSettlement, error) {
	rate, err := s.rates.CommissionRate(ctx)
	if err != nil {
		return nil, storeErr("read commission rate", err)
	}
	return s.SettleOrderPayment(ctx, ports.SettlementRequest{
		OrderID:        event.OrderID,
		MerchantID:     event.MerchantID,
		TotalAmount:    event.TotalAmount,
		CommissionRate: rate,
		Actor:          actor,
	})
}

// SettleOrderPayment credits the merchant with the net amount and the platform
// with the commission as one unit. A repeated order returns the original
// settlement together with LED_005, or LED_008 if the amounts differ.
func (s *SettlementServiceImpl) SettleOrderPayment(ctx context.Context, req ports.SettlementRequest) (*domain.OrderSettlement, error) {
	if !req.Actor.IsAdmin() {
		return nil, apperror.ErrForbidden()
	}
	if req.OrderID == "" {
		return nil, apperror.Validation("order id is required")
	}
	if req.MerchantID == uuid.Nil {
		return nil, apperror.Validation("merchant id is required")
	}
	if !domain.IsValidAmount(req.TotalAmount, s.precision) {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.IsValidRate(req.CommissionRate) {
		return nil, apperror.ErrInvalidCommissionRate()
	}

	// Layer 1 + 2: cache, then the DB marker
	existing, err := s.lookup(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return duplicateResult(existing, req)
	}

	settlement, err := s.settle(ctx, req)
	if errors.Is(err, ports.ErrConflict) {
		// Lost the race for the marker: the committed winner decides the outcome.
		return s.resolveConflict(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, settlement); err != nil {
			s.log.Warn().Err(err).Str("order_id", req.OrderID).Msg("failed to cache settlement in redis")
		}
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:          uuid.New(),
		ActorID:     req.Actor.Ref(),
		Action:      domain.AuditActionOrderSettled,
		EntityType:  domain.EntitySettlement,
		EntityID:    settlement.OrderID,
		Description: fmt.Sprintf("Order %s settled: %s net to merchant, %s commission", settlement.OrderID, settlement.NetAmount, settlement.CommissionAmount),
		NewValues: map[string]any{
			"total_amount":      settlement.TotalAmount.String(),
			"commission_rate":   settlement.CommissionRate.String(),
			"commission_amount": settlement.CommissionAmount.String(),
			"net_amount":        settlement.NetAmount.String(),
		},
		Metadata:  map[string]any{"merchant_id": settlement.MerchantID.String()},
		CreatedAt: settlement.SettledAt,
	})

	s.log.Info().
		Str("order_id", settlement.OrderID).
		Str("merchant_id", settlement.MerchantID.String()).
		Str("net_amount", settlement.NetAmount.String()).
		Str("commission_amount", settlement.CommissionAmount.String()).
		Msg("order settled")

	return settlement, nil
}

// settle writes the marker and both credits in one transaction. Lock order is
// marker, merchant wallet, platform wallet. A duplicate order surfaces as ports.ErrConflict.
func (s *SettlementServiceImpl) settle(ctx context.Context, req ports.SettlementRequest) (*domain.OrderSettlement, error) {
	commission, net := domain.SplitCommission(req.TotalAmount, req.CommissionRate, s.precision)

	settlement := &domain.OrderSettlement{
		OrderID:          req.OrderID,
		MerchantID:       req.MerchantID,
		TotalAmount:      req.TotalAmount,
		CommissionRate:   req.CommissionRate,
		CommissionAmount: commission,
		NetAmount:        net,
		SettledAt:        time.Now().UTC(),
	}
	// Entry ids are assigned up front so the marker row is written once.
	if net.IsPositive() {
		id := uuid.New()
		settlement.MerchantTxID = &id
	}
	if commission.IsPositive() {
		id := uuid.New()
		settlement.PlatformTxID = &id
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.settlementRepo.Create(ctx, dbTx, settlement); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, err
		}
		return nil, storeErr("create settlement marker", err)
	}

	related := domain.OrderRef(req.OrderID)
	metadata := map[string]any{
		"commission_rate": req.CommissionRate.String(),
		"total_amount":    req.TotalAmount.String(),
	}

	if settlement.MerchantTxID != nil {
		_, err := s.ledger.CreditTx(ctx, dbTx, ports.BalanceRequest{
			Owner:    domain.MerchantOwner(req.MerchantID),
			Amount:   net,
			Kind:     domain.TransactionKindOrderRevenue,
			Related:  related,
			Actor:    req.Actor,
			Note:     "order revenue",
			Metadata: metadata,
			EntryID:  *settlement.MerchantTxID,
		})
		if err != nil {
			if errors.Is(err, ports.ErrConflict) {
				return nil, ports.ErrConflict
			}
			return nil, apperror.ErrSettlementFailed(fmt.Errorf("merchant credit: %w", err))
		}
	}

	if settlement.PlatformTxID != nil {
		_, err := s.ledger.CreditTx(ctx, dbTx, ports.BalanceRequest{
			Owner:    domain.PlatformOwner(),
			Amount:   commission,
			Kind:     domain.TransactionKindCommission,
			Related:  related,
			Actor:    req.Actor,
			Note:     "order commission",
			Metadata: metadata,
			EntryID:  *settlement.PlatformTxID,
		})
		if err != nil {
			return nil, apperror.ErrSettlementFailed(fmt.Errorf("platform credit: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, err
		}
		return nil, storeErr("commit tx", err)
	}
	return settlement, nil
}

func (s *SettlementServiceImpl) lookup(ctx context.Context, orderID string) (*domain.OrderSettlement, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, orderID)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", orderID).Msg("redis settlement check failed, falling through to DB")
		}
		if cached != nil {
			return cached, nil
		}
	}

	existing, err := s.settlementRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, storeErr("db settlement check", err)
	}
	return existing, nil
}

func (s *SettlementServiceImpl) resolveConflict(ctx context.Context, req ports.SettlementRequest) (*domain.OrderSettlement, error) {
	existing, err := s.settlementRepo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, storeErr("re-read settlement", err)
	}
	if existing == nil {
		return nil, apperror.ErrSettlementFailed(fmt.Errorf("order %s conflicted without a committed settlement", req.OrderID))
	}
	return duplicateResult(existing, req)
}

func duplicateResult(existing *domain.OrderSettlement, req ports.SettlementRequest) (*domain.OrderSettlement, error) {
	if !existing.Matches(req.MerchantID, req.TotalAmount) {
		return nil, apperror.ErrSettlementMismatch()
	}
	return existing, apperror.ErrAlreadySettled()
}

// GetSettlement returns the settlement marker of an order.
func (s *SettlementServiceImpl) GetSettlement(ctx context.Context, orderID string) (*domain.OrderSettlement, error) {
	settlement, err := s.settlementRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	if settlement == nil {
		return nil, apperror.ErrNotFound("settlement")
	}
	return settlement, nil
}

// CommissionRate returns the rate the next settlement would use.
func (s *SettlementServiceImpl) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := s.rates.CommissionRate(ctx)
	if err != nil {
		return decimal.Zero, storeErr("read commission rate", err)
	}
	return rate, nil
}

// SetCommissionRate changes the rate for every settlement that starts afterwards.
func (s *SettlementServiceImpl) SetCommissionRate(ctx context.Context, rate decimal.Decimal, actor domain.Actor) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden()
	}
	if !domain.IsValidRate(rate) {
		return apperror.ErrInvalidCommissionRate()
	}

	old, err := s.CommissionRate(ctx)
	if err != nil {
		return err
	}
	if err := s.rates.SetCommissionRate(ctx, rate); err != nil {
		return storeErr("set commission rate", err)
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:          uuid.New(),
		ActorID:     actor.Ref(),
		Action:      domain.AuditActionCommissionRateSet,
		EntityType:  domain.EntityConfig,
		EntityID:    "commission_rate",
		Description: fmt.Sprintf("Commission rate changed from %s to %s", old, rate),
		OldValues:   map[string]any{"rate": old.String()},
		NewValues:   map[string]any{"rate": rate.String()},
		CreatedAt:   time.Now().UTC(),
	})

	s.log.Info().Str("old_rate", old.String()).Str("new_rate", rate.String()).Msg("commission rate changed")
	return nil
}

