package postgres

import (
	"context"
	"errors"

	"marketplace-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create inserts the settlement marker. A second marker for the same order
// fails the primary key and is reported as ports.ErrConflict.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.OrderSettlement) error {
	query := `INSERT INTO order_settlements (order_id, merchant_id, total_amount, commission_rate,
		commission_amount, net_amount, merchant_tx_id, platform_tx_id, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		s.OrderID, s.MerchantID, s.TotalAmount, s.CommissionRate,
		s.CommissionAmount, s.NetAmount, s.MerchantTxID, s.PlatformTxID, s.SettledAt,
	)
	if err != nil {
		return wrapErr("insert settlement", err)
	}
	return nil
}

// GetByOrderID fetches the settlement marker of an order.
func (r *SettlementRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.OrderSettlement, error) {
	query := `SELECT order_id, merchant_id, total_amount, commission_rate, commission_amount,
		net_amount, merchant_tx_id, platform_tx_id, settled_at
		FROM order_settlements WHERE order_id = $1`

	s := &domain.OrderSettlement{}
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&s.OrderID, &s.MerchantID, &s.TotalAmount, &s.CommissionRate, &s.CommissionAmount,
		&s.NetAmount, &s.MerchantTxID, &s.PlatformTxID, &s.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get settlement", err)
	}
	return s, nil
}
