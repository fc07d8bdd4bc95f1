package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPaidEvent is emitted once per successful order payment.
type OrderPaidEvent struct {
	OrderID     string          `json:"order_id"`
	MerchantID  uuid.UUID       `json:"merchant_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderSettlement marks an order as settled. OrderID is the idempotency key.
type OrderSettlement struct {
	OrderID          string          `json:"order_id"`
	MerchantID       uuid.UUID       `json:"merchant_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	MerchantTxID     *uuid.UUID      `json:"merchant_tx_id,omitempty"`
	PlatformTxID     *uuid.UUID      `json:"platform_tx_id,omitempty"`
	SettledAt        time.Time       `json:"settled_at"`
}

// Matches reports whether a repeated settlement carries the same payment.
// The rate is not compared since it is read at call time and may have changed.
func (s *OrderSettlement) Matches(merchantID uuid.UUID, total decimal.Decimal) bool {
	return s.MerchantID == merchantID && s.TotalAmount.Equal(total)
}

// SplitCommission splits total into commission and net amounts.
// Commission is rounded half away from zero to precision; net takes the remainder.
func SplitCommission(total, rate decimal.Decimal, precision int32) (commission, net decimal.Decimal) {
	commission = total.Mul(rate).Round(precision)
	net = total.Sub(commission)
	return commission, net
}

// MaxAmount caps a single amount so the amount and the balances it feeds stay
// within the NUMERIC(20, 4) ledger columns.
var MaxAmount = decimal.New(1, 12)

// RatePrecision is the number of decimal places a commission rate may carry.
const RatePrecision int32 = 6

// IsValidAmount reports whether amount is positive, at most MaxAmount and aligned to precision.
func IsValidAmount(amount decimal.Decimal, precision int32) bool {
	return amount.IsPositive() &&
		amount.LessThanOrEqual(MaxAmount) &&
		amount.Equal(amount.Round(precision))
}

// IsValidRate reports whether rate lies within [0, 1] with at most RatePrecision places.
func IsValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() &&
		rate.LessThanOrEqual(decimal.NewFromInt(1)) &&
		rate.Equal(rate.Round(RatePrecision))
}
