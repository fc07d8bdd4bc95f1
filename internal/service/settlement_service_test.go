package service

import (
	"context"
	"sync"
	"testing"

	"marketplace-ledger/internal/adapter/storage/memory"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func settleReq(orderID string, merchantID uuid.UUID, total, rate string) ports.SettlementRequest {
	return ports.SettlementRequest{
		OrderID:        orderID,
		MerchantID:     merchantID,
		TotalAmount:    dec(total),
		CommissionRate: dec(rate),
		Actor:          systemActor,
	}
}

// merchant 1000, rate 0.10, order 500 -> merchant 1450, platform +50, two entries for the order.
func TestSettlementService_SplitsOrderPayment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()
	e.fund(t, merchantID, "1000")

	s, err := e.settlement.SettleOrderPayment(ctx, settleReq("ORD-500", merchantID, "500", "0.10"))
	require.NoError(t, err)
	assert.True(t, s.CommissionAmount.Equal(dec("50")))
	assert.True(t, s.NetAmount.Equal(dec("450")))
	require.NotNil(t, s.MerchantTxID)
	require.NotNil(t, s.PlatformTxID)

	assertBalances(t, e.wallet(t, domain.MerchantOwner(merchantID)), "1450", "0")
	assertBalances(t, e.wallet(t, domain.PlatformOwner()), "50", "0")

	orderID := "ORD-500"
	relatedType := domain.RelatedOrder
	filter := ports.LedgerListParams{RelatedType: &relatedType, RelatedID: &orderID}

	merchantEntries, _, err := e.ledger.ListTransactions(ctx, domain.MerchantOwner(merchantID), filter)
	require.NoError(t, err)
	require.Len(t, merchantEntries, 1)
	assert.Equal(t, domain.TransactionKindOrderRevenue, merchantEntries[0].Kind)
	assert.Equal(t, *s.MerchantTxID, merchantEntries[0].ID)

	platformEntries, _, err := e.ledger.ListTransactions(ctx, domain.PlatformOwner(), filter)
	require.NoError(t, err)
	require.Len(t, platformEntries, 1)
	assert.Equal(t, domain.TransactionKindCommission, platformEntries[0].Kind)
	assert.Equal(t, *s.PlatformTxID, platformEntries[0].ID)

	got, err := e.settlement.GetSettlement(ctx, "ORD-500")
	require.NoError(t, err)
	assert.True(t, got.NetAmount.Equal(dec("450")))
	assert.Contains(t, e.audit.actions(), domain.AuditActionOrderSettled)
}

func TestSettlementService_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()

	first, err := e.settlement.SettleOrderPayment(ctx, settleReq("ORD-1", merchantID, "100", "0.10"))
	require.NoError(t, err)

	again, err := e.settlement.SettleOrderPayment(ctx, settleReq("ORD-1", merchantID, "100", "0.10"))
	assertCode(t, err, apperror.CodeAlreadySettled)
	require.NotNil(t, again)
	assert.Equal(t, first.MerchantTxID, again.MerchantTxID)

	_, err = e.settlement.SettleOrderPayment(ctx, settleReq("ORD-1", merchantID, "120", "0.10"))
	assertCode(t, err, apperror.CodeSettlementMismatch)

	_, err = e.settlement.SettleOrderPayment(ctx, settleReq("ORD-1", uuid.New(), "100", "0.10"))
	assertCode(t, err, apperror.CodeSettlementMismatch)

	assertBalances(t, e.wallet(t, domain.MerchantOwner(merchantID)), "90", "0")
	assertBalances(t, e.wallet(t, domain.PlatformOwner()), "10", "0")
}

func TestSettlementService_ConcurrentDuplicates(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.settlement.SettleOrderPayment(ctx, settleReq("ORD-RACE", merchantID, "80", "0.25"))
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.HasCode(err, apperror.CodeAlreadySettled):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
	assertBalances(t, e.wallet(t, domain.MerchantOwner(merchantID)), "60", "0")
	assertBalances(t, e.wallet(t, domain.PlatformOwner()), "20", "0")
	e.assertConsistent(t, domain.PlatformOwner())
}

func TestSettlementService_FrozenMerchantRollsBack(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()
	e.fund(t, merchantID, "10")
	_, err := e.ledger.Freeze(ctx, domain.MerchantOwner(merchantID), adminActor, "review")
	require.NoError(t, err)

	_, err = e.settlement.SettleOrderPayment(ctx, settleReq("ORD-F", merchantID, "100", "0.10"))
	assertCode(t, err, apperror.CodeSettlementFailed)
	assert.True(t, apperror.HasCode(err, apperror.CodeWalletFrozen), "cause is kept")

	_, err = e.settlement.GetSettlement(ctx, "ORD-F")
	assertCode(t, err, apperror.CodeNotFound)
	_, err = e.ledger.GetWallet(ctx, domain.PlatformOwner())
	assertCode(t, err, apperror.CodeNotFound)

	_, err = e.ledger.Unfreeze(ctx, domain.MerchantOwner(merchantID), adminActor)
	require.NoError(t, err)
	_, err = e.settlement.SettleOrderPayment(ctx, settleReq("ORD-F", merchantID, "100", "0.10"))
	require.NoError(t, err, "a failed settlement is safe to retry")
	assertBalances(t, e.wallet(t, domain.MerchantOwner(merchantID)), "100", "0")
}

func TestSettlementService_ZeroLegsSkipped(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()

	all, err := e.settlement.SettleOrderPayment(ctx, settleReq("ORD-R0", merchantID, "40", "0"))
	require.NoError(t, err)
	assert.Nil(t, all.PlatformTxID)
	_, err = e.ledger.GetWallet(ctx, domain.PlatformOwner())
	assertCode(t, err, apperror.CodeNotFound)

	none, err := e.settlement.SettleOrderPayment(ctx, settleReq("ORD-R1", merchantID, "40", "1"))
	require.NoError(t, err)
	assert.Nil(t, none.MerchantTxID)

	assertBalances(t, e.wallet(t, domain.MerchantOwner(merchantID)), "40", "0")
	assertBalances(t, e.wallet(t, domain.PlatformOwner()), "40", "0")
}

func TestSettlementService_CommissionRounding(t *testing.T) {
	e := newTestEnv(t)
	merchantID := uuid.New()

	s, err := e.settlement.SettleOrderPayment(context.Background(), settleReq("ORD-CENT", merchantID, "0.05", "0.10"))
	require.NoError(t, err)
	assert.Equal(t, "0.01", s.CommissionAmount.StringFixed(2))
	assert.Equal(t, "0.04", s.NetAmount.StringFixed(2))
	assert.True(t, s.CommissionAmount.Add(s.NetAmount).Equal(s.TotalAmount))
}

func TestSettlementService_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()

	tests := []struct {
		name string
		req  ports.SettlementRequest
		code string
	}{
		{"merchant actor", func() ports.SettlementRequest {
			r := settleReq("O", merchantID, "10", "0.1")
			r.Actor = merchantActor(merchantID)
			return r
		}(), apperror.CodeForbidden},
		{"missing order", settleReq("", merchantID, "10", "0.1"), apperror.CodeValidation},
		{"missing merchant", settleReq("O", uuid.Nil, "10", "0.1"), apperror.CodeValidation},
		{"zero total", settleReq("O", merchantID, "0", "0.1"), apperror.CodeInvalidAmount},
		{"rate above one", settleReq("O", merchantID, "10", "1.01"), apperror.CodeInvalidCommissionRate},
		{"negative rate", settleReq("O", merchantID, "10", "-0.1"), apperror.CodeInvalidCommissionRate},
		{"rate too precise", settleReq("O", merchantID, "10", "0.1234567"), apperror.CodeInvalidCommissionRate},
		{"total above cap", settleReq("O", merchantID, "10000000000000000", "0.1"), apperror.CodeInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.settlement.SettleOrderPayment(ctx, tt.req)
			assertCode(t, err, tt.code)
		})
	}
}

func TestSettlementService_HandleOrderPaidUsesCurrentRate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	merchantID := uuid.New()

	require.NoError(t, e.settlement.SetCommissionRate(ctx, dec("0.2"), adminActor))
	rate, err := e.settlement.CommissionRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.2", rate.String())

	s, err := e.settlement.HandleOrderPaid(ctx, domain.OrderPaidEvent{OrderID: "ORD-E", MerchantID: merchantID, TotalAmount: dec("100")}, systemActor)
	require.NoError(t, err)
	assert.True(t, s.CommissionAmount.Equal(dec("20")))
	assert.True(t, s.CommissionRate.Equal(dec("0.2")))

	assertCode(t, e.settlement.SetCommissionRate(ctx, dec("2"), adminActor), apperror.CodeInvalidCommissionRate)
	assertCode(t, e.settlement.SetCommissionRate(ctx, dec("0.0000001"), adminActor), apperror.CodeInvalidCommissionRate)
	assertCode(t, e.settlement.SetCommissionRate(ctx, dec("0.3"), merchantActor(merchantID)), apperror.CodeForbidden)
	assert.Contains(t, e.audit.actions(), domain.AuditActionCommissionRateSet)
}

func TestSettlementService_CacheHitSkipsDatabase(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockSettlementCache(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl) // no Begin expected
	store := memory.NewStore()
	svc := NewSettlementService(nil, memory.NewSettlementRepo(store), cache, memory.NewCommissionRateStore(dec("0.1")),
		transactor, &recordingAudit{}, 2, newTestLogger())

	merchantID := uuid.New()
	cached := &domain.OrderSettlement{OrderID: "ORD-C", MerchantID: merchantID, TotalAmount: dec("100")}
	cache.EXPECT().Get(gomock.Any(), "ORD-C").Return(cached, nil)

	got, err := svc.SettleOrderPayment(context.Background(), settleReq("ORD-C", merchantID, "100", "0.1"))
	assertCode(t, err, apperror.CodeAlreadySettled)
	assert.Same(t, cached, got)
}

func TestSettlementService_CachesNewSettlement(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockSettlementCache(ctrl)
	e := newTestEnv(t)
	tr := memory.NewTransactor(e.store, 0)
	svc := NewSettlementService(e.ledger, e.settlementR, cache, e.rates, tr, e.audit, 2, newTestLogger())

	cache.EXPECT().Get(gomock.Any(), "ORD-N").Return(nil, assert.AnError)
	cache.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *domain.OrderSettlement) error {
		assert.Equal(t, "ORD-N", s.OrderID)
		return assert.AnError
	})

	_, err := svc.SettleOrderPayment(context.Background(), settleReq("ORD-N", uuid.New(), "10", "0.1"))
	require.NoError(t, err, "cache failures never fail a settlement")
}
