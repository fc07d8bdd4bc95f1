package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"
	"marketplace-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func merchantActor(merchantID uuid.UUID) domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.ActorRoleMerchant, MerchantID: &merchantID}
}

func adminActor() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.ActorRoleAdmin}
}

// serve runs a single handler behind a stub that injects the actor.
func serve(a *domain.Actor, method, route, target string, body interface{}, h gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if a != nil {
			c.Set(middleware.CtxActor, *a)
		}
		c.Next()
	}, h)

	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Meta      map[string]any  `json:"meta"`
	ErrorCode string          `json:"error_code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func dataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func testWallet(owner domain.Owner, balance, reserved string) *domain.Wallet {
	w := domain.NewWallet(owner, "USD")
	w.Balance = dec(balance)
	w.ReservedBalance = dec(reserved)
	return w
}

// --- Wallet Handler ---

func TestWalletHandler_GetMine(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	merchantID := uuid.New()
	a := merchantActor(merchantID)
	ledger.EXPECT().GetWallet(gomock.Any(), domain.MerchantOwner(merchantID)).
		Return(testWallet(domain.MerchantOwner(merchantID), "1450", "300"), nil)

	w := serve(&a, http.MethodGet, "/wallets/me", "/wallets/me", nil, h.GetMine)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decode(t, w))
	assert.Equal(t, "1450", data["balance"])
	assert.Equal(t, "300", data["reserved_balance"])
	assert.Equal(t, "1150", data["available_balance"])
}

func TestWalletHandler_GetMine_RequiresMerchant(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockLedgerService(ctrl))

	a := adminActor()
	w := serve(&a, http.MethodGet, "/wallets/me", "/wallets/me", nil, h.GetMine)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(nil, http.MethodGet, "/wallets/me", "/wallets/me", nil, h.GetMine)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletHandler_ListMyTransactions_Filters(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(ledger)

	merchantID := uuid.New()
	a := merchantActor(merchantID)
	entry := domain.LedgerTransaction{
		ID:       uuid.New(),
		Sequence: 2,
		Kind:     domain.TransactionKindOrderRevenue,
		Amount:   dec("450"),
		Related:  domain.OrderRef("ord-1"),
	}

	ledger.EXPECT().ListTransactions(gomock.Any(), domain.MerchantOwner(merchantID), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Owner, p ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
			require.NotNil(t, p.Kind)
			assert.Equal(t, domain.TransactionKindOrderRevenue, *p.Kind)
			require.NotNil(t, p.From)
			assert.Equal(t, 2026, p.From.Year())
			assert.Equal(t, 2, p.Page)
			assert.Equal(t, 10, p.PageSize)
			return []domain.LedgerTransaction{entry}, 11, nil
		})

	w := serve(&a, http.MethodGet, "/tx", "/tx?kind=ORDER_REVENUE&from=2026-01-01T00:00:00Z&page=2&page_size=10", nil, h.ListMyTransactions)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, float64(11), env.Meta["total"])
	assert.Equal(t, float64(2), env.Meta["total_pages"])

	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "ORDER", items[0]["related_type"])
	assert.Equal(t, "ord-1", items[0]["related_id"])
}

func TestWalletHandler_ListMyTransactions_BadFilters(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockLedgerService(ctrl))
	a := merchantActor(uuid.New())

	for _, q := range []string{"kind=BOGUS", "related_type=INVOICE", "from=yesterday"} {
		w := serve(&a, http.MethodGet, "/tx", "/tx?"+q, nil, h.ListMyTransactions)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, apperror.CodeValidation, decode(t, w).ErrorCode)
	}
}

// --- Withdrawal Handler ---

func TestWithdrawalHandler_Create_Merchant(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc)

	merchantID := uuid.New()
	a := merchantActor(merchantID)
	other := uuid.NewString()

	svc.EXPECT().Request(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
			assert.Equal(t, merchantID, req.MerchantID, "merchant_id in body is ignored for merchants")
			assert.True(t, req.Amount.Equal(dec("300")))
			assert.Equal(t, "bank_transfer", req.Method)
			assert.Equal(t, a, req.Actor)
			return &domain.Withdrawal{
				ID: uuid.New(), MerchantID: merchantID, Amount: req.Amount,
				Method: req.Method, Status: domain.WithdrawalStatusPending, RequestedAt: time.Now(),
			}, nil
		})

	w := serve(&a, http.MethodPost, "/withdrawals", "/withdrawals",
		map[string]any{"amount": "300.00", "method": " bank_transfer ", "merchant_id": other}, h.Create)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "PENDING", dataMap(t, decode(t, w))["status"])
}

func TestWithdrawalHandler_Create_AdminNeedsMerchantID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWithdrawalHandler(mocks.NewMockWithdrawalService(ctrl))
	a := adminActor()

	w := serve(&a, http.MethodPost, "/withdrawals", "/withdrawals",
		map[string]any{"amount": "10", "method": "bank"}, h.Create)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalHandler_Create_ValidationAndServiceErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc)
	a := merchantActor(uuid.New())

	w := serve(&a, http.MethodPost, "/withdrawals", "/withdrawals",
		map[string]any{"amount": "-1", "method": "bank"}, h.Create)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientAvailableBalance())
	w = serve(&a, http.MethodPost, "/withdrawals", "/withdrawals",
		map[string]any{"amount": "5000", "method": "bank"}, h.Create)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficientAvailable, decode(t, w).ErrorCode)
}

func TestWithdrawalHandler_List_PassesFilters(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc)
	a := adminActor()
	merchantID := uuid.New()

	svc.EXPECT().List(gomock.Any(), gomock.Any(), a).
		DoAndReturn(func(_ context.Context, p ports.WithdrawalListParams, _ domain.Actor) ([]domain.Withdrawal, int64, error) {
			require.NotNil(t, p.Status)
			assert.Equal(t, domain.WithdrawalStatusApproved, *p.Status)
			require.NotNil(t, p.MerchantID)
			assert.Equal(t, merchantID, *p.MerchantID)
			return nil, 0, nil
		})

	w := serve(&a, http.MethodGet, "/withdrawals", "/withdrawals?status=APPROVED&merchant_id="+merchantID.String(), nil, h.List)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))
}

func TestWithdrawalHandler_Transitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc)
	a := adminActor()
	id := uuid.New()

	svc.EXPECT().Approve(gomock.Any(), id, a).
		Return(&domain.Withdrawal{ID: id, Status: domain.WithdrawalStatusApproved}, nil)
	w := serve(&a, http.MethodPost, "/w/:id/approve", "/w/"+id.String()+"/approve", nil, h.Approve)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "APPROVED", dataMap(t, decode(t, w))["status"])

	svc.EXPECT().Complete(gomock.Any(), id, a).
		Return(nil, apperror.ErrInvalidWithdrawalTransition("PENDING", "COMPLETED"))
	w = serve(&a, http.MethodPost, "/w/:id/complete", "/w/"+id.String()+"/complete", nil, h.Complete)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeInvalidTransition, decode(t, w).ErrorCode)

	w = serve(&a, http.MethodPost, "/w/:id/approve", "/w/not-a-uuid/approve", nil, h.Approve)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalHandler_RejectNeedsReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc)
	a := adminActor()
	id := uuid.New()

	w := serve(&a, http.MethodPost, "/w/:id/reject", "/w/"+id.String()+"/reject", map[string]any{}, h.Reject)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reason := "duplicate request"
	svc.EXPECT().Reject(gomock.Any(), id, a, reason).
		Return(&domain.Withdrawal{ID: id, Status: domain.WithdrawalStatusRejected, RejectionReason: &reason}, nil)
	w = serve(&a, http.MethodPost, "/w/:id/reject", "/w/"+id.String()+"/reject", map[string]any{"reason": reason}, h.Reject)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reason, dataMap(t, decode(t, w))["rejection_reason"])
}

// --- Settlement Handler ---

func TestSettlementHandler_Settle(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)
	a := domain.Actor{Role: domain.ActorRoleSystem}
	merchantID := uuid.New()

	settled := &domain.OrderSettlement{
		OrderID: "ord-1", MerchantID: merchantID, TotalAmount: dec("500"),
		CommissionRate: dec("0.1"), CommissionAmount: dec("50"), NetAmount: dec("450"),
	}
	body := map[string]any{"order_id": "ord-1", "merchant_id": merchantID.String(), "total_amount": "500"}

	svc.EXPECT().HandleOrderPaid(gomock.Any(), gomock.Any(), a).
		DoAndReturn(func(_ context.Context, ev domain.OrderPaidEvent, _ domain.Actor) (*domain.OrderSettlement, error) {
			assert.Equal(t, "ord-1", ev.OrderID)
			assert.Equal(t, merchantID, ev.MerchantID)
			assert.True(t, ev.TotalAmount.Equal(dec("500")))
			return settled, nil
		})
	w := serve(&a, http.MethodPost, "/settlements", "/settlements", body, h.Settle)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "450", dataMap(t, decode(t, w))["net_amount"])

	svc.EXPECT().HandleOrderPaid(gomock.Any(), gomock.Any(), a).Return(settled, apperror.ErrAlreadySettled())
	w = serve(&a, http.MethodPost, "/settlements", "/settlements", body, h.Settle)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ord-1", dataMap(t, decode(t, w))["order_id"])

	svc.EXPECT().HandleOrderPaid(gomock.Any(), gomock.Any(), a).Return(nil, apperror.ErrSettlementMismatch())
	w = serve(&a, http.MethodPost, "/settlements", "/settlements", body, h.Settle)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(&a, http.MethodPost, "/settlements", "/settlements",
		map[string]any{"order_id": "ord-1", "merchant_id": "nope", "total_amount": "500"}, h.Settle)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettlementHandler_CommissionRate(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(svc)
	a := adminActor()

	svc.EXPECT().CommissionRate(gomock.Any()).Return(dec("0.1"), nil)
	w := serve(&a, http.MethodGet, "/rate", "/rate", nil, h.GetCommissionRate)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.1", dataMap(t, decode(t, w))["rate"])

	svc.EXPECT().SetCommissionRate(gomock.Any(), gomock.Any(), a).
		DoAndReturn(func(_ context.Context, rate decimal.Decimal, _ domain.Actor) error {
			assert.True(t, rate.Equal(dec("0.15")))
			return nil
		})
	w = serve(&a, http.MethodPut, "/rate", "/rate", map[string]any{"rate": "0.15"}, h.SetCommissionRate)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(&a, http.MethodPut, "/rate", "/rate", map[string]any{"rate": "2"}, h.SetCommissionRate)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Admin Wallet Handler ---

func TestAdminWalletHandler_FreezeWithoutBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewAdminWalletHandler(ledger)
	a := adminActor()
	merchantID := uuid.New()

	frozen := testWallet(domain.MerchantOwner(merchantID), "10", "0")
	frozen.IsFrozen = true
	ledger.EXPECT().Freeze(gomock.Any(), domain.MerchantOwner(merchantID), a, "").Return(frozen, nil)

	r := gin.New()
	r.POST("/wallets/:merchant_id/freeze", func(c *gin.Context) { c.Set(middleware.CtxActor, a) }, h.Freeze)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/wallets/"+merchantID.String()+"/freeze", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, dataMap(t, decode(t, w))["is_frozen"])
}

func TestAdminWalletHandler_AdjustNegative(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewAdminWalletHandler(ledger)
	a := adminActor()
	merchantID := uuid.New()

	ledger.EXPECT().Adjust(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.AdjustmentRequest) (*domain.LedgerTransaction, error) {
			assert.Equal(t, domain.MerchantOwner(merchantID), req.Owner)
			assert.True(t, req.Amount.Equal(dec("-25.50")))
			assert.Equal(t, "chargeback", req.Note)
			return &domain.LedgerTransaction{ID: uuid.New(), Kind: domain.TransactionKindAdjustment, Amount: req.Amount}, nil
		})

	w := serve(&a, http.MethodPost, "/wallets/:merchant_id/adjustments", "/wallets/"+merchantID.String()+"/adjustments",
		map[string]any{"amount": "-25.50", "note": "chargeback"}, h.Adjust)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ADJUSTMENT", dataMap(t, decode(t, w))["kind"])
}

func TestAdminWalletHandler_ReconcilePlatform(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewAdminWalletHandler(ledger)
	a := adminActor()

	ledger.EXPECT().VerifyWallet(gomock.Any(), domain.PlatformOwner()).
		Return(&ports.ReconciliationReport{Owner: domain.PlatformOwner(), Consistent: true}, nil)

	w := serve(&a, http.MethodGet, "/platform/reconcile", "/platform/reconcile", nil, h.ReconcilePlatform)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataMap(t, decode(t, w))["consistent"])
}

func TestAdminWalletHandler_WalletNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	h := NewAdminWalletHandler(ledger)
	a := adminActor()
	merchantID := uuid.New()

	ledger.EXPECT().GetWallet(gomock.Any(), domain.MerchantOwner(merchantID)).Return(nil, apperror.ErrNotFound("wallet"))
	w := serve(&a, http.MethodGet, "/wallets/:merchant_id", "/wallets/"+merchantID.String(), nil, h.GetWallet)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w).ErrorCode)
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd.EXPECT().Name().Return("redis").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	rd.EXPECT().Ping(gomock.Any()).Return(nil)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	r := gin.New()
	r.GET("/health", HealthCheck(pg, rd))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "unhealthy", deps["redis"].(map[string]any)["status"])
}

// --- Router ---

func TestRouter_AuthAndAdminGuards(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	ledger := mocks.NewMockLedgerService(ctrl)

	merchantID := uuid.New()
	merchant := merchantActor(merchantID)
	tokenSvc.EXPECT().Validate("merchant-token").Return(&merchant, nil).AnyTimes()

	router := SetupRouter(RouterDeps{
		LedgerSvc:     ledger,
		WithdrawalSvc: mocks.NewMockWithdrawalService(ctrl),
		SettlementSvc: mocks.NewMockSettlementService(ctrl),
		TokenSvc:      tokenSvc,
		Logger:        zerolog.Nop(),
	})

	call := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/api/v1/wallets/me", ""))
	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/api/v1/admin/platform/wallet", "merchant-token"))
	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/api/v1/settlements", "merchant-token"))

	ledger.EXPECT().GetWallet(gomock.Any(), domain.MerchantOwner(merchantID)).
		Return(testWallet(domain.MerchantOwner(merchantID), "0", "0"), nil)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/v1/wallets/me", "merchant-token"))
}

func TestSwaggerSpec(t *testing.T) {
	r := gin.New()
	r.GET("/swagger/spec", SwaggerSpec)

	SetSwaggerSpec([]byte("openapi: 3.0.3\n"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}
