package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-ledger/internal/adapter/storage/memory"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// recordingAudit is a synchronous ports.AuditService for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *recordingAudit) Log(_ context.Context, entry *domain.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
}

func (r *recordingAudit) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// testEnv wires every service over one in-memory store.
type testEnv struct {
	store       *memory.Store
	tr          *memory.Transactor
	wallets     *memory.WalletRepo
	entries     *memory.LedgerRepo
	withdrawalR *memory.WithdrawalRepo
	settlementR *memory.SettlementRepo
	rates       *memory.CommissionRateStore
	audit       *recordingAudit

	ledger      *LedgerServiceImpl
	settlement  *SettlementServiceImpl
	withdrawals *WithdrawalServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLockTimeout(t, 0)
}

func newTestEnvWithLockTimeout(t *testing.T, lockTimeout time.Duration) *testEnv {
	t.Helper()
	store := memory.NewStore()
	tr := memory.NewTransactor(store, lockTimeout)
	e := &testEnv{
		store:       store,
		tr:          tr,
		wallets:     memory.NewWalletRepo(store),
		entries:     memory.NewLedgerRepo(store),
		withdrawalR: memory.NewWithdrawalRepo(store),
		settlementR: memory.NewSettlementRepo(store),
		rates:       memory.NewCommissionRateStore(decimal.RequireFromString("0.10")),
		audit:       &recordingAudit{},
	}
	e.ledger = NewLedgerService(e.wallets, e.entries, tr, e.audit, "USD", 2, newTestLogger())
	e.settlement = NewSettlementService(e.ledger, e.settlementR, nil, e.rates, tr, e.audit, 2, newTestLogger())
	e.withdrawals = NewWithdrawalService(e.ledger, e.withdrawalR, tr, e.audit, 2, decimal.Zero, newTestLogger())
	return e
}

var (
	adminActor  = domain.Actor{ID: uuid.MustParse("00000000-0000-0000-0000-00000000a001"), Role: domain.ActorRoleAdmin}
	systemActor = domain.SystemActor()
)

func merchantActor(merchantID uuid.UUID) domain.Actor {
	id := merchantID
	return domain.Actor{ID: uuid.New(), Role: domain.ActorRoleMerchant, MerchantID: &id}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fund credits a merchant wallet directly.
func (e *testEnv) fund(t *testing.T, merchantID uuid.UUID, amount string) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), ports.BalanceRequest{
		Owner:  domain.MerchantOwner(merchantID),
		Amount: dec(amount),
		Actor:  systemActor,
		Note:   "seed",
	})
	require.NoError(t, err)
}

func (e *testEnv) wallet(t *testing.T, owner domain.Owner) *domain.Wallet {
	t.Helper()
	w, err := e.ledger.GetWallet(context.Background(), owner)
	require.NoError(t, err)
	return w
}

func assertBalances(t *testing.T, w *domain.Wallet, balance, reserved string) {
	t.Helper()
	assert.True(t, w.Balance.Equal(dec(balance)), "balance: want %s, got %s", balance, w.Balance)
	assert.True(t, w.ReservedBalance.Equal(dec(reserved)), "reserved: want %s, got %s", reserved, w.ReservedBalance)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, code), "want %s, got %v", code, err)
}

func (e *testEnv) assertConsistent(t *testing.T, owner domain.Owner) {
	t.Helper()
	report, err := e.ledger.VerifyWallet(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "wallet %s: expected %+v, actual %+v", owner, report.Expected, report.Actual)
	w := e.wallet(t, owner)
	assert.NoError(t, w.CheckInvariants())
}
