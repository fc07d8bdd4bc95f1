package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Wallets ---

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a wallet repository over s.
func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

// GetOrCreateForUpdate locks the owner's wallet row, staging a new wallet if none exists.
func (r *WalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, owner domain.Owner, currency string) (*domain.Wallet, error) {
	w, err := r.GetForUpdate(ctx, tx, owner)
	if err != nil || w != nil {
		return w, err
	}
	t, _ := asTx(tx)
	created := domain.NewWallet(owner, currency)
	t.mu.Lock()
	t.owners[owner] = created.ID
	t.wallets[created.ID] = created
	t.mu.Unlock()
	cp := *created
	return &cp, nil
}

// GetForUpdate locks the owner's wallet row until tx ends.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, walletKey(owner)); err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	t.mu.Lock()
	if id, ok := t.owners[owner]; ok {
		cp := *t.wallets[id]
		t.mu.Unlock()
		return &cp, nil
	}
	t.mu.Unlock()

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.owners[owner]
	if !ok {
		return nil, nil
	}
	if staged := t.stagedWallet(id); staged != nil {
		return staged, nil
	}
	cp := *r.s.wallets[id]
	return &cp, nil
}

// Get returns the committed wallet of owner.
func (r *WalletRepo) Get(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.owners[owner]
	if !ok {
		return nil, nil
	}
	cp := *r.s.wallets[id]
	return &cp, nil
}

// GetByID returns the committed wallet with id.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// Update stages w, guarded by its version, and bumps the version.
func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if !t.holds(walletKey(w.Owner())) {
		return fmt.Errorf("update wallet %s: row not locked by transaction", w.ID)
	}

	current := t.stagedWallet(w.ID)
	if current == nil {
		r.s.mu.RLock()
		if committed, ok := r.s.wallets[w.ID]; ok {
			cp := *committed
			current = &cp
		}
		r.s.mu.RUnlock()
	}
	if current == nil {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	if current.Version != w.Version {
		return fmt.Errorf("update wallet %s at version %d: %w", w.ID, w.Version, ports.ErrConflict)
	}

	w.Version++
	cp := *w
	t.mu.Lock()
	t.wallets[w.ID] = &cp
	t.mu.Unlock()
	return nil
}

func (t *Tx) stagedWallet(id uuid.UUID) *domain.Wallet {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.wallets[id]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

// --- Ledger ---

// LedgerRepo implements ports.LedgerTransactionRepository.
type LedgerRepo struct {
	s *Store
}

// NewLedgerRepo creates a ledger repository over s.
func NewLedgerRepo(s *Store) *LedgerRepo { return &LedgerRepo{s: s} }

// Append stages one entry. Sequence numbers and order revenue entries are unique.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerTransaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	r.s.mu.RLock()
	committed := r.s.entries[e.WalletID]
	seqTaken := int64(len(committed)) >= e.Sequence
	_, revenueTaken := r.s.orderRevenue[e.Related.ID]
	r.s.mu.RUnlock()

	isRevenue := e.Kind == domain.TransactionKindOrderRevenue && e.Related.Type == domain.RelatedOrder

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, staged := range t.entries {
		if staged.WalletID == e.WalletID && staged.Sequence == e.Sequence {
			seqTaken = true
		}
		if isRevenue && staged.Kind == e.Kind && staged.Related == e.Related {
			revenueTaken = true
		}
	}
	if seqTaken {
		return fmt.Errorf("insert ledger transaction: wallet %s sequence %d: %w", e.WalletID, e.Sequence, ports.ErrConflict)
	}
	if isRevenue && revenueTaken {
		return fmt.Errorf("insert ledger transaction: order %s revenue: %w", e.Related.ID, ports.ErrConflict)
	}
	t.entries = append(t.entries, *e)
	return nil
}

// List returns committed entries of a wallet, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
	r.s.mu.RLock()
	var matched []domain.LedgerTransaction
	for _, e := range r.s.entries[params.WalletID] {
		if matchesLedger(e, params) {
			matched = append(matched, e)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Sequence > matched[j].Sequence })
	total := int64(len(matched))
	return paginate(matched, params.Page, params.PageSize), total, nil
}

// ListByWallet returns every committed entry of a wallet in sequence order.
func (r *LedgerRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.LedgerTransaction, len(r.s.entries[walletID]))
	copy(out, r.s.entries[walletID])
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func matchesLedger(e domain.LedgerTransaction, p ports.LedgerListParams) bool {
	if p.Kind != nil && e.Kind != *p.Kind {
		return false
	}
	if p.RelatedType != nil && e.Related.Type != *p.RelatedType {
		return false
	}
	if p.RelatedID != nil && e.Related.ID != *p.RelatedID {
		return false
	}
	if p.From != nil && e.CreatedAt.Before(*p.From) {
		return false
	}
	if p.To != nil && e.CreatedAt.After(*p.To) {
		return false
	}
	return true
}

// --- Withdrawals ---

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	s *Store
}

// NewWithdrawalRepo creates a withdrawal repository over s.
func NewWithdrawalRepo(s *Store) *WithdrawalRepo { return &WithdrawalRepo{s: s} }

// Create stages a new withdrawal, locked by tx.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, withdrawalKey(w.ID)); err != nil {
		return fmt.Errorf("lock withdrawal: %w", err)
	}

	r.s.mu.RLock()
	_, exists := r.s.withdrawals[w.ID]
	r.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("insert withdrawal %s: %w", w.ID, ports.ErrConflict)
	}

	cp := *w
	t.mu.Lock()
	t.withdrawals[w.ID] = &cp
	t.mu.Unlock()
	return nil
}

// GetByID returns the committed withdrawal with id.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// GetByIDForUpdate locks the withdrawal row until tx ends.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, withdrawalKey(id)); err != nil {
		return nil, fmt.Errorf("lock withdrawal: %w", err)
	}

	t.mu.Lock()
	if staged, ok := t.withdrawals[id]; ok {
		cp := *staged
		t.mu.Unlock()
		return &cp, nil
	}
	t.mu.Unlock()

	return r.GetByID(ctx, id)
}

// Update stages new status fields of a locked withdrawal.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if !t.holds(withdrawalKey(w.ID)) {
		return fmt.Errorf("update withdrawal %s: row not locked by transaction", w.ID)
	}

	t.mu.Lock()
	_, staged := t.withdrawals[w.ID]
	t.mu.Unlock()
	if !staged {
		r.s.mu.RLock()
		_, committed := r.s.withdrawals[w.ID]
		r.s.mu.RUnlock()
		if !committed {
			return fmt.Errorf("withdrawal not found: %s", w.ID)
		}
	}

	cp := *w
	t.mu.Lock()
	t.withdrawals[w.ID] = &cp
	t.mu.Unlock()
	return nil
}

// List returns committed withdrawals, newest first.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.Withdrawal, int64, error) {
	r.s.mu.RLock()
	var matched []domain.Withdrawal
	for _, w := range r.s.withdrawals {
		if params.MerchantID != nil && w.MerchantID != *params.MerchantID {
			continue
		}
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		matched = append(matched, *w)
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].RequestedAt.Equal(matched[j].RequestedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].RequestedAt.After(matched[j].RequestedAt)
	})
	total := int64(len(matched))
	return paginate(matched, params.Page, params.PageSize), total, nil
}

// --- Settlements ---

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	s *Store
}

// NewSettlementRepo creates a settlement repository over s.
func NewSettlementRepo(s *Store) *SettlementRepo { return &SettlementRepo{s: s} }

// Create stages the settlement marker. Concurrent inserts for one order wait
// on each other, and the loser gets ports.ErrConflict once the winner commits.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, st *domain.OrderSettlement) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, orderKey(st.OrderID)); err != nil {
		return fmt.Errorf("lock settlement: %w", err)
	}

	r.s.mu.RLock()
	_, exists := r.s.settlements[st.OrderID]
	r.s.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, staged := t.settlements[st.OrderID]; exists || staged {
		return fmt.Errorf("insert settlement %s: %w", st.OrderID, ports.ErrConflict)
	}
	cp := *st
	t.settlements[st.OrderID] = &cp
	return nil
}

// GetByOrderID returns the committed marker of an order.
func (r *SettlementRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.OrderSettlement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.settlements[orderID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// --- Audit ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates an audit repository over s.
func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

// Create appends one audit entry.
func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// Entries returns a snapshot of all audit entries.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.AuditLog, len(r.s.audit))
	copy(out, r.s.audit)
	return out
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// --- Commission rate ---

// CommissionRateStore implements ports.CommissionRateStore in process memory.
type CommissionRateStore struct {
	mu   sync.RWMutex
	rate decimal.Decimal
}

// NewCommissionRateStore creates a store seeded with initial.
func NewCommissionRateStore(initial decimal.Decimal) *CommissionRateStore {
	return &CommissionRateStore{rate: initial}
}

// CommissionRate returns the current rate.
func (c *CommissionRateStore) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate, nil
}

// SetCommissionRate replaces the current rate.
func (c *CommissionRateStore) SetCommissionRate(ctx context.Context, rate decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = rate
	return nil
}
