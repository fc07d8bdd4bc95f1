// Package memory is a transactional in-memory implementation of the ledger
// store ports. Row locks taken by the ...ForUpdate methods are held until the
// transaction commits or rolls back, so it serializes balance operations the
// same way SELECT ... FOR UPDATE does in PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds committed state plus the row lock table.
type Store struct {
	mu           sync.RWMutex
	wallets      map[uuid.UUID]*domain.Wallet
	owners       map[domain.Owner]uuid.UUID
	entries      map[uuid.UUID][]domain.LedgerTransaction
	orderRevenue map[string]uuid.UUID
	withdrawals  map[uuid.UUID]*domain.Withdrawal
	settlements  map[string]*domain.OrderSettlement
	audit        []domain.AuditLog

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets:      make(map[uuid.UUID]*domain.Wallet),
		owners:       make(map[domain.Owner]uuid.UUID),
		entries:      make(map[uuid.UUID][]domain.LedgerTransaction),
		orderRevenue: make(map[string]uuid.UUID),
		withdrawals:  make(map[uuid.UUID]*domain.Withdrawal),
		settlements:  make(map[string]*domain.OrderSettlement),
		locks:        make(map[string]chan struct{}),
	}
}

func (s *Store) lockChan(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, key string) error {
	select {
	case s.lockChan(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire %s: %w: %w", key, ports.ErrLockTimeout, ctx.Err())
	}
}

func (s *Store) release(key string) {
	<-s.lockChan(key)
}

// Transactor implements ports.DBTransactor over a Store.
type Transactor struct {
	store       *Store
	lockTimeout time.Duration
}

// NewTransactor creates a transactor for store. Each row lock wait is bounded
// by lockTimeout, 0 leaves it to the caller's context.
func NewTransactor(store *Store, lockTimeout time.Duration) *Transactor {
	return &Transactor{store: store, lockTimeout: lockTimeout}
}

// Begin starts a new in-memory transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{
		store:       t.store,
		lockTimeout: t.lockTimeout,
		held:        make(map[string]bool),
		wallets:     make(map[uuid.UUID]*domain.Wallet),
		owners:      make(map[domain.Owner]uuid.UUID),
		withdrawals: make(map[uuid.UUID]*domain.Withdrawal),
		settlements: make(map[string]*domain.OrderSettlement),
	}, nil
}

// Tx stages writes until Commit. Only Commit and Rollback of pgx.Tx are supported;
// the embedded interface is nil.
type Tx struct {
	pgx.Tx

	store       *Store
	lockTimeout time.Duration
	mu          sync.Mutex
	done        bool

	order []string
	held  map[string]bool

	wallets     map[uuid.UUID]*domain.Wallet
	owners      map[domain.Owner]uuid.UUID
	entries     []domain.LedgerTransaction
	withdrawals map[uuid.UUID]*domain.Withdrawal
	settlements map[string]*domain.OrderSettlement
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("memory store: unsupported transaction %T", tx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// lock acquires key for the life of the transaction. Re-locking is a no-op.
func (t *Tx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	if t.held[key] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if t.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.lockTimeout)
		defer cancel()
	}
	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}

	t.mu.Lock()
	t.held[key] = true
	t.order = append(t.order, key)
	t.mu.Unlock()
	return nil
}

func (t *Tx) holds(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held[key]
}

// Commit applies staged writes atomically and releases every held lock.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.done = true
	t.mu.Unlock()
	defer t.releaseAll()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range t.entries {
		if e.Kind == domain.TransactionKindOrderRevenue && e.Related.Type == domain.RelatedOrder {
			if _, dup := s.orderRevenue[e.Related.ID]; dup {
				return fmt.Errorf("commit ledger entry %s: %w", e.ID, ports.ErrConflict)
			}
		}
	}
	for id := range t.settlements {
		if _, dup := s.settlements[id]; dup {
			return fmt.Errorf("commit settlement %s: %w", id, ports.ErrConflict)
		}
	}

	for owner, id := range t.owners {
		s.owners[owner] = id
	}
	for id, w := range t.wallets {
		cp := *w
		s.wallets[id] = &cp
	}
	for _, e := range t.entries {
		s.entries[e.WalletID] = append(s.entries[e.WalletID], e)
		if e.Kind == domain.TransactionKindOrderRevenue && e.Related.Type == domain.RelatedOrder {
			s.orderRevenue[e.Related.ID] = e.ID
		}
	}
	for id, w := range t.withdrawals {
		cp := *w
		s.withdrawals[id] = &cp
	}
	for id, st := range t.settlements {
		cp := *st
		s.settlements[id] = &cp
	}
	return nil
}

// Rollback discards staged writes and releases every held lock.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.done = true
	t.mu.Unlock()
	t.releaseAll()
	return nil
}

func (t *Tx) releaseAll() {
	t.mu.Lock()
	keys := t.order
	t.order = nil
	t.held = map[string]bool{}
	t.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		t.store.release(keys[i])
	}
}

// HealthCheck implements ports.HealthChecker for the in-memory store.
type HealthCheck struct{}

// NewHealthCheck creates a health checker that always reports healthy.
func NewHealthCheck() *HealthCheck { return &HealthCheck{} }

// Ping always succeeds.
func (HealthCheck) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }

func walletKey(owner domain.Owner) string { return "wallet:" + owner.String() }

func withdrawalKey(id uuid.UUID) string { return "withdrawal:" + id.String() }

func orderKey(orderID string) string { return "order:" + orderID }
