package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_kind, owner_id, currency, balance, reserved_balance, total_withdrawn,
	is_frozen, frozen_at, frozen_by, version, last_sequence, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetOrCreateForUpdate inserts the wallet if it does not exist and returns it locked.
// Concurrent first access is resolved by the (owner_kind, owner_id) unique constraint.
// This MUST be called within a transaction.
func (r *WalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, owner domain.Owner, currency string) (*domain.Wallet, error) {
	w := domain.NewWallet(owner, currency)
	query := `INSERT INTO wallets (id, owner_kind, owner_id, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_kind, owner_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, w.ID, w.Kind, w.OwnerID, w.Currency, w.CreatedAt, w.UpdatedAt); err != nil {
		return nil, wrapErr("upsert wallet", err)
	}

	locked, err := r.GetForUpdate(ctx, tx, owner)
	if err != nil {
		return nil, err
	}
	if locked == nil {
		return nil, fmt.Errorf("wallet %s missing after upsert", owner)
	}
	return locked, nil
}

// GetForUpdate fetches a wallet by owner with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_kind = $1 AND owner_id = $2 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, owner.Kind, owner.ID), "get wallet for update")
}

// Get fetches a wallet by owner (non-locking read).
func (r *WalletRepo) Get(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_kind = $1 AND owner_id = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, owner.Kind, owner.ID), "get wallet by owner")
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// Update writes the wallet back, guarded by its version, and bumps the version.
func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	now := time.Now().UTC()
	query := `UPDATE wallets SET balance = $1, reserved_balance = $2, total_withdrawn = $3,
		is_frozen = $4, frozen_at = $5, frozen_by = $6, last_sequence = $7,
		version = version + 1, updated_at = $8
		WHERE id = $9 AND version = $10`

	tag, err := tx.Exec(ctx, query,
		w.Balance, w.ReservedBalance, w.TotalWithdrawn,
		w.IsFrozen, w.FrozenAt, w.FrozenBy, w.LastSequence,
		now, w.ID, w.Version,
	)
	if err != nil {
		return wrapErr("update wallet", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update wallet %s at version %d: %w", w.ID, w.Version, ports.ErrConflict)
	}
	w.Version++
	w.UpdatedAt = now
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.Kind, &w.OwnerID, &w.Currency,
		&w.Balance, &w.ReservedBalance, &w.TotalWithdrawn,
		&w.IsFrozen, &w.FrozenAt, &w.FrozenBy,
		&w.Version, &w.LastSequence, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return w, nil
}
