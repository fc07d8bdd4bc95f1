package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// inTx runs fn inside one database transaction and commits when fn succeeds.
func inTx[T any](ctx context.Context, transactor ports.DBTransactor, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := transactor.Begin(ctx)
	if err != nil {
		return zero, storeErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out, err := fn(tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, storeErr("commit tx", err)
	}
	return out, nil
}

// storeErr maps a storage error to an AppError. AppErrors pass through unchanged.
func storeErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, ports.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}
